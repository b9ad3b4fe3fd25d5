package ingest

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-driver/internal/geo"
	"github.com/example/carpool-driver/internal/logging"
	"github.com/example/carpool-driver/internal/models"
)

// flakyStore fails the first n upserts. Successful writes are appended to
// events when it is set.
type flakyStore struct {
	*geo.Index
	fail   int
	calls  int
	events *[]string
}

func (f *flakyStore) Upsert(ctx context.Context, id int64, loc models.Location) error {
	f.calls++
	if f.calls <= f.fail {
		return errors.New("redis down")
	}
	if f.events != nil {
		*f.events = append(*f.events, "index "+strconv.FormatInt(id, 10))
	}
	return f.Index.Upsert(ctx, id, loc)
}

func quickIndexer(store geo.Store) *Indexer {
	ix := NewIndexer(store, logging.Discard())
	ix.delay = time.Millisecond
	ix.backoff = time.Millisecond
	return ix
}

func TestIndexerRetries(t *testing.T) {
	store := &flakyStore{Index: geo.NewIndex(), fail: 2}
	msg, _ := locationMessage(5, models.Location{Latitude: -4.3, Longitude: 15.3}, time.Now())

	if err := quickIndexer(store).Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
	if _, ok, _ := store.Get(context.Background(), 5); !ok {
		t.Fatal("expected driver 5 indexed")
	}
}

func TestIndexerGivesUp(t *testing.T) {
	store := &flakyStore{Index: geo.NewIndex(), fail: 10}
	msg, _ := locationMessage(5, models.Location{}, time.Now())

	if err := quickIndexer(store).Handle(context.Background(), msg); err == nil {
		t.Fatal("expected error after retries")
	}
}

func TestIndexerRejectsGarbage(t *testing.T) {
	ix := quickIndexer(geo.NewIndex())
	if err := ix.Handle(context.Background(), kafka.Message{Value: []byte("{")}); err == nil {
		t.Fatal("expected decode error")
	}
	if err := ix.Handle(context.Background(), kafka.Message{Value: []byte(`{"location":{}}`)}); err == nil {
		t.Fatal("expected missing driver id error")
	}
}

// scriptedReader serves msgs in order, records commits in events and
// cancels once it runs out.
type scriptedReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
	events *[]string
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		*r.events = append(*r.events, "commit "+strconv.FormatInt(m.Offset, 10))
	}
	return nil
}

func TestConsumeUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, _ := locationMessage(1, models.Location{Latitude: 1}, time.Now())
	b, _ := locationMessage(2, models.Location{Latitude: 2}, time.Now())
	var events []string
	reader := &scriptedReader{msgs: []kafka.Message{a, {Value: []byte("junk")}, b}, cancel: cancel, events: &events}
	idx := geo.NewIndex()

	if err := quickIndexer(idx).Consume(ctx, reader); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if n, _ := idx.Count(context.Background()); n != 2 {
		t.Fatalf("expected 2 drivers indexed, got %d", n)
	}
	if len(events) != 3 {
		t.Fatalf("expected every message committed, got %v", events)
	}
}

func TestConsumeCommitsAfterIndexing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, _ := locationMessage(1, models.Location{Latitude: 1}, time.Now())
	a.Offset = 10
	b, _ := locationMessage(2, models.Location{Latitude: 2}, time.Now())
	b.Offset = 11

	var events []string
	// Four failures outlast the first Handle's three attempts.
	store := &flakyStore{Index: geo.NewIndex(), fail: 4, events: &events}
	reader := &scriptedReader{msgs: []kafka.Message{a, b}, cancel: cancel, events: &events}

	if err := quickIndexer(store).Consume(ctx, reader); err != nil {
		t.Fatalf("consume: %v", err)
	}
	want := []string{"index 1", "commit 10", "index 2", "commit 11"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestConsumeLeavesUnindexedMessageUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, _ := locationMessage(1, models.Location{Latitude: 1}, time.Now())
	var events []string
	store := &flakyStore{Index: geo.NewIndex(), fail: 1 << 30, events: &events}
	reader := &scriptedReader{msgs: []kafka.Message{a}, cancel: cancel, events: &events}

	time.AfterFunc(50*time.Millisecond, cancel)
	if err := quickIndexer(store).Consume(ctx, reader); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected nothing committed, got %v", events)
	}
}
