package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-driver/internal/geo"
	"github.com/example/carpool-driver/internal/observability"
)

// MessageReader is the part of kafka.Reader the indexer uses. Offsets are
// committed explicitly once a message is handled.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// errInvalidEvent marks messages that can never be indexed.
var errInvalidEvent = errors.New("invalid location event")

// Indexer feeds mirrored location events into a geo store.
type Indexer struct {
	store    geo.Store
	logger   *slog.Logger
	attempts int
	delay    time.Duration
	backoff  time.Duration
}

func NewIndexer(store geo.Store, logger *slog.Logger) *Indexer {
	return &Indexer{store: store, logger: logger, attempts: 3, delay: 200 * time.Millisecond, backoff: time.Second}
}

// Handle decodes one message and writes it with retry. Undecodable messages
// are dropped with an error.
func (ix *Indexer) Handle(ctx context.Context, m kafka.Message) error {
	var ev LocationEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		observability.IndexerMessagesTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if ev.DriverID == 0 {
		observability.IndexerMessagesTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: missing driver id", errInvalidEvent)
	}

	delay := ix.delay
	var err error
	for i := 0; i < ix.attempts; i++ {
		if err = ix.store.Upsert(ctx, ev.DriverID, ev.Location); err == nil {
			observability.IndexerMessagesTotal.WithLabelValues("indexed").Inc()
			return nil
		}
		if i == ix.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	observability.IndexerMessagesTotal.WithLabelValues("store_error").Inc()
	return fmt.Errorf("index driver %d: %w", ev.DriverID, err)
}

// Consume fetches until ctx is done. A message is committed only after it
// is indexed or found invalid; store failures are retried with backoff so
// the offset never moves past an unindexed position.
func (ix *Indexer) Consume(ctx context.Context, r MessageReader) error {
	backoff := ix.backoff
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			ix.logger.Warn("kafka fetch failed", "error", err, "backoff", backoff.String())
			if !ix.sleep(ctx, &backoff) {
				return nil
			}
			continue
		}
		backoff = ix.backoff

		if !ix.process(ctx, m) {
			return nil
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			ix.logger.Warn("kafka commit failed", "offset", m.Offset, "error", err)
		}
	}
}

// process handles m until it is settled. It returns false when ctx ends
// first, leaving m uncommitted.
func (ix *Indexer) process(ctx context.Context, m kafka.Message) bool {
	backoff := ix.backoff
	for {
		err := ix.Handle(ctx, m)
		switch {
		case err == nil:
			return true
		case errors.Is(err, errInvalidEvent):
			ix.logger.Warn("location message skipped", "offset", m.Offset, "error", err)
			return true
		case ctx.Err() != nil:
			return false
		}
		ix.logger.Warn("location message not indexed", "offset", m.Offset, "error", err, "backoff", backoff.String())
		if !ix.sleep(ctx, &backoff) {
			return false
		}
	}
}

func (ix *Indexer) sleep(ctx context.Context, backoff *time.Duration) bool {
	const maxBackoff = 30 * time.Second
	select {
	case <-ctx.Done():
		return false
	case <-time.After(*backoff):
	}
	*backoff *= 2
	if *backoff > maxBackoff {
		*backoff = maxBackoff
	}
	return true
}
