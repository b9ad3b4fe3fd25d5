package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// HoldRequest describes the funds to reserve for one booking.
type HoldRequest struct {
	BookingID int64
	Amount    int64
	Provider  string
	Phone     string
}

// Processor reserves funds when a payment is created and settles them when
// the driver confirms it.
type Processor interface {
	Name() string
	Hold(ctx context.Context, h HoldRequest) (string, error)
	Capture(ctx context.Context, ref string) error
	Cancel(ctx context.Context, ref string) error
}

type holdState int

const (
	held holdState = iota
	captured
	cancelled
)

// LocalProcessor settles everything in memory.
type LocalProcessor struct {
	mu    sync.Mutex
	holds map[string]holdState
}

func NewLocalProcessor() *LocalProcessor {
	return &LocalProcessor{holds: make(map[string]holdState)}
}

func (p *LocalProcessor) Name() string { return "local" }

func (p *LocalProcessor) Hold(_ context.Context, h HoldRequest) (string, error) {
	if h.Amount <= 0 {
		return "", fmt.Errorf("amount must be > 0")
	}
	ref := "local_" + uuid.NewString()
	p.mu.Lock()
	p.holds[ref] = held
	p.mu.Unlock()
	return ref, nil
}

func (p *LocalProcessor) Capture(_ context.Context, ref string) error {
	return p.settle(ref, captured)
}

func (p *LocalProcessor) Cancel(_ context.Context, ref string) error {
	return p.settle(ref, cancelled)
}

func (p *LocalProcessor) settle(ref string, to holdState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.holds[ref]
	if !ok {
		return fmt.Errorf("unknown payment reference %q", ref)
	}
	if st != held {
		return fmt.Errorf("payment %q already settled", ref)
	}
	p.holds[ref] = to
	return nil
}
