package driverapp

import "context"

// Screen scopes the requests a view starts. Closing it cancels whatever is
// still in flight so late responses never reach a torn-down view.
type Screen struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func OpenScreen(parent context.Context) *Screen {
	ctx, cancel := context.WithCancel(parent)
	return &Screen{ctx: ctx, cancel: cancel}
}

func (s *Screen) Context() context.Context { return s.ctx }

func (s *Screen) Close() { s.cancel() }

// Alive reports whether results may still be applied to the view.
func (s *Screen) Alive() bool { return s.ctx.Err() == nil }
