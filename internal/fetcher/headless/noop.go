package headless

import (
	"context"
)

// Noop implements scraper.LinkRenderer for runs where headless browsing is
// switched off. Every site then fails discovery with ErrDisabled.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// RenderLinks always returns ErrDisabled.
func (Noop) RenderLinks(_ context.Context, _ string) ([]string, error) {
	return nil, ErrDisabled
}
