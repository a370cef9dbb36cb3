package task

import (
	"fmt"
	"log/slog"
)

// Placeholder defers construction of its real event until activation. The
// unfold callback runs at Begin time against live state, so the concrete
// sub-events can depend on where the robot actually is by the time the
// earlier phases have run. Unfolding must not start any side effects of
// its own; it only builds a Standby that Begin then activates.
type Placeholder struct {
	name   string
	unfold func() (Standby, error)
	began  bool
}

// NewPlaceholder wraps a deferred event construction.
func NewPlaceholder(name string, unfold func() (Standby, error)) *Placeholder {
	return &Placeholder{name: name, unfold: unfold}
}

func (p *Placeholder) Name() string { return p.name }

func (p *Placeholder) Begin(finished func(Status)) (Active, error) {
	if p.began {
		return nil, fmt.Errorf("%w: placeholder %q", ErrAlreadyActive, p.name)
	}
	p.began = true

	real, err := p.unfold()
	if err != nil {
		slog.Error("placeholder could not be resolved", "event", p.name, "error", err)
		return nil, fmt.Errorf("resolving %q: %w", p.name, err)
	}
	return real.Begin(finished)
}
