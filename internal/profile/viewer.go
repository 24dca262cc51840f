package profile

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded reports that a load finished after a newer one had been
// initiated; its result was discarded without touching the committed view.
var ErrSuperseded = errors.New("load superseded by a newer request")

// ProfileLoader abstracts Loader for the viewer.
type ProfileLoader interface {
	Load(ctx context.Context, login string) (Derived, error)
}

// Viewer owns the "currently displayed" derived profile and guarantees that
// only the most recently initiated load may commit, regardless of the order
// in which concurrent loads happen to complete. Each Show call takes a
// generation number at initiation; the result is compared against the
// latest generation before commit and dropped if stale.
type Viewer struct {
	loader ProfileLoader

	mu      sync.Mutex
	gen     uint64
	current *Derived
}

func NewViewer(loader ProfileLoader) *Viewer {
	return &Viewer{loader: loader}
}

// Show loads a profile and commits it as the current view unless a newer
// Show was initiated in the meantime, in which case the result (success or
// failure) is discarded and ErrSuperseded is returned. A failed load of the
// latest generation leaves the previously committed view untouched: old and
// new state are never mixed.
func (v *Viewer) Show(ctx context.Context, login string) (Derived, error) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	v.mu.Unlock()

	d, err := v.loader.Load(ctx, login)

	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen {
		return Derived{}, ErrSuperseded
	}
	if err != nil {
		return Derived{}, err
	}

	v.current = &d
	return d, nil
}

// Current returns the last committed view, if any.
func (v *Viewer) Current() (Derived, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return Derived{}, false
	}
	return *v.current, true
}

// Clear drops the committed view (used on logout).
func (v *Viewer) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.current = nil
}
