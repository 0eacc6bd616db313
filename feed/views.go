package feed

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Interactor records interactions with posts.
type Interactor interface {
	Interact(ctx context.Context, postID int, interaction InteractionType, duration int) (InteractResponse, error)
}

// ViewTracker measures how long a post stays on screen and reports it as a view.
type ViewTracker struct {
	interactor Interactor
	postID     int
	clock      clockwork.Clock

	mu    sync.Mutex
	start time.Time
}

// ViewTrackerOption configures a ViewTracker.
type ViewTrackerOption interface {
	apply(t *ViewTracker)
}

type viewTrackerOptionFunc func(t *ViewTracker)

func (fn viewTrackerOptionFunc) apply(t *ViewTracker) {
	fn(t)
}

// WithClock sets the clock used to measure views.
func WithClock(clock clockwork.Clock) ViewTrackerOption {
	return viewTrackerOptionFunc(func(t *ViewTracker) {
		t.clock = clock
	})
}

// NewViewTracker returns a new ViewTracker for a post.
func NewViewTracker(interactor Interactor, postID int, opts ...ViewTrackerOption) *ViewTracker {
	t := &ViewTracker{
		interactor: interactor,
		postID:     postID,
	}

	for _, opt := range opts {
		opt.apply(t)
	}

	if t.clock == nil {
		t.clock = clockwork.NewRealClock()
	}

	return t
}

// Start marks the post visible. Starting again restarts the measurement.
func (t *ViewTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.start = t.clock.Now()
}

// Stop marks the post hidden and reports the whole seconds it was visible.
// Views shorter than a second and stops without a start are not reported.
func (t *ViewTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	start := t.start
	t.start = time.Time{}
	t.mu.Unlock()

	if start.IsZero() {
		return nil
	}

	seconds := int(t.clock.Since(start) / time.Second)
	if seconds <= 0 {
		return nil
	}

	_, err := t.interactor.Interact(ctx, t.postID, InteractionView, seconds)

	return err
}
