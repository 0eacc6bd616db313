package auth

import (
	"context"
	"sync"
)

// SessionObserver is notified when a session ends because its tokens could not be renewed.
//
// The reason is the error that ended the session: ErrNoRefreshToken when
// no refresh token was stored, otherwise the refresh error.
type SessionObserver interface {
	SessionExpired(ctx context.Context, reason error)
}

// SessionObserverFunc is an adapter to allow the use of ordinary functions as a SessionObserver.
type SessionObserverFunc func(ctx context.Context, reason error)

// SessionExpired implements SessionObserver.
func (fn SessionObserverFunc) SessionExpired(ctx context.Context, reason error) {
	fn(ctx, reason)
}

// SessionNotifier fans out session expiry events to any number of subscribers.
//
// The zero value is ready to use.
type SessionNotifier struct {
	observers map[int]SessionObserver
	nextID    int

	initOnce sync.Once
	mu       sync.RWMutex
}

func (n *SessionNotifier) init() {
	n.initOnce.Do(func() {
		if n.observers == nil {
			n.observers = make(map[int]SessionObserver)
		}
	})
}

// Subscribe registers an observer and returns a function that removes it.
func (n *SessionNotifier) Subscribe(observer SessionObserver) (unsubscribe func()) {
	n.init()
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers[id] = observer

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		delete(n.observers, id)
	}
}

// SessionExpired implements SessionObserver.
func (n *SessionNotifier) SessionExpired(ctx context.Context, reason error) {
	n.init()
	n.mu.RLock()
	observers := make([]SessionObserver, 0, len(n.observers))
	for _, observer := range n.observers {
		observers = append(observers, observer)
	}
	n.mu.RUnlock()

	for _, observer := range observers {
		observer.SessionExpired(ctx, reason)
	}
}
