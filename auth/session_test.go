package auth

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestSessionNotifier(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	t.Run("OK", func(t *testing.T) {
		var notifier SessionNotifier

		reason := errors.New("refresh rejected")

		var got []error
		notifier.Subscribe(SessionObserverFunc(func(_ context.Context, err error) {
			got = append(got, err)
		}))

		notifier.SessionExpired(context.Background(), reason)

		assert.Equal(t, []error{reason}, got)
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		var notifier SessionNotifier

		calls := 0
		unsubscribe := notifier.Subscribe(SessionObserverFunc(func(context.Context, error) {
			calls++
		}))

		notifier.SessionExpired(context.Background(), ErrNoRefreshToken)
		unsubscribe()
		notifier.SessionExpired(context.Background(), ErrNoRefreshToken)

		assert.Equal(t, 1, calls)
	})

	t.Run("Concurrent", func(t *testing.T) {
		var notifier SessionNotifier

		var mu sync.Mutex
		calls := 0

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()

				unsubscribe := notifier.Subscribe(SessionObserverFunc(func(context.Context, error) {
					mu.Lock()
					calls++
					mu.Unlock()
				}))
				notifier.SessionExpired(context.Background(), ErrNoRefreshToken)
				unsubscribe()
			}()
		}
		wg.Wait()

		assert.GreaterOrEqual(t, calls, 10)
	})
}
