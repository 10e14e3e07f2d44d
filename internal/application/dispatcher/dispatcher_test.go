package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	"github.com/garyjia/doc-lifecycle/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) hasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

func newStatusEvent() *event.Event {
	return event.NewEvent(event.TypeStatusChanged,
		entity.SubjectRef{Type: entity.SubjectQuote, ID: 1},
		map[string]interface{}{event.KeyNewStatus: "CONFIRMED"},
		time.Now())
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(event.TypeStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeVersionActivated, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), newStatusEvent()))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []string{"first", "second"}, d.Handlers(event.TypeStatusChanged))
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	called := false

	d.Subscribe(event.TypeStatusChanged, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("boom")
	})
	d.Subscribe(event.TypeStatusChanged, "after", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	err := d.Dispatch(context.Background(), newStatusEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, called)
	assert.True(t, logger.hasError("Handler error"))
}

func TestDispatch_RecoversPanics(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.Subscribe(event.TypeStatusChanged, "panicky", func(ctx context.Context, evt *event.Event) error {
		panic("bad handler")
	})

	err := d.Dispatch(context.Background(), newStatusEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
	assert.True(t, logger.hasError("Handler panic recovered"))
}

func TestDispatchAsync_SurvivesCallerCancellation(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32
	var sawCancel atomic.Bool

	for i := 0; i < 3; i++ {
		d.Subscribe(event.TypeStatusChanged, fmt.Sprintf("h%d", i), func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			if ctx.Err() != nil {
				sawCancel.Store(true)
			}
			calls.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.DispatchAsync(ctx, newStatusEvent())
	cancel()

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
	assert.False(t, sawCancel.Load())
}

func TestDispatchAsync_HandlerTimeout(t *testing.T) {
	d := NewDispatcher(WithHandlerTimeout(5 * time.Millisecond))
	var deadlineHit atomic.Bool

	d.Subscribe(event.TypeStatusChanged, "slow", func(ctx context.Context, evt *event.Event) error {
		<-ctx.Done()
		deadlineHit.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})

	d.DispatchAsync(context.Background(), newStatusEvent())
	require.NoError(t, d.Close(context.Background()))
	assert.True(t, deadlineHit.Load())
}

func TestClose(t *testing.T) {
	t.Run("rejects events after close", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))
		require.NoError(t, d.Close(context.Background()))

		assert.ErrorIs(t, d.Dispatch(context.Background(), newStatusEvent()), ErrClosed)
		d.DispatchAsync(context.Background(), newStatusEvent())
		assert.True(t, logger.hasError("Cannot dispatch async event, dispatcher is closed"))
	})

	t.Run("second close fails", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close(context.Background()))
		assert.ErrorIs(t, d.Close(context.Background()), ErrClosed)
	})

	t.Run("honours the close deadline", func(t *testing.T) {
		d := NewDispatcher()
		release := make(chan struct{})
		d.Subscribe(event.TypeStatusChanged, "blocked", func(ctx context.Context, evt *event.Event) error {
			<-release
			return nil
		})
		d.DispatchAsync(context.Background(), newStatusEvent())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := d.Close(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		close(release)
	})
}
