package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesAllSubscribers(t *testing.T) {
	bus := NewEventBus()

	var calls atomic.Int32
	handler := func(ctx context.Context, event Event) error {
		calls.Add(1)
		return nil
	}
	bus.Subscribe(EventLoginResult, "first", handler)
	bus.Subscribe(EventLoginResult, "second", handler)
	bus.Subscribe(EventCheckResult, "other", handler)

	bus.Emit(context.Background(), Event{Type: EventLoginResult, Source: "test"})
	bus.Stop()

	assert.Equal(t, int32(2), calls.Load())
}

func TestEmitSyncReturnsHandlerError(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	wantErr := errors.New("boom")
	bus.Subscribe(EventShutdown, "failing", func(ctx context.Context, event Event) error {
		return wantErr
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventShutdown})
	assert.ErrorIs(t, err, wantErr)
}

func TestEmitSyncRecoversPanic(t *testing.T) {
	bus := NewEventBus()
	defer bus.Stop()

	bus.Subscribe(EventShutdown, "panicking", func(ctx context.Context, event Event) error {
		panic("handler bug")
	})

	require.NotPanics(t, func() {
		bus.EmitSync(context.Background(), Event{Type: EventShutdown})
	})
}

func TestEmitAfterStopIsNoop(t *testing.T) {
	bus := NewEventBus()

	called := make(chan struct{}, 1)
	bus.Subscribe(EventShutdown, "late", func(ctx context.Context, event Event) error {
		called <- struct{}{}
		return nil
	})

	bus.Stop()
	bus.Emit(context.Background(), Event{Type: EventShutdown})

	select {
	case <-called:
		t.Fatal("handler ran after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStopChCloses(t *testing.T) {
	bus := NewEventBus()

	select {
	case <-bus.StopCh():
		t.Fatal("stop channel closed before Stop")
	default:
	}

	bus.Stop()

	select {
	case <-bus.StopCh():
	case <-time.After(time.Second):
		t.Fatal("stop channel not closed")
	}
}
