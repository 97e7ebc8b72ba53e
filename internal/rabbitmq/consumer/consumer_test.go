package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/queue"
)

type fakeBroker struct {
	mu       sync.Mutex
	inbox    map[string][]queue.Envelope
	requeued []queue.Envelope
	parked   []queue.Envelope
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{inbox: map[string][]queue.Envelope{}}
}

func (f *fakeBroker) Consume(ctx context.Context, category string, out chan<- queue.Envelope, _ retry.Strategy) error {
	f.mu.Lock()
	envs := f.inbox[category]
	f.mu.Unlock()

	for _, env := range envs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- env:
		}
	}
	<-ctx.Done()
	return nil
}

func (f *fakeBroker) Requeue(env queue.Envelope, _ retry.Strategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, env)
	return nil
}

func (f *fakeBroker) Park(env queue.Envelope, _ retry.Strategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parked = append(f.parked, env)
	return nil
}

func (f *fakeBroker) snapshot() (requeued, parked []queue.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.Envelope(nil), f.requeued...), append([]queue.Envelope(nil), f.parked...)
}

var strategy = retry.Strategy{Attempts: 1, Delay: time.Millisecond}

func runDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx, strategy, 1)
	time.Sleep(100 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)
}

func TestDispatcher_RoutesByEventName(t *testing.T) {
	broker := newFakeBroker()
	broker.inbox["exam"] = []queue.Envelope{
		{Event: queue.EventExamCreated, Payload: json.RawMessage(`{"n":1}`)},
		{Event: queue.EventExamDeleted, Payload: json.RawMessage(`{"n":2}`)},
	}

	d := NewDispatcher(broker, 3)

	var mu sync.Mutex
	got := map[string]int{}
	record := func(event string) HandlerFunc {
		return func(_ context.Context, _ json.RawMessage) error {
			mu.Lock()
			defer mu.Unlock()
			got[event]++
			return nil
		}
	}

	d.Handle(queue.EventExamCreated, record(queue.EventExamCreated))
	d.Handle(queue.EventExamDeleted, record(queue.EventExamDeleted))

	runDispatcher(t, d)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, got[queue.EventExamCreated])
	assert.Equal(t, 1, got[queue.EventExamDeleted])

	requeued, parked := broker.snapshot()
	assert.Empty(t, requeued)
	assert.Empty(t, parked)
}

func TestDispatcher_PermanentRejectionDropped(t *testing.T) {
	broker := newFakeBroker()
	broker.inbox["exam"] = []queue.Envelope{{Event: queue.EventExamCreated}}

	d := NewDispatcher(broker, 3)
	d.Handle(queue.EventExamCreated, func(_ context.Context, _ json.RawMessage) error {
		return fmt.Errorf("%w: missing user reference", ErrReject)
	})

	runDispatcher(t, d)

	requeued, parked := broker.snapshot()
	assert.Empty(t, requeued)
	assert.Empty(t, parked)
}

func TestDispatcher_TransientFailureRequeuedWithAttempts(t *testing.T) {
	broker := newFakeBroker()
	broker.inbox["exam"] = []queue.Envelope{{Event: queue.EventExamCreated, Attempts: 0}}

	d := NewDispatcher(broker, 3)
	d.Handle(queue.EventExamCreated, func(_ context.Context, _ json.RawMessage) error {
		return errors.New("store unavailable")
	})

	runDispatcher(t, d)

	requeued, parked := broker.snapshot()
	require.Len(t, requeued, 1)
	assert.Equal(t, 1, requeued[0].Attempts)
	assert.Empty(t, parked)
}

func TestDispatcher_ExhaustedAttemptsParked(t *testing.T) {
	broker := newFakeBroker()
	broker.inbox["exam"] = []queue.Envelope{{Event: queue.EventExamCreated, Attempts: 2}}

	d := NewDispatcher(broker, 3)
	d.Handle(queue.EventExamCreated, func(_ context.Context, _ json.RawMessage) error {
		return errors.New("store unavailable")
	})

	runDispatcher(t, d)

	requeued, parked := broker.snapshot()
	assert.Empty(t, requeued)
	require.Len(t, parked, 1)
	assert.Equal(t, 3, parked[0].Attempts)
}

func TestDispatcher_UnknownEventDropped(t *testing.T) {
	broker := newFakeBroker()
	broker.inbox["exam"] = []queue.Envelope{{Event: "exam.archived"}}

	d := NewDispatcher(broker, 3)
	d.Handle(queue.EventExamCreated, func(_ context.Context, _ json.RawMessage) error {
		t.Fatal("handler must not run for an unregistered event")
		return nil
	})

	runDispatcher(t, d)

	requeued, parked := broker.snapshot()
	assert.Empty(t, requeued)
	assert.Empty(t, parked)
}
