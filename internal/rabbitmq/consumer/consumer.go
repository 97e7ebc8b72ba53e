// Package consumer runs the ingestion side of the pipeline: envelopes from
// the category queues are dispatched by event name to registered handlers,
// with permanent rejections dropped and transient failures requeued a
// bounded number of times before parking in the DLQ.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/edgargavioli/pi5-app-estudo-sub001/internal/rabbitmq/queue"
)

// ErrReject marks a message as permanently unprocessable: malformed payload,
// unparseable reference instant, or an owner that cannot be resolved. Wrap it
// to drop the message without redelivery. Any other handler error is treated
// as transient and requeued.
var ErrReject = errors.New("message rejected")

// HandlerFunc processes one event payload.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) error

type broker interface {
	Consume(ctx context.Context, category string, out chan<- queue.Envelope, strategy retry.Strategy) error
	Requeue(env queue.Envelope, strategy retry.Strategy) error
	Park(env queue.Envelope, strategy retry.Strategy) error
}

// Dispatcher fans envelopes from every registered category out to a worker
// pool and routes each to its handler.
type Dispatcher struct {
	broker      broker
	handlers    map[string]HandlerFunc
	maxAttempts int
}

func NewDispatcher(b broker, maxAttempts int) *Dispatcher {
	return &Dispatcher{
		broker:      b,
		handlers:    make(map[string]HandlerFunc),
		maxAttempts: maxAttempts,
	}
}

// Handle registers the handler for an event name. Not safe to call after Run.
func (d *Dispatcher) Handle(event string, h HandlerFunc) {
	d.handlers[event] = h
}

// Run consumes every category that has at least one registered handler and
// processes envelopes on workerCount goroutines until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	var wg sync.WaitGroup
	envChan := make(chan queue.Envelope, workerCount*10)

	for _, category := range d.categories() {
		go func(category string) {
			if err := d.broker.Consume(ctx, category, envChan, strategy); err != nil {
				zlog.Logger.Error().Err(err).Str("category", category).Msg("failed to consume messages")
			}
		}(category)
	}

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(id int) {
			defer wg.Done()

			zlog.Logger.Printf("consumer-%d started", id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("consumer-%d shutting down", id)
					return
				case env, ok := <-envChan:
					if !ok {
						zlog.Logger.Printf("consumer-%d channel closed, shutting down", id)
						return
					}

					d.process(ctx, env, strategy)
				}
			}
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zlog.Logger.Print("dispatcher stopped")
}

func (d *Dispatcher) process(ctx context.Context, env queue.Envelope, strategy retry.Strategy) {
	handler, ok := d.handlers[env.Event]
	if !ok {
		zlog.Logger.Warn().Str("event", env.Event).Msg("no handler registered, dropping message")
		return
	}

	err := handler(ctx, env.Payload)
	if err == nil {
		return
	}

	if errors.Is(err, ErrReject) {
		zlog.Logger.Warn().Err(err).Str("event", env.Event).Msg("message permanently rejected")
		return
	}

	env.Attempts++
	if env.Attempts >= d.maxAttempts {
		zlog.Logger.Error().Err(err).Str("event", env.Event).Int("attempts", env.Attempts).
			Msg("max redelivery attempts reached, parking message")
		if parkErr := d.broker.Park(env, strategy); parkErr != nil {
			zlog.Logger.Error().Err(parkErr).Str("event", env.Event).Msg("failed to park message")
		}
		return
	}

	zlog.Logger.Warn().Err(err).Str("event", env.Event).Int("attempts", env.Attempts).
		Msg("transient failure, requeueing message")
	if requeueErr := d.broker.Requeue(env, strategy); requeueErr != nil {
		zlog.Logger.Error().Err(requeueErr).Str("event", env.Event).Msg("failed to requeue message")
	}
}

func (d *Dispatcher) categories() []string {
	seen := make(map[string]struct{})
	var categories []string
	for event := range d.handlers {
		category := queue.CategoryOf(event)
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		categories = append(categories, category)
	}
	return categories
}
