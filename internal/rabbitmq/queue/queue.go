// Package queue declares the broker topology for the study event pipeline:
// one main queue per event category with a TTL-based retry queue dead-
// lettering back into it, and a shared parking queue for messages that
// exhausted their redeliveries.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const (
	ExchangeName = "study-events"
	DLQName      = "study-notify-dlq"

	retryTTLMillis = int32(5000)
)

// Inbound event names. The routing key of a message is its event name; the
// prefix before the dot is its category.
const (
	EventUserCreated     = "user.created"
	EventExamCreated     = "exam.created"
	EventExamUpdated     = "exam.updated"
	EventExamDeleted     = "exam.deleted"
	EventEventCreated    = "event.created"
	EventSessionCreated  = "session.created"
	EventSessionFinished = "session.finished"
	EventStreakCreated   = "streak.created"
)

// Categories lists every event category with its routing keys.
var Categories = map[string][]string{
	"user":    {EventUserCreated},
	"exam":    {EventExamCreated, EventExamUpdated, EventExamDeleted},
	"event":   {EventEventCreated},
	"session": {EventSessionCreated, EventSessionFinished},
	"streak":  {EventStreakCreated},
}

// CategoryOf returns the category portion of an event name.
func CategoryOf(event string) string {
	if i := strings.IndexByte(event, '.'); i > 0 {
		return event[:i]
	}
	return event
}

func mainQueueName(category string) string {
	return "study-notify-" + category
}

func retryQueueName(category string) string {
	return "study-notify-" + category + "-retry"
}

// Envelope wraps every inbound message: the event name drives dispatch and
// the attempts counter bounds redelivery.
type Envelope struct {
	Event    string          `json:"event"`
	Attempts int             `json:"attempts"`
	Payload  json.RawMessage `json:"payload"`
}

// Broker owns the declared topology and the publishers/consumers over it.
type Broker struct {
	publisher *rabbitmq.Publisher // bound to the study-events exchange
	direct    *rabbitmq.Publisher // default exchange, for retry/DLQ targeting
	consumers map[string]*rabbitmq.Consumer
}

// NewBroker declares the exchange, the per-category main and retry queues,
// and the shared DLQ on the given channel.
func NewBroker(ch *rabbitmq.Channel) (*Broker, error) {
	exchange := rabbitmq.NewExchange(ExchangeName, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	if _, err := qm.DeclareQueue(DLQName, rabbitmq.QueueConfig{Durable: true}); err != nil {
		return nil, fmt.Errorf("failed to declare DLQ: %w", err)
	}

	consumers := make(map[string]*rabbitmq.Consumer, len(Categories))

	for category, keys := range Categories {
		main := mainQueueName(category)

		retryArgs := map[string]interface{}{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": main,
			"x-message-ttl":             retryTTLMillis,
		}
		if _, err := qm.DeclareQueue(retryQueueName(category), rabbitmq.QueueConfig{
			Durable: true,
			Args:    retryArgs,
		}); err != nil {
			return nil, fmt.Errorf("failed to declare retry queue for %s: %w", category, err)
		}

		mainArgs := map[string]interface{}{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": DLQName,
		}
		mainQ, err := qm.DeclareQueue(main, rabbitmq.QueueConfig{
			Durable: true,
			Args:    mainArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to declare main queue for %s: %w", category, err)
		}

		for _, key := range keys {
			if err := ch.QueueBind(mainQ.Name, key, exchange.Name(), false, nil); err != nil {
				return nil, fmt.Errorf("failed to bind %s to %s: %w", key, mainQ.Name, err)
			}
		}

		consumers[category] = rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(mainQ.Name))
	}

	return &Broker{
		publisher: rabbitmq.NewPublisher(ch, exchange.Name()),
		direct:    rabbitmq.NewPublisher(ch, ""),
		consumers: consumers,
	}, nil
}

// Publish routes an event payload to its category queue.
func (b *Broker) Publish(event string, payload interface{}, strategy retry.Strategy) error {
	env := Envelope{Event: event, Payload: mustMarshal(payload)}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return b.publisher.PublishWithRetry(body, event, "application/json", strategy)
}

// Requeue places an envelope on its category's retry queue; after the TTL it
// dead-letters back into the main queue for another attempt.
func (b *Broker) Requeue(env Envelope, strategy retry.Strategy) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return b.direct.PublishWithRetry(body, retryQueueName(CategoryOf(env.Event)), "application/json", strategy)
}

// Park moves an envelope to the shared DLQ. No consumer reads it back;
// parked messages are an operator concern.
func (b *Broker) Park(env Envelope, strategy retry.Strategy) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return b.direct.PublishWithRetry(body, DLQName, "application/json", strategy)
}

// Consume feeds decoded envelopes from the category's main queue into out
// until the context is cancelled. Undecodable bodies are logged and dropped.
func (b *Broker) Consume(ctx context.Context, category string, out chan<- Envelope, strategy retry.Strategy) error {
	consumer, ok := b.consumers[category]
	if !ok {
		return fmt.Errorf("unknown event category %q", category)
	}

	msgChan := make(chan []byte)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m, open := <-msgChan:
				if !open {
					return
				}

				var env Envelope
				if err := json.Unmarshal(m, &env); err != nil {
					zlog.Logger.Error().Err(err).Str("category", category).Msg("failed to unmarshal envelope")
					continue
				}

				out <- env
			}
		}
	}()

	return consumer.ConsumeWithRetry(msgChan, strategy)
}

func mustMarshal(v interface{}) json.RawMessage {
	body, err := json.Marshal(v)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to marshal event payload")
	}
	return body
}
