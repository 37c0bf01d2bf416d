package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
)

// Publisher sends booking events to RabbitMQ.  Each publish opens its own
// connection: events are rare (one per paid booking) and the kiosk must
// keep working while the broker is down.  Errors are logged and returned
// so callers can ignore them.
type Publisher struct {
	url string
	log *logger.Logger
}

// NewPublisher returns a publisher for url.  An empty url yields a
// publisher whose methods are no-ops.
func NewPublisher(url string, log *logger.Logger) *Publisher {
	return &Publisher{url: url, log: logger.Or(log).WithComponent("queue")}
}

// Enabled reports whether a broker URL is configured.
func (p *Publisher) Enabled() bool { return p != nil && p.url != "" }

// PublishBookingPaid publishes ev to the booking.paid queue.
func (p *Publisher) PublishBookingPaid(ctx context.Context, ev BookingPaidEvent) error {
	return p.publish(ctx, BookingPaidQueue, ev)
}

// PublishCounterBooking publishes ev to the booking.counter queue.
func (p *Publisher) PublishCounterBooking(ctx context.Context, ev CounterBookingEvent) error {
	return p.publish(ctx, CounterBookingQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	if !p.Enabled() {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.Warn("rabbitmq dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.Warn("rabbitmq channel open failed", "error", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		p.log.Warn("rabbitmq queue declare failed", "queue", queue, "error", err)
		return fmt.Errorf("declare %s: %w", queue, err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         queue,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		p.log.Warn("rabbitmq publish failed", "queue", queue, "error", err)
		return fmt.Errorf("publish %s: %w", queue, err)
	}
	p.log.Debug("event published", "queue", queue)
	return nil
}
