package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// RoutingKey возвращает ключ маршрутизации события: measurement.<status>.
func RoutingKey(status models.Status) string {
	return "measurement." + string(status)
}

// EventPublisher публикует события смены состояния замеров.
// Канал amqp не потокобезопасен, поэтому публикация сериализуется.
type EventPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewEventPublisher создаёт издателя поверх настроенного канала.
func NewEventPublisher(ch *amqp.Channel, exchange string) *EventPublisher {
	return &EventPublisher{ch: ch, exchange: exchange}
}

// Publish отправляет событие в exchange.
func (p *EventPublisher) Publish(ctx context.Context, event models.MeasurementEvent) error {
	const op = "rabbitmq.Publish"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := PublishMessage(p.ch, p.exchange, RoutingKey(event.Status), event); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает канал.
func (p *EventPublisher) Close() error {
	return p.ch.Close()
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct{}

// Publish ничего не делает.
func (NoopPublisher) Publish(context.Context, models.MeasurementEvent) error { return nil }
