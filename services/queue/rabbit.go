package queuesvc

import (
	"context"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type rabbitClient struct {
	conn *amqp.Connection
	q    amqp.Queue
}

var _ Client = (*rabbitClient)(nil)

// NewRabbitClient connects to RabbitMQ and declares a durable queue with the given name.
func NewRabbitClient(url string, queueName string) (Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring queue")
	}
	// publish/consume open their own channels
	_ = ch.Close()
	return &rabbitClient{conn: conn, q: q}, nil
}

func (r *rabbitClient) Publish(ctx context.Context, job string) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "opening channel")
	}
	defer ch.Close()
	err = ch.PublishWithContext(ctx,
		"", r.q.Name, false, false,
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			Body:         []byte(job),
		},
	)
	return errors.Wrap(err, "publishing job")
}

func (r *rabbitClient) Consume(ctx context.Context) (<-chan string, error) {
	ch, err := r.conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "opening channel")
	}
	if err = ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "setting qos")
	}
	msgs, err := ch.Consume(r.q.Name, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, errors.Wrap(err, "consuming")
	}
	out := make(chan string)
	go func() {
		defer ch.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- string(d.Body):
					_ = d.Ack(false)
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *rabbitClient) Close() error {
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Close()
}
