package internal

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/DrGermanius/bookstore/internal/model"
)

// AMQPBroadcaster publishes notifications to a fanout exchange so that
// other services can subscribe with their own queues.
type AMQPBroadcaster struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.SugaredLogger
}

func NewAMQPBroadcaster(url, exchange string, logger *zap.SugaredLogger) (*AMQPBroadcaster, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrap(err, "dial amqp")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, errors.Wrap(err, "declare exchange")
	}

	return &AMQPBroadcaster{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (b *AMQPBroadcaster) Broadcast(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errors.Wrap(err, "marshal notification")
	}

	err = b.channel.PublishWithContext(ctx,
		b.exchange,
		"",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   n.ID,
			Timestamp:   n.Timestamp,
			Type:        n.Type,
			Body:        body,
		},
	)
	if err != nil {
		return errors.Wrap(err, "publish notification")
	}
	return nil
}

func (b *AMQPBroadcaster) Close() {
	if err := b.channel.Close(); err != nil {
		b.logger.Warnf("amqp channel close error: %s", err.Error())
	}
	if err := b.conn.Close(); err != nil {
		b.logger.Warnf("amqp connection close error: %s", err.Error())
	}
}
