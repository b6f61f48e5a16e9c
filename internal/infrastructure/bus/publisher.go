package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"main/internal/config"
	entity "main/internal/domain/entity/ticker"
	"main/internal/domain/interfaces"
)

var _ interfaces.MarketPublisher = (*Publisher)(nil)

// Publisher fans enriched ticker records out to RabbitMQ fanout exchanges.
type Publisher struct {
	channel   *amqp.Channel
	exchanges config.RabbitMQConfig
	logger    *logrus.Entry
	mu        sync.Mutex
}

// NewPublisher declares the bar and option exchanges on a fresh channel.
func NewPublisher(conn *amqp.Connection, cfg config.RabbitMQConfig, logger *logrus.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	for _, name := range []string{cfg.BarsExchange, cfg.OptionsExchange} {
		if name == "" {
			ch.Close()
			return nil, errors.New("exchange name cannot be empty")
		}
		if err := ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}

	return &Publisher{
		channel:   ch,
		exchanges: cfg,
		logger:    logger.WithField("component", "bus_publisher"),
	}, nil
}

// Close releases the AMQP channel.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.channel.Close(); err != nil {
		p.logger.WithError(err).Error("close rabbitmq channel")
	}
}

// PublishUnderlyingBar sends one bar to the bars exchange.
func (p *Publisher) PublishUnderlyingBar(ctx context.Context, bar *entity.UnderlyingBar) error {
	return p.publish(ctx, p.exchanges.BarsExchange, bar)
}

// PublishOptionSnapshot sends one enriched snapshot to the options exchange.
func (p *Publisher) PublishOptionSnapshot(ctx context.Context, snapshot *entity.OptionSnapshot) error {
	return p.publish(ctx, p.exchanges.OptionsExchange, snapshot)
}

func (p *Publisher) publish(ctx context.Context, exchange string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
