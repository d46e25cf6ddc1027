package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Nzyazin/bankflow/internal/core/logger"
	"github.com/Nzyazin/bankflow/internal/core/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher announces recorded operations to interested consumers.
type Publisher interface {
	PublishOperationRecorded(ctx context.Context, op models.Operation) error
	Close() error
}

// OperationRecorded is the JSON body of an operations.recorded message.
type OperationRecorded struct {
	ID            string  `json:"id"`
	AccountNumber string  `json:"account_number"`
	OperationType string  `json:"operation_type"`
	Amount        string  `json:"amount"`
	Interest      *string `json:"interest,omitempty"`
	Payments      *int64  `json:"payments,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func NewOperationRecorded(op models.Operation) OperationRecorded {
	event := OperationRecorded{
		ID:            op.ID.String(),
		AccountNumber: op.AccountNumber,
		OperationType: string(op.OperationType),
		Amount:        op.Amount.String(),
		Payments:      op.Payments,
		CreatedAt:     op.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if op.Interest != nil {
		s := op.Interest.String()
		event.Interest = &s
	}
	return event
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
}

type rabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	log     logger.Logger
}

// NewPublisher dials RabbitMQ and declares the topic exchange. With an empty
// URL it returns a publisher that drops every event.
func NewPublisher(cfg Config, log logger.Logger) (Publisher, error) {
	if cfg.URL == "" {
		log.Info("RabbitMQ URL not set, operation events disabled")
		return NopPublisher{}, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("RabbitMQ publisher initialized",
		logger.StringField("exchange", cfg.Exchange),
		logger.StringField("routing_key", cfg.RoutingKey))

	return &rabbitPublisher{conn: conn, channel: channel, cfg: cfg, log: log}, nil
}

func (p *rabbitPublisher) PublishOperationRecorded(ctx context.Context, op models.Operation) error {
	body, err := json.Marshal(NewOperationRecorded(op))
	if err != nil {
		return fmt.Errorf("marshal operation event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    op.ID.String(),
			Timestamp:    op.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish operation %s: %w", op.ID, err)
	}
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.log.Info("Closing RabbitMQ publisher")
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("close channel: %w", err)
	}
	return p.conn.Close()
}

type NopPublisher struct{}

func (NopPublisher) PublishOperationRecorded(context.Context, models.Operation) error { return nil }
func (NopPublisher) Close() error                                                     { return nil }
