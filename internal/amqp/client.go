// Package amqp carries report requests and results over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
)

// ErrPermanent marks handler failures that retrying cannot fix; such
// deliveries are dropped instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// RequestHandler processes one report request.
type RequestHandler func(ctx context.Context, msg *ReportRequestMessage) error

type Config struct {
	URL               string
	Exchange          string
	RequestQueue      string
	RequestRoutingKey string
	ResultRoutingKey  string
}

type Client struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	cfg     Config
	logger  *log.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.RequestRoutingKey == "" {
		cfg.RequestRoutingKey = cfg.RequestQueue
	}

	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:    conn,
		channel: channel,
		cfg:     cfg,
		logger:  log.Default(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.cfg.Exchange, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.cfg.RequestQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.cfg.RequestQueue,
		c.cfg.RequestRoutingKey,
		c.cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// One unacked request per worker; report generation is the slow part.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// PublishReportRequest enqueues msg for a report worker.
func (c *Client) PublishReportRequest(ctx context.Context, msg *ReportRequestMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.cfg.RequestRoutingKey, msg.RequestID, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published report request",
		log.FieldRequestID, msg.RequestID,
		log.FieldProjectID, msg.ProjectID,
		log.FieldFiscalYear, msg.FiscalYear,
		"exchange", c.cfg.Exchange,
		log.FieldOperation, log.OpPublish)
	return nil
}

// PublishReportGenerated announces a finished report on the result key.
func (c *Client) PublishReportGenerated(ctx context.Context, msg *ReportGeneratedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.cfg.ResultRoutingKey, msg.RequestID, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published report result",
		log.FieldRequestID, msg.RequestID,
		log.FieldProjectID, msg.ProjectID,
		"status", msg.Status,
		log.FieldOperation, log.OpPublish)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.cfg.Exchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeReportRequests runs handler for each request until ctx is done.
func (c *Client) ConsumeReportRequests(ctx context.Context, handler RequestHandler) error {
	msgs, err := c.channel.Consume(
		c.cfg.RequestQueue, // queue
		"",                 // consumer
		false,              // auto-ack (we want manual ack)
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming report requests", "queue", c.cfg.RequestQueue, log.FieldOperation, log.OpConsume)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			switch dispatch(ctx, c.logger, delivery.Body, handler) {
			case ack:
				delivery.Ack(false)
			case requeue:
				delivery.Nack(false, true)
			case drop:
				delivery.Nack(false, false)
			}
		}
	}
}

type outcome int

const (
	ack outcome = iota
	requeue
	drop
)

// dispatch decodes body and runs handler, deciding what happens to the
// delivery: malformed and permanently failing messages are dropped, other
// failures are requeued.
func dispatch(ctx context.Context, logger *log.Logger, body []byte, handler RequestHandler) outcome {
	msg, err := ReportRequestMessageFromJSON(body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
		return drop
	}

	logger.InfoContext(ctx, "Processing report request",
		log.FieldRequestID, msg.RequestID,
		log.FieldProjectID, msg.ProjectID,
		log.FieldFiscalYear, msg.FiscalYear)

	if err := handler(ctx, msg); err != nil {
		if errors.Is(err, ErrPermanent) || errors.Is(err, ErrInvalidMessage) {
			logger.WarnContext(ctx, "Dropping report request",
				log.FieldError, err,
				log.FieldRequestID, msg.RequestID)
			return drop
		}
		logger.ErrorContext(ctx, "Failed to handle message",
			log.FieldError, err,
			log.FieldRequestID, msg.RequestID)
		return requeue
	}
	return ack
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
