package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const DefaultQueue = "campaign_events"

// CampaignEvent is emitted once a campaign reaches its final status
type CampaignEvent struct {
	CampaignID uuid.UUID             `json:"message_id"`
	OwnerID    int64                 `json:"owner_id"`
	Kind       domain.CampaignKind   `json:"kind"`
	Status     domain.CampaignStatus `json:"status"`
	Total      int                   `json:"total_recipients"`
	Successful int                   `json:"successful"`
	Failed     int                   `json:"failed"`
	FinishedAt time.Time             `json:"finished_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev CampaignEvent) error
	Close() error
}

type rabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	mtx     sync.Mutex
	logger  *slog.Logger
}

// NewRabbitPublisher dials the broker and declares a durable queue for campaign events
func NewRabbitPublisher(url, queue string, logger *slog.Logger) (Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not open rabbitmq channel: %w", err)
	}

	if _, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("could not declare queue %s: %w", queue, err)
	}

	return &rabbitPublisher{
		conn:    conn,
		channel: ch,
		queue:   queue,
		logger:  logger,
	}, nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, ev CampaignEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// amqp channels are not safe for concurrent publishing
	p.mtx.Lock()
	defer p.mtx.Unlock()

	err = p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.CampaignID.String(),
			Timestamp:    ev.FinishedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("could not publish to %s: %w", p.queue, err)
	}

	p.logger.Debug("published campaign event", "queue", p.queue, "messageId", ev.CampaignID.String())
	return nil
}

func (p *rabbitPublisher) Close() error {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, CampaignEvent) error { return nil }
func (nopPublisher) Close() error                                  { return nil }
