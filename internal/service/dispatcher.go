package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/events"
	"github.com/aniladanir/sms-campaign-service/internal/gateway"
	"github.com/aniladanir/sms-campaign-service/internal/metrics"
	"github.com/aniladanir/sms-campaign-service/internal/phone"
	repository "github.com/aniladanir/sms-campaign-service/internal/repository/campaign"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultConcurrency  = 5
	DefaultSendInterval = 100 * time.Millisecond

	publishTimeout = 5 * time.Second
)

var tracer = otel.Tracer("github.com/aniladanir/sms-campaign-service/internal/service")

type Dispatcher interface {
	// DispatchBulk sends body to every phone and returns once each recipient is settled
	DispatchBulk(ctx context.Context, owner int64, phones []string, body string) (*domain.CampaignResult, error)
	DispatchSingle(ctx context.Context, owner int64, phone, body string) (*domain.CampaignResult, error)
}

type DispatcherConfig struct {
	// Concurrency bounds the gateway calls in flight for one campaign
	Concurrency int
	// SendInterval is the minimum gap between two gateway calls, shared by all campaigns
	SendInterval time.Duration
}

type dispatcher struct {
	ledger      repository.Repository
	sender      gateway.Sender
	publisher   events.Publisher
	limiter     *rate.Limiter
	concurrency int
	logger      *slog.Logger
}

func NewDispatcher(ledger repository.Repository, sender gateway.Sender, publisher events.Publisher, cfg DispatcherConfig, logger *slog.Logger) Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = DefaultSendInterval
	}
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}

	return &dispatcher{
		ledger:      ledger,
		sender:      sender,
		publisher:   publisher,
		limiter:     rate.NewLimiter(rate.Every(cfg.SendInterval), 1),
		concurrency: cfg.Concurrency,
		logger:      logger,
	}
}

func (d *dispatcher) DispatchBulk(ctx context.Context, owner int64, phones []string, body string) (*domain.CampaignResult, error) {
	return d.dispatch(ctx, domain.KindBulk, owner, phones, body)
}

func (d *dispatcher) DispatchSingle(ctx context.Context, owner int64, phone, body string) (*domain.CampaignResult, error) {
	return d.dispatch(ctx, domain.KindSingle, owner, []string{phone}, body)
}

func (d *dispatcher) dispatch(ctx context.Context, kind domain.CampaignKind, owner int64, phones []string, body string) (*domain.CampaignResult, error) {
	if len(phones) == 0 {
		return nil, domain.ErrNoRecipients
	}
	if len(phones) > domain.MaxRecipients {
		return nil, domain.ErrTooManyRecipients
	}
	for _, p := range phones {
		if err := phone.Validate(p); err != nil {
			return nil, err
		}
	}

	// outcomes must be recorded even when the caller gives up
	persistCtx := context.WithoutCancel(ctx)

	c := &domain.Campaign{
		OwnerID: owner,
		Kind:    kind,
		Body:    body,
		Status:  domain.CampaignProcessing,
	}
	recipients, err := d.ledger.CreateCampaign(persistCtx, c, phones)
	if err != nil {
		return nil, err
	}

	logger := d.logger.With(slog.String("messageId", c.ID.String()), slog.String("kind", string(kind)))
	logger.Info("dispatch started", "recipients", len(recipients))

	ctx, span := tracer.Start(ctx, "dispatch.campaign", trace.WithAttributes(
		attribute.String("campaign.id", c.ID.String()),
		attribute.String("campaign.kind", string(kind)),
		attribute.Int("campaign.recipients", len(recipients)),
	))
	defer span.End()

	results := make([]domain.RecipientResult, len(recipients))

	// a failed settlement cancels sendCtx so no further gateway call starts
	g, sendCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i := range recipients {
		rec := &recipients[i]
		g.Go(func() error {
			s := d.sendOne(sendCtx, rec, body)

			settled, err := d.ledger.SettleRecipient(persistCtx, rec, s)
			if err != nil {
				logger.Error("failed to settle recipient", "recipientId", rec.ID, "error", err.Error())
				return err
			}
			if !settled {
				// someone else settled the row first, report what the ledger holds
				current, err := d.ledger.GetRecipient(persistCtx, rec.ID)
				if err != nil {
					return err
				}
				rec = current
			}

			metrics.RecipientsSettledTotal.WithLabelValues(string(rec.DeliveryStatus), phone.Region(rec.PhoneNumber)).Inc()
			results[i] = resultOf(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "settlement failed")
		return nil, err
	}

	res := &domain.CampaignResult{
		CampaignID: c.ID,
		TotalSent:  len(results),
		Results:    results,
	}
	for _, r := range results {
		if r.Status == domain.DeliveryFailed {
			res.Failed++
		} else {
			res.Successful++
		}
	}

	res.Status = finalStatus(kind, res.Failed)
	c.SuccessfulCount, c.FailedCount = res.Successful, res.Failed
	if err := finish(persistCtx, d.ledger, d.publisher, logger, c, res.Status); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalization failed")
		return nil, err
	}

	logger.Info("dispatch finished", "status", res.Status, "successful", res.Successful, "failed", res.Failed)
	return res, nil
}

// sendOne waits for a send slot and calls the gateway. Once ctx is done no new call starts and
// the recipient is failed with the cancellation cause.
func (d *dispatcher) sendOne(ctx context.Context, rec *domain.Recipient, body string) domain.Settlement {
	if err := d.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return cancelled(err)
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}

	out := d.sender.Send(context.WithoutCancel(ctx), rec.PhoneNumber, body)
	return domain.SettlementFor(out)
}

func cancelled(err error) domain.Settlement {
	return domain.Settlement{
		Status:      domain.DeliveryFailed,
		ErrorDetail: fmt.Sprintf("dispatch cancelled: %v", err),
	}
}

// finalStatus keeps bulk campaigns completed even when every send failed,
// while a single send takes on the status of its only recipient
func finalStatus(kind domain.CampaignKind, failed int) domain.CampaignStatus {
	if kind == domain.KindSingle && failed > 0 {
		return domain.CampaignFailed
	}
	return domain.CampaignCompleted
}

// finish sets the campaign's final status and announces it
func finish(ctx context.Context, ledger repository.Repository, publisher events.Publisher, logger *slog.Logger, c *domain.Campaign, status domain.CampaignStatus) error {
	if err := ledger.CompleteCampaign(ctx, c.ID, status); err != nil {
		return err
	}
	c.Status = status
	metrics.CampaignsFinishedTotal.WithLabelValues(string(c.Kind), string(status)).Inc()

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err := publisher.Publish(pubCtx, events.CampaignEvent{
		CampaignID: c.ID,
		OwnerID:    c.OwnerID,
		Kind:       c.Kind,
		Status:     status,
		Total:      c.TotalRecipients,
		Successful: c.SuccessfulCount,
		Failed:     c.FailedCount,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("failed to publish campaign event", "error", err.Error())
	}
	return nil
}

func resultOf(rec *domain.Recipient) domain.RecipientResult {
	r := domain.RecipientResult{
		Phone:  rec.PhoneNumber,
		Status: rec.DeliveryStatus,
	}
	if rec.GatewayReference != nil {
		r.GatewayReference = *rec.GatewayReference
	}
	if rec.Cost != nil {
		r.Cost = *rec.Cost
	}
	if rec.ErrorDetail != nil {
		r.Error = *rec.ErrorDetail
	}
	return r
}
