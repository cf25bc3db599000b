package service

import (
	"context"
	"log/slog"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/phone"
	repository "github.com/aniladanir/sms-campaign-service/internal/repository/campaign"
	"github.com/google/uuid"
)

type SingleResult struct {
	Success          bool      `json:"success"`
	MessageID        uuid.UUID `json:"message_id"`
	GatewayReference string    `json:"gateway_reference,omitempty"`
	Cost             string    `json:"cost,omitempty"`
	Error            string    `json:"error,omitempty"`
}

type RejectedNumber struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	Success bool `json:"success"`
	*domain.CampaignResult
	Rejected []RejectedNumber `json:"rejected,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type HistoryPage struct {
	Messages   []domain.Campaign `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

type MessagingService interface {
	SendSingle(ctx context.Context, owner int64, phone, body string) (*SingleResult, error)
	SendBulk(ctx context.Context, owner int64, phones []string, body string) (*BulkResult, error)
	History(ctx context.Context, owner int64, limit, offset int) (*HistoryPage, error)
	Status(ctx context.Context, owner int64, id uuid.UUID) (*domain.CampaignDetail, error)
	Statistics(ctx context.Context, owner int64) (*domain.Statistics, error)
	// RecordDeliveryReport applies a provider delivery receipt. It reports whether the
	// recipient changed state.
	RecordDeliveryReport(ctx context.Context, reference string, status domain.DeliveryStatus) (bool, error)
}

type messagingService struct {
	ledger     repository.Repository
	dispatcher Dispatcher
	status     StatusAggregator
	logger     *slog.Logger
}

func NewMessagingService(ledger repository.Repository, dispatcher Dispatcher, status StatusAggregator, logger *slog.Logger) MessagingService {
	return &messagingService{
		ledger:     ledger,
		dispatcher: dispatcher,
		status:     status,
		logger:     logger,
	}
}

// SendSingle canonicalizes the number and sends one message. A gateway failure is reported
// through both the result and a *domain.GatewayError.
func (s *messagingService) SendSingle(ctx context.Context, owner int64, raw, body string) (*SingleResult, error) {
	number, err := phone.Canonicalize(raw)
	if err != nil {
		return nil, err
	}

	res, err := s.dispatcher.DispatchSingle(ctx, owner, number, body)
	if err != nil {
		return nil, err
	}

	r := res.Results[0]
	out := &SingleResult{
		Success:          r.Status != domain.DeliveryFailed,
		MessageID:        res.CampaignID,
		GatewayReference: r.GatewayReference,
		Cost:             r.Cost,
	}
	if !out.Success {
		out.Error = r.Error
		return out, &domain.GatewayError{Reason: r.Error}
	}
	return out, nil
}

// SendBulk drops entries that are not valid canonical numbers and sends to the rest
func (s *messagingService) SendBulk(ctx context.Context, owner int64, raw []string, body string) (*BulkResult, error) {
	if len(raw) > domain.MaxRecipients {
		return nil, domain.ErrTooManyRecipients
	}

	var (
		numbers  = make([]string, 0, len(raw))
		rejected []RejectedNumber
	)
	for _, entry := range raw {
		number, err := phone.Canonicalize(entry)
		if err != nil {
			rejected = append(rejected, RejectedNumber{Phone: entry, Reason: err.Error()})
			continue
		}
		numbers = append(numbers, number)
	}

	if len(numbers) == 0 {
		return nil, domain.ErrNoRecipients
	}
	if len(rejected) > 0 {
		s.logger.Info("dropped invalid phone numbers", "owner", owner, "rejected", len(rejected))
	}

	res, err := s.dispatcher.DispatchBulk(ctx, owner, numbers, body)
	if err != nil {
		return nil, err
	}
	return &BulkResult{Success: true, CampaignResult: res, Rejected: rejected}, nil
}

func (s *messagingService) History(ctx context.Context, owner int64, limit, offset int) (*HistoryPage, error) {
	limit, offset = repository.ClampPage(limit, offset)

	campaigns, err := s.ledger.ListCampaignsByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Messages:   campaigns,
		Pagination: Pagination{Limit: limit, Offset: offset},
	}, nil
}

// Status returns the campaign detail. Campaigns of other owners are reported as not found.
func (s *messagingService) Status(ctx context.Context, owner int64, id uuid.UUID) (*domain.CampaignDetail, error) {
	c, err := s.ledger.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != owner {
		return nil, domain.ErrNotFound
	}
	return s.status.Detail(ctx, id)
}

func (s *messagingService) Statistics(ctx context.Context, owner int64) (*domain.Statistics, error) {
	return s.ledger.OwnerStatistics(ctx, owner)
}

func (s *messagingService) RecordDeliveryReport(ctx context.Context, reference string, status domain.DeliveryStatus) (bool, error) {
	if reference == "" {
		return false, domain.ErrNotFound
	}

	rec, err := s.ledger.FindRecipientByReference(ctx, reference)
	if err != nil {
		return false, err
	}

	logger := s.logger.With(slog.Int("recipientId", rec.ID), slog.String("gatewayReference", reference))

	// only a delivery confirmation moves a sent recipient forward
	if status != domain.DeliveryDelivered {
		logger.Info("ignoring delivery report", "reportedStatus", status, "deliveryStatus", rec.DeliveryStatus)
		return false, nil
	}

	changed, err := s.ledger.MarkDelivered(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if !changed {
		logger.Info("delivery report did not change recipient", "deliveryStatus", rec.DeliveryStatus)
	}
	return changed, nil
}
