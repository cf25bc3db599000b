package service

import (
	"context"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	repository "github.com/aniladanir/sms-campaign-service/internal/repository/campaign"
	"github.com/google/uuid"
)

// StatusAggregator reads the delivery state of a campaign straight from the ledger
type StatusAggregator interface {
	StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.DeliveryStatus]int, error)
	Detail(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignDetail, error)
}

type statusAggregator struct {
	ledger repository.Repository
}

func NewStatusAggregator(ledger repository.Repository) StatusAggregator {
	return &statusAggregator{ledger: ledger}
}

// StatusCounts returns a count for every delivery status, zero when no recipient holds it
func (a *statusAggregator) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.DeliveryStatus]int, error) {
	grouped, err := a.ledger.StatusCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.DeliveryStatus]int, len(domain.DeliveryStatuses))
	for _, s := range domain.DeliveryStatuses {
		counts[s] = grouped[s]
	}
	return counts, nil
}

func (a *statusAggregator) Detail(ctx context.Context, campaignID uuid.UUID) (*domain.CampaignDetail, error) {
	c, err := a.ledger.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	recipients, err := a.ledger.ListRecipients(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := a.StatusCounts(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	return &domain.CampaignDetail{
		Campaign:      c,
		Recipients:    recipients,
		StatusSummary: counts,
	}, nil
}
