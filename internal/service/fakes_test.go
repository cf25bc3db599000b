package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/events"
	repository "github.com/aniladanir/sms-campaign-service/internal/repository/campaign"
	"github.com/google/uuid"
)

var _ repository.Repository = (*memLedger)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memLedger keeps campaigns and recipients in memory with the same settlement rules as the sql ledger
type memLedger struct {
	mu         sync.Mutex
	campaigns  map[uuid.UUID]*domain.Campaign
	recipients []*domain.Recipient
	settleErr  error
	createErr  error
}

func newMemLedger() *memLedger {
	return &memLedger{campaigns: make(map[uuid.UUID]*domain.Campaign)}
}

func (m *memLedger) CreateCampaign(_ context.Context, c *domain.Campaign, phones []string) ([]domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, &domain.StorageError{Op: "create campaign", Err: m.createErr}
	}

	now := time.Now().UTC()
	c.ID = uuid.New()
	c.TotalRecipients = len(phones)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	stored := *c
	m.campaigns[c.ID] = &stored

	out := make([]domain.Recipient, len(phones))
	for i, p := range phones {
		rec := &domain.Recipient{
			ID:             len(m.recipients) + 1,
			CampaignID:     c.ID,
			PhoneNumber:    p,
			DeliveryStatus: domain.DeliveryPending,
			CreatedAt:      c.CreatedAt,
			UpdatedAt:      now,
		}
		m.recipients = append(m.recipients, rec)
		out[i] = *rec
	}
	return out, nil
}

func (m *memLedger) settleLocked(rec *domain.Recipient, s domain.Settlement) (bool, error) {
	stored := m.recipients[rec.ID-1]
	if stored.DeliveryStatus != domain.DeliveryPending {
		return false, nil
	}

	c := m.campaigns[stored.CampaignID]
	now := time.Now().UTC()
	switch s.Status {
	case domain.DeliverySent:
		ref := s.GatewayReference
		stored.GatewayReference = &ref
		stored.SentAt = &now
		if s.Cost != "" {
			cost := s.Cost
			stored.Cost = &cost
		}
		c.SuccessfulCount++
	case domain.DeliveryFailed:
		detail := s.ErrorDetail
		stored.ErrorDetail = &detail
		c.FailedCount++
	default:
		return false, errors.New("invalid settlement status")
	}
	stored.DeliveryStatus = s.Status
	stored.UpdatedAt = now
	*rec = *stored
	return true, nil
}

func (m *memLedger) SettleRecipient(_ context.Context, rec *domain.Recipient, s domain.Settlement) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settleErr != nil {
		return false, &domain.StorageError{Op: "settle recipient", Err: m.settleErr}
	}
	return m.settleLocked(rec, s)
}

func (m *memLedger) MarkDelivered(_ context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 1 || id > len(m.recipients) {
		return false, nil
	}
	rec := m.recipients[id-1]
	if rec.DeliveryStatus != domain.DeliverySent {
		return false, nil
	}
	now := time.Now().UTC()
	rec.DeliveryStatus = domain.DeliveryDelivered
	rec.DeliveredAt = &now
	return true, nil
}

func (m *memLedger) AddCampaignCounts(_ context.Context, id uuid.UUID, successful, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.SuccessfulCount += successful
	c.FailedCount += failed
	return nil
}

func (m *memLedger) UpdateCampaignStatus(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memLedger) CompleteCampaign(_ context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return domain.ErrNotFound
	}
	for _, rec := range m.recipients {
		if rec.CampaignID == id && rec.DeliveryStatus == domain.DeliveryPending {
			return domain.ErrCampaignUnsettled
		}
	}
	c.Status = status
	return nil
}

func (m *memLedger) GetCampaign(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memLedger) ListCampaignsByOwner(_ context.Context, owner int64, limit, offset int) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit, offset = repository.ClampPage(limit, offset)
	var all []domain.Campaign
	for _, c := range m.campaigns {
		if c.OwnerID == owner {
			all = append(all, *c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []domain.Campaign{}, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memLedger) ListRecipients(_ context.Context, campaignID uuid.UUID) ([]domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Recipient
	for _, rec := range m.recipients {
		if rec.CampaignID == campaignID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memLedger) GetRecipient(_ context.Context, id int) (*domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id < 1 || id > len(m.recipients) {
		return nil, domain.ErrNotFound
	}
	cp := *m.recipients[id-1]
	return &cp, nil
}

func (m *memLedger) FindRecipientByReference(_ context.Context, ref string) (*domain.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.recipients {
		if rec.GatewayReference != nil && *rec.GatewayReference == ref {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLedger) StatusCounts(_ context.Context, campaignID uuid.UUID) (map[domain.DeliveryStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[domain.DeliveryStatus]int)
	for _, rec := range m.recipients {
		if rec.CampaignID == campaignID {
			counts[rec.DeliveryStatus]++
		}
	}
	return counts, nil
}

func (m *memLedger) OwnerStatistics(_ context.Context, owner int64) (*domain.Statistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats domain.Statistics
	for _, c := range m.campaigns {
		if c.OwnerID != owner {
			continue
		}
		stats.TotalCampaigns++
		stats.TotalRecipients += int64(c.TotalRecipients)
		stats.TotalSuccessful += int64(c.SuccessfulCount)
		stats.TotalFailed += int64(c.FailedCount)
	}
	return &stats, nil
}

func (m *memLedger) SweepStaleRecipients(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		ids   []uuid.UUID
		seen  = make(map[uuid.UUID]bool)
		swept int
	)
	for _, rec := range m.recipients {
		if swept == limit {
			break
		}
		c := m.campaigns[rec.CampaignID]
		if rec.DeliveryStatus != domain.DeliveryPending || c.Status != domain.CampaignProcessing || !rec.CreatedAt.Before(cutoff) {
			continue
		}
		cp := *rec
		ok, err := m.settleLocked(&cp, domain.Settlement{
			Status:      domain.DeliveryFailed,
			ErrorDetail: repository.SweptDetail,
		})
		if err != nil {
			return nil, 0, err
		}
		if ok {
			swept++
			if !seen[rec.CampaignID] {
				seen[rec.CampaignID] = true
				ids = append(ids, rec.CampaignID)
			}
		}
	}
	return ids, swept, nil
}

func (m *memLedger) campaignCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.campaigns)
}

type senderFunc func(ctx context.Context, recipient, body string) domain.Outcome

func (f senderFunc) Send(ctx context.Context, recipient, body string) domain.Outcome {
	return f(ctx, recipient, body)
}

func alwaysSucceeds(_ context.Context, recipient, _ string) domain.Outcome {
	return domain.Outcome{Success: true, GatewayReference: "ref-" + recipient, Cost: "0.8", Attempts: 1}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.CampaignEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.CampaignEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.CampaignEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.CampaignEvent(nil), p.events...)
}
