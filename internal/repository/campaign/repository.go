package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/cache"
	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	referenceTTL = 24 * time.Hour

	// SweptDetail is recorded on recipients failed by SweepStaleRecipients
	SweptDetail = "dispatch interrupted before the outcome was recorded"
)

type Repository interface {
	CreateCampaign(ctx context.Context, c *domain.Campaign, phones []string) ([]domain.Recipient, error)
	SettleRecipient(ctx context.Context, rec *domain.Recipient, s domain.Settlement) (bool, error)
	MarkDelivered(ctx context.Context, recipientID int) (bool, error)
	AddCampaignCounts(ctx context.Context, id uuid.UUID, successful, failed int) error
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	CompleteCampaign(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error
	GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error)
	ListCampaignsByOwner(ctx context.Context, owner int64, limit, offset int) ([]domain.Campaign, error)
	ListRecipients(ctx context.Context, campaignID uuid.UUID) ([]domain.Recipient, error)
	GetRecipient(ctx context.Context, id int) (*domain.Recipient, error)
	FindRecipientByReference(ctx context.Context, ref string) (*domain.Recipient, error)
	StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.DeliveryStatus]int, error)
	OwnerStatistics(ctx context.Context, owner int64) (*domain.Statistics, error)
	SweepStaleRecipients(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, int, error)
}

type repo struct {
	db    *gorm.DB
	cache cache.Cache
}

// NewCampaignRepository returns the ledger backed by db. cache may be nil.
func NewCampaignRepository(db *gorm.DB, cache cache.Cache) Repository {
	return &repo{db: db, cache: cache}
}

// ClampPage bounds a page request to the allowed window
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func storageErr(op string, err error) error {
	return &domain.StorageError{Op: op, Err: err}
}

// CreateCampaign inserts the campaign and one pending recipient per phone in a single transaction.
// Recipients are returned in input order with their ids populated.
func (r *repo) CreateCampaign(ctx context.Context, c *domain.Campaign, phones []string) ([]domain.Recipient, error) {
	recipients := make([]domain.Recipient, len(phones))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c.TotalRecipients = len(phones)
		if err := tx.Create(c).Error; err != nil {
			return err
		}

		for i, p := range phones {
			recipients[i] = domain.Recipient{
				CampaignID:     c.ID,
				PhoneNumber:    p,
				DeliveryStatus: domain.DeliveryPending,
			}
		}
		return tx.CreateInBatches(&recipients, MaxPageSize).Error
	})
	if err != nil {
		return nil, storageErr("create campaign", err)
	}

	return recipients, nil
}

// SettleRecipient moves a pending recipient to sent or failed and bumps the campaign counters
// in the same transaction. It reports false when the recipient had already left pending.
func (r *repo) SettleRecipient(ctx context.Context, rec *domain.Recipient, s domain.Settlement) (bool, error) {
	var settled bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		settled, err = settle(tx, rec, s, time.Now().UTC())
		return err
	})
	if err != nil {
		return false, storageErr("settle recipient", err)
	}

	if settled && s.Status == domain.DeliverySent && r.cache != nil && s.GatewayReference != "" {
		// a miss only costs a db lookup on delivery reports
		_ = r.cache.Set(ctx, referenceKey(s.GatewayReference), strconv.Itoa(rec.ID), referenceTTL)
	}

	return settled, nil
}

func settle(tx *gorm.DB, rec *domain.Recipient, s domain.Settlement, now time.Time) (bool, error) {
	updates := map[string]any{
		"delivery_status": s.Status,
		"updated_at":      now,
	}

	successful, failed := 0, 0
	switch s.Status {
	case domain.DeliverySent:
		updates["gateway_reference"] = s.GatewayReference
		updates["sent_at"] = now
		if s.Cost != "" {
			updates["cost"] = s.Cost
		}
		successful = 1
	case domain.DeliveryFailed:
		updates["error_detail"] = s.ErrorDetail
		failed = 1
	default:
		return false, fmt.Errorf("invalid settlement status %q", s.Status)
	}

	res := tx.Model(&domain.Recipient{}).
		Where("id = ? AND delivery_status = ?", rec.ID, domain.DeliveryPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if err := addCounts(tx, rec.CampaignID, successful, failed, now); err != nil {
		return false, err
	}

	rec.DeliveryStatus = s.Status
	rec.UpdatedAt = now
	if s.Status == domain.DeliverySent {
		ref := s.GatewayReference
		rec.GatewayReference = &ref
		rec.SentAt = &now
		if s.Cost != "" {
			cost := s.Cost
			rec.Cost = &cost
		}
	} else {
		detail := s.ErrorDetail
		rec.ErrorDetail = &detail
	}

	return true, nil
}

func addCounts(tx *gorm.DB, id uuid.UUID, successful, failed int, now time.Time) error {
	res := tx.Model(&domain.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"successful_count": gorm.Expr("successful_count + ?", successful),
			"failed_count":     gorm.Expr("failed_count + ?", failed),
			"updated_at":       now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkDelivered records a delivery receipt for a sent recipient
func (r *repo) MarkDelivered(ctx context.Context, recipientID int) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Recipient{}).
		Where("id = ? AND delivery_status = ?", recipientID, domain.DeliverySent).
		Updates(map[string]any{
			"delivery_status": domain.DeliveryDelivered,
			"delivered_at":    now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, storageErr("mark delivered", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddCampaignCounts increments the campaign counters by the given amounts
func (r *repo) AddCampaignCounts(ctx context.Context, id uuid.UUID, successful, failed int) error {
	err := addCounts(r.db.WithContext(ctx), id, successful, failed, time.Now().UTC())
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err != nil {
		return storageErr("update campaign counts", err)
	}
	return nil
}

func (r *repo) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	res := r.db.WithContext(ctx).Model(&domain.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return storageErr("update campaign status", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CompleteCampaign sets a final status, refusing while any recipient is still pending
func (r *repo) CompleteCampaign(ctx context.Context, id uuid.UUID, status domain.CampaignStatus) error {
	db := r.db.WithContext(ctx)
	pending := db.Model(&domain.Recipient{}).
		Select("1").
		Where("campaign_id = ? AND delivery_status = ?", id, domain.DeliveryPending)

	res := db.Model(&domain.Campaign{}).
		Where("id = ?", id).
		Where("NOT EXISTS (?)", pending).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return storageErr("complete campaign", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	if _, err := r.GetCampaign(ctx, id); err != nil {
		return err
	}
	return domain.ErrCampaignUnsettled
}

func (r *repo) GetCampaign(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	var c domain.Campaign
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get campaign", err)
	}
	return &c, nil
}

// ListCampaignsByOwner returns the owner's campaigns newest first
func (r *repo) ListCampaignsByOwner(ctx context.Context, owner int64, limit, offset int) ([]domain.Campaign, error) {
	limit, offset = ClampPage(limit, offset)

	campaigns := make([]domain.Campaign, 0, limit)
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", owner).
		Order("created_at DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&campaigns).Error
	if err != nil {
		return nil, storageErr("list campaigns", err)
	}
	return campaigns, nil
}

func (r *repo) ListRecipients(ctx context.Context, campaignID uuid.UUID) ([]domain.Recipient, error) {
	var recipients []domain.Recipient
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id").
		Find(&recipients).Error
	if err != nil {
		return nil, storageErr("list recipients", err)
	}
	return recipients, nil
}

func (r *repo) GetRecipient(ctx context.Context, id int) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get recipient", err)
	}
	return &rec, nil
}

// FindRecipientByReference resolves a gateway reference, trying the cache before the database
func (r *repo) FindRecipientByReference(ctx context.Context, ref string) (*domain.Recipient, error) {
	if r.cache != nil {
		if val, err := r.cache.Get(ctx, referenceKey(ref)); err == nil {
			if id, err := strconv.Atoi(val); err == nil {
				rec, err := r.GetRecipient(ctx, id)
				if err == nil && rec.GatewayReference != nil && *rec.GatewayReference == ref {
					return rec, nil
				}
			}
		}
	}

	var rec domain.Recipient
	err := r.db.WithContext(ctx).Where("gateway_reference = ?", ref).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("find recipient by reference", err)
	}
	return &rec, nil
}

// StatusCounts groups a campaign's recipients by delivery status
func (r *repo) StatusCounts(ctx context.Context, campaignID uuid.UUID) (map[domain.DeliveryStatus]int, error) {
	var rows []struct {
		DeliveryStatus domain.DeliveryStatus
		Count          int
	}
	err := r.db.WithContext(ctx).Model(&domain.Recipient{}).
		Select("delivery_status, COUNT(*) AS count").
		Where("campaign_id = ?", campaignID).
		Group("delivery_status").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("status counts", err)
	}

	counts := make(map[domain.DeliveryStatus]int, len(rows))
	for _, row := range rows {
		counts[row.DeliveryStatus] = row.Count
	}
	return counts, nil
}

func (r *repo) OwnerStatistics(ctx context.Context, owner int64) (*domain.Statistics, error) {
	var stats domain.Statistics
	err := r.db.WithContext(ctx).Model(&domain.Campaign{}).
		Select(`COUNT(*) AS total_campaigns,
			COALESCE(SUM(total_recipients), 0) AS total_recipients,
			COALESCE(SUM(successful_count), 0) AS total_successful,
			COALESCE(SUM(failed_count), 0) AS total_failed`).
		Where("owner_id = ?", owner).
		Scan(&stats).Error
	if err != nil {
		return nil, storageErr("owner statistics", err)
	}
	return &stats, nil
}

// SweepStaleRecipients fails pending recipients of processing campaigns created before cutoff.
// It returns the affected campaign ids and the number of recipients settled.
func (r *repo) SweepStaleRecipients(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, int, error) {
	var (
		campaignIDs []uuid.UUID
		swept       int
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&domain.Recipient{}).
			Select("message_recipients.*").
			Joins("JOIN messages ON messages.id = message_recipients.campaign_id").
			Where("message_recipients.delivery_status = ?", domain.DeliveryPending).
			Where("messages.status = ?", domain.CampaignProcessing).
			Where("message_recipients.created_at < ?", cutoff).
			Order("message_recipients.id").
			Limit(limit)
		// sqlite has no row locks, the single writer serializes sweeps there
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: "message_recipients"},
				Options:  "SKIP LOCKED",
			})
		}

		var stale []domain.Recipient
		if err := q.Find(&stale).Error; err != nil {
			return err
		}

		seen := make(map[uuid.UUID]struct{})
		now := time.Now().UTC()
		for i := range stale {
			ok, err := settle(tx, &stale[i], domain.Settlement{
				Status:      domain.DeliveryFailed,
				ErrorDetail: SweptDetail,
			}, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			swept++
			if _, dup := seen[stale[i].CampaignID]; !dup {
				seen[stale[i].CampaignID] = struct{}{}
				campaignIDs = append(campaignIDs, stale[i].CampaignID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, storageErr("sweep stale recipients", err)
	}

	return campaignIDs, swept, nil
}

func referenceKey(ref string) string {
	return fmt.Sprintf("gateway_ref:%s", ref)
}
