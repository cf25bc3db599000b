package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxRecipients is the largest recipient list accepted by a single dispatch
const MaxRecipients = 100

type CampaignStatus string

const (
	CampaignPending    CampaignStatus = "pending"
	CampaignProcessing CampaignStatus = "processing"
	CampaignCompleted  CampaignStatus = "completed"
	CampaignFailed     CampaignStatus = "failed"
)

type CampaignKind string

const (
	KindSingle CampaignKind = "single"
	KindBulk   CampaignKind = "bulk"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryStatuses lists every delivery status in lifecycle order
var DeliveryStatuses = []DeliveryStatus{DeliveryPending, DeliverySent, DeliveryDelivered, DeliveryFailed}

// ParseDeliveryStatus maps a status string onto a known delivery status
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	for _, known := range DeliveryStatuses {
		if string(known) == s {
			return known, nil
		}
	}
	return "", ErrUnknownStatus
}

// Terminal reports whether the status can no longer change.
// A sent record may still become delivered but is never sent again.
func (s DeliveryStatus) Terminal() bool {
	return s != DeliveryPending
}

// Campaign is one send request, single or bulk
type Campaign struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID         int64          `gorm:"not null;index" json:"owner_id"`
	Kind            CampaignKind   `gorm:"type:varchar(8);not null" json:"kind"`
	Body            string         `gorm:"type:text;not null" json:"message_text"`
	TotalRecipients int            `gorm:"not null" json:"total_recipients"`
	SuccessfulCount int            `gorm:"not null;default:0" json:"successful_sends"`
	FailedCount     int            `gorm:"not null;default:0" json:"failed_sends"`
	Status          CampaignStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Campaign) TableName() string { return "messages" }

func (c *Campaign) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Recipient is the per phone number delivery record of a campaign
type Recipient struct {
	ID               int            `gorm:"primaryKey" json:"id"`
	CampaignID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"message_id"`
	PhoneNumber      string         `gorm:"type:varchar(20);not null" json:"phone_number"`
	DeliveryStatus   DeliveryStatus `gorm:"type:varchar(16);not null;index" json:"delivery_status"`
	GatewayReference *string        `gorm:"type:varchar(128);index" json:"gateway_reference"`
	Cost             *string        `gorm:"type:varchar(32)" json:"cost,omitempty"`
	ErrorDetail      *string        `gorm:"type:text" json:"error_message"`
	SentAt           *time.Time     `json:"sent_at"`
	DeliveredAt      *time.Time     `json:"delivered_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (Recipient) TableName() string { return "message_recipients" }

// Settlement is the terminal transition applied to a pending recipient
type Settlement struct {
	Status           DeliveryStatus
	GatewayReference string
	Cost             string
	ErrorDetail      string
}

// SettlementFor converts a gateway outcome into the transition it causes
func SettlementFor(o Outcome) Settlement {
	if o.Success {
		return Settlement{Status: DeliverySent, GatewayReference: o.GatewayReference, Cost: o.Cost}
	}
	return Settlement{Status: DeliveryFailed, ErrorDetail: o.Reason}
}

// Outcome is the result of handing one message to the SMS gateway
type Outcome struct {
	Success          bool
	GatewayReference string
	Cost             string
	Reason           string
	Attempts         int
}

// RecipientResult is the per recipient entry of a dispatch result
type RecipientResult struct {
	Phone            string         `json:"phone"`
	Status           DeliveryStatus `json:"status"`
	GatewayReference string         `json:"messageId,omitempty"`
	Cost             string         `json:"cost,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// CampaignResult summarizes a finished dispatch
type CampaignResult struct {
	CampaignID uuid.UUID         `json:"message_id"`
	Status     CampaignStatus    `json:"status"`
	TotalSent  int               `json:"total_sent"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Results    []RecipientResult `json:"results"`
}

// CampaignDetail is the drill-down view of one campaign
type CampaignDetail struct {
	Campaign      *Campaign              `json:"message"`
	Recipients    []Recipient            `json:"recipients"`
	StatusSummary map[DeliveryStatus]int `json:"status_summary"`
}

// Statistics aggregates every campaign of an owner
type Statistics struct {
	TotalCampaigns  int64 `json:"total_campaigns"`
	TotalRecipients int64 `json:"total_messages_sent"`
	TotalSuccessful int64 `json:"total_successful"`
	TotalFailed     int64 `json:"total_failed"`
}
