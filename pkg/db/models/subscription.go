package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	"github.com/hostlane/qms-backend/pkg/enums"
)

// Subscription persists a tenant's tier, lifecycle status and denormalized
// entitlement snapshot. Exactly one row exists per tenant; status,
// payment_status and history are only ever written through the transition
// applier.
type Subscription struct {
	ID            uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TenantID      uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex"`
	Tier          enums.Tier               `gorm:"column:tier;not null;default:'free'"`
	Status        enums.SubscriptionStatus `gorm:"column:status;not null;default:'trial'"`
	PaymentStatus enums.PaymentStatus      `gorm:"column:payment_status;not null;default:'trial'"`
	IsTrial       bool                     `gorm:"column:is_trial;not null;default:false"`

	// Epoch milliseconds; nil when the date has not been set.
	TrialEndDate *int64 `gorm:"column:trial_end_date"`
	RenewalDate  *int64 `gorm:"column:renewal_date"`

	// Snapshot of the tier registry entry at last assignment. Kept even
	// after expiry so billing history stays truthful; entitlement reads
	// substitute the free tier at decision time instead.
	Limits   dbtypes.LimitSet   `gorm:"column:limits;type:jsonb"`
	Features dbtypes.FeatureSet `gorm:"column:features;type:jsonb"`

	LastUpdated int64           `gorm:"column:last_updated;not null"`
	History     dbtypes.History `gorm:"column:history;type:jsonb"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
