package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hostlane/qms-backend/pkg/db/models"
	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	"github.com/hostlane/qms-backend/pkg/enums"
	"github.com/hostlane/qms-backend/pkg/pagination"
)

// Repository handles subscription persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	UpdateTierSnapshot(ctx context.Context, tenantID uuid.UUID, snap TierSnapshot) error
	Find(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, params ListQuery) ([]models.Subscription, *pagination.Cursor, error)
	ListForSweep(ctx context.Context, batchSize int, offset int) ([]models.Subscription, error)
	UpdateDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64, lastUpdated int64) error
	ApplyTransition(ctx context.Context, t Transition, history dbtypes.History) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// ListQuery configures subscription list queries.
type ListQuery struct {
	Limit  int
	Cursor *pagination.Cursor
	Tier   *enums.Tier
	Status *enums.SubscriptionStatus
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// TierSnapshot carries the columns a tier change owns. Status, payment
// status, and history belong to ApplyTransition and are never written here,
// so a transition landing concurrently is not reverted.
type TierSnapshot struct {
	Tier        enums.Tier
	Limits      dbtypes.LimitSet
	Features    dbtypes.FeatureSet
	RenewalDate *int64
	LastUpdated int64
}

func (r *repository) UpdateTierSnapshot(ctx context.Context, tenantID uuid.UUID, snap TierSnapshot) error {
	updates := map[string]any{
		"tier":         snap.Tier,
		"limits":       snap.Limits,
		"features":     snap.Features,
		"last_updated": snap.LastUpdated,
	}
	if snap.RenewalDate != nil {
		updates["renewal_date"] = *snap.RenewalDate
	}
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("tenant_id = ?", tenantID).
		Updates(updates).Error
}

func (r *repository) Find(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Subscription{})
	if params.Tier != nil {
		query = query.Where("tier = ?", *params.Tier)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var subs []models.Subscription
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&subs).Error; err != nil {
		return nil, nil, err
	}

	if len(subs) > limit {
		next := subs[limit]
		subs = subs[:limit]
		return subs, &pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		}, nil
	}

	return subs, nil, nil
}

// ListForSweep pages through the whole table in a stable order so the
// scheduled sweep can walk every tenant without holding them all in memory.
func (r *repository) ListForSweep(ctx context.Context, batchSize int, offset int) ([]models.Subscription, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Limit(batchSize).
		Offset(offset).
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) UpdateDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64, lastUpdated int64) error {
	updates := map[string]any{"last_updated": lastUpdated}
	if trialEndDate != nil {
		updates["trial_end_date"] = *trialEndDate
	}
	if renewalDate != nil {
		updates["renewal_date"] = *renewalDate
	}
	return r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("tenant_id = ?", tenantID).
		Updates(updates).Error
}

// ApplyTransition performs the guarded status write. The WHERE clause pins
// the row to the status the transition was computed against, so a record
// that moved underneath us is simply not matched. The boolean reports
// whether the write landed.
func (r *repository) ApplyTransition(ctx context.Context, t Transition, history dbtypes.History) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("tenant_id = ? AND status = ?", t.TenantID, t.FromStatus).
		Updates(map[string]any{
			"status":         t.ToStatus,
			"payment_status": enums.PaymentStatusFor(t.ToStatus),
			"is_trial":       false,
			"last_updated":   t.OccurredAt,
			"history":        history,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
