package entitlements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/internal/tiers"
	"github.com/hostlane/qms-backend/pkg/db/models"
	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
)

type subscriptionStore interface {
	Find(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
}

// Service answers feature and quota questions for tenants. Decisions are
// read-only: a record that is past its dates is treated as expired here
// even if no trigger has persisted the transition yet.
type Service interface {
	HasFeature(ctx context.Context, tenantID uuid.UUID, feature enums.Feature) (bool, error)
	CheckQuota(ctx context.Context, tenantID uuid.UUID, quota enums.Quota, currentUsage int64) (*QuotaDecision, error)
	Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error)
}

// QuotaDecision is the outcome of a quota check.
type QuotaDecision struct {
	Allowed   bool        `json:"allowed"`
	Quota     enums.Quota `json:"quota"`
	Limit     int64       `json:"limit"`
	Usage     int64       `json:"usage"`
	Remaining int64       `json:"remaining"`
	Unlimited bool        `json:"unlimited"`
	Message   string      `json:"message,omitempty"`
}

// Snapshot is the effective entitlement view for a tenant: the tier whose
// limits and features actually govern decisions right now.
type Snapshot struct {
	TenantID      uuid.UUID                `json:"tenant_id"`
	Status        enums.SubscriptionStatus `json:"status"`
	EffectiveTier enums.Tier               `json:"effective_tier"`
	Fallback      bool                     `json:"fallback"`
	Limits        dbtypes.LimitSet         `json:"limits"`
	Features      dbtypes.FeatureSet       `json:"features"`
}

// ServiceParams groups dependencies for the entitlement service.
type ServiceParams struct {
	Store  subscriptionStore
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	store subscriptionStore
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds an entitlement service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("subscription store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{store: params.Store, logg: params.Logger, now: now}, nil
}

func (s *service) HasFeature(ctx context.Context, tenantID uuid.UUID, feature enums.Feature) (bool, error) {
	if !feature.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown feature")
	}
	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return false, err
	}
	return snap.Features[feature], nil
}

func (s *service) CheckQuota(ctx context.Context, tenantID uuid.UUID, quota enums.Quota, currentUsage int64) (*QuotaDecision, error) {
	if !quota.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown quota")
	}
	if currentUsage < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage must not be negative")
	}
	snap, err := s.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	limit, ok := snap.Limits[quota]
	if !ok {
		// Snapshots always carry the full quota set; a hole means a
		// registry drift, so fail closed.
		limit = 0
	}
	decision := &QuotaDecision{
		Quota: quota,
		Limit: limit,
		Usage: currentUsage,
	}
	if limit == tiers.Unlimited {
		decision.Allowed = true
		decision.Unlimited = true
		decision.Remaining = tiers.Unlimited
		return decision, nil
	}
	if currentUsage < limit {
		decision.Allowed = true
		decision.Remaining = limit - currentUsage
		return decision, nil
	}

	tierName := tiers.MustGet(snap.EffectiveTier).Name
	decision.Message = fmt.Sprintf(
		"%s limit reached: the %s plan allows %d. Upgrade your plan to raise this limit.",
		quota.Label(), tierName, limit,
	)
	return decision, nil
}

// Snapshot resolves the entitlement view a tenant is governed by. Trial and
// active records use their own snapshotted limits and features; everything
// else falls back to the free tier.
func (s *service) Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	sub, err := s.store.Find(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}

	status := sub.Status
	if t := subscriptions.Evaluate(s.now(), sub); t != nil {
		status = t.ToStatus
	}

	if status.IsEntitled() {
		return &Snapshot{
			TenantID:      tenantID,
			Status:        status,
			EffectiveTier: sub.Tier,
			Limits:        sub.Limits,
			Features:      sub.Features,
		}, nil
	}

	free := tiers.MustGet(enums.TierFree)
	return &Snapshot{
		TenantID:      tenantID,
		Status:        status,
		EffectiveTier: enums.TierFree,
		Fallback:      true,
		Limits:        free.Limits,
		Features:      free.Features,
	}, nil
}
