package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/hostlane/qms-backend/internal/tiers"
	"github.com/hostlane/qms-backend/pkg/db"
	"github.com/hostlane/qms-backend/pkg/db/models"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/pagination"
)

// TrialDays is the length of the signup trial window.
const TrialDays = 14

// Service defines the subscription lifecycle surface.
type Service interface {
	Create(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	Get(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, params ListQuery) ([]models.Subscription, *pagination.Cursor, error)
	Check(ctx context.Context, tenantID uuid.UUID) (*CheckResult, error)
	CheckAll(ctx context.Context) (*SweepReport, error)
	ChangeTier(ctx context.Context, tenantID uuid.UUID, tier enums.Tier, renewalDate *int64) (*models.Subscription, error)
	Activate(ctx context.Context, tenantID uuid.UUID, renewalDate int64) (*models.Subscription, error)
	Cancel(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error)
	SetDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64) (*CheckResult, error)
}

// CheckResult reports what an on-demand or hook-driven check did.
type CheckResult struct {
	TenantID uuid.UUID                `json:"tenant_id"`
	Status   enums.SubscriptionStatus `json:"status"`
	Updated  bool                     `json:"updated"`
	Action   enums.TransitionAction   `json:"action,omitempty"`
}

// TenantCheck is one tenant's line in a sweep report.
type TenantCheck struct {
	TenantID uuid.UUID                `json:"tenant_id"`
	Status   enums.SubscriptionStatus `json:"status"`
	Updated  bool                     `json:"updated"`
	Error    string                   `json:"error,omitempty"`
}

// SweepReport aggregates a full pass over every tenant subscription.
type SweepReport struct {
	Checked int           `json:"checked"`
	Updated int           `json:"updated"`
	Failed  int           `json:"failed"`
	Results []TenantCheck `json:"results"`
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo           Repository
	Applier        *Applier
	Logger         *logger.Logger
	Now            func() time.Time
	SweepBatchSize int
}

type service struct {
	repo      Repository
	applier   *Applier
	logg      *logger.Logger
	now       func() time.Time
	batchSize int
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Applier == nil {
		return nil, fmt.Errorf("transition applier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	batchSize := params.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &service{
		repo:      params.Repo,
		applier:   params.Applier,
		logg:      params.Logger,
		now:       now,
		batchSize: batchSize,
	}, nil
}

// Create provisions the signup trial: a fourteen day window with the
// professional tier's limits and features snapshotted onto the record.
func (s *service) Create(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}

	def := tiers.MustGet(enums.TierProfessional)
	now := s.now()
	nowMs := now.UnixMilli()
	trialEnd := now.Add(TrialDays * 24 * time.Hour).UnixMilli()

	sub := &models.Subscription{
		TenantID:      tenantID,
		Tier:          enums.TierProfessional,
		Status:        enums.SubscriptionStatusTrial,
		PaymentStatus: enums.PaymentStatusTrial,
		IsTrial:       true,
		TrialEndDate:  &trialEnd,
		Limits:        def.Limits,
		Features:      def.Features,
		LastUpdated:   nowMs,
		History:       nil,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "tenant already has a subscription")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
	}
	return sub, nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.find(ctx, tenantID)
}

func (s *service) List(ctx context.Context, params ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	subs, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	return subs, next, nil
}

// Check is the on-demand trigger: load, evaluate, apply if a transition is
// due. Date hooks and the admin check endpoint both land here.
func (s *service) Check(ctx context.Context, tenantID uuid.UUID) (*CheckResult, error) {
	sub, err := s.find(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.checkRecord(ctx, sub)
}

func (s *service) checkRecord(ctx context.Context, sub *models.Subscription) (*CheckResult, error) {
	t := Evaluate(s.now(), sub)
	if t == nil {
		return &CheckResult{TenantID: sub.TenantID, Status: sub.Status}, nil
	}

	applied, err := s.applier.Apply(ctx, sub, t)
	if err != nil {
		return nil, err
	}
	if !applied.Applied {
		// Someone else transitioned the record first. Report the status
		// that actually stuck.
		current, ferr := s.find(ctx, sub.TenantID)
		if ferr != nil {
			return nil, ferr
		}
		return &CheckResult{TenantID: sub.TenantID, Status: current.Status}, nil
	}
	return &CheckResult{
		TenantID: sub.TenantID,
		Status:   t.ToStatus,
		Updated:  true,
		Action:   t.Action,
	}, nil
}

// CheckAll walks every subscription in batches and evaluates each one. A
// single bad record never aborts the pass: panics and per-tenant errors are
// captured into the report and the aggregated error. Context cancellation
// stops the sweep before the next record.
func (s *service) CheckAll(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}
	var errs error

	offset := 0
	for {
		batch, err := s.repo.ListForSweep(ctx, s.batchSize, offset)
		if err != nil {
			return report, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions for sweep"))
		}
		if len(batch) == 0 {
			return report, errs
		}
		for i := range batch {
			if ctx.Err() != nil {
				return report, multierr.Append(errs, ctx.Err())
			}
			result := s.sweepOne(ctx, &batch[i])
			report.Checked++
			if result.Updated {
				report.Updated++
			}
			if result.Error != "" {
				report.Failed++
				errs = multierr.Append(errs, fmt.Errorf("tenant %s: %s", result.TenantID, result.Error))
			}
			report.Results = append(report.Results, result)
		}
		offset += len(batch)
	}
}

func (s *service) sweepOne(ctx context.Context, sub *models.Subscription) (result TenantCheck) {
	result = TenantCheck{TenantID: sub.TenantID, Status: sub.Status}
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic: %v", r)
			s.logg.Error(s.logg.WithTenantID(ctx, sub.TenantID.String()), "sweep panic recovered", fmt.Errorf("%v", r))
		}
	}()

	check, err := s.checkRecord(ctx, sub)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Status = check.Status
	result.Updated = check.Updated
	return result
}

// ChangeTier re-snapshots the target tier's limits and features onto the
// record. Status is untouched here; the date hook at the end picks up any
// transition a new renewal date makes due.
func (s *service) ChangeTier(ctx context.Context, tenantID uuid.UUID, tier enums.Tier, renewalDate *int64) (*models.Subscription, error) {
	def, err := tiers.Get(tier)
	if err != nil {
		if errors.Is(err, tiers.ErrUnknownTier) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown tier")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve tier")
	}

	if _, err := s.find(ctx, tenantID); err != nil {
		return nil, err
	}

	snap := TierSnapshot{
		Tier:        tier,
		Limits:      def.Limits,
		Features:    def.Features,
		RenewalDate: renewalDate,
		LastUpdated: s.now().UnixMilli(),
	}
	if err := s.repo.UpdateTierSnapshot(ctx, tenantID, snap); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription tier")
	}

	if _, err := s.runDateHook(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.find(ctx, tenantID)
}

// Activate is the paid conversion path: persist the renewal date, then move
// the record to active through the applier.
func (s *service) Activate(ctx context.Context, tenantID uuid.UUID, renewalDate int64) (*models.Subscription, error) {
	sub, err := s.find(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled subscription cannot be activated").
			WithDetails(map[string]string{"status": string(sub.Status)})
	}

	nowMs := s.now().UnixMilli()
	if err := s.repo.UpdateDates(ctx, tenantID, nil, &renewalDate, nowMs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update renewal date")
	}

	if sub.Status != enums.SubscriptionStatusActive {
		t := &Transition{
			TenantID:   tenantID,
			FromStatus: sub.Status,
			ToStatus:   enums.SubscriptionStatusActive,
			Action:     enums.ActionSubscriptionActivated,
			Reason:     "Subscription activated",
			OccurredAt: nowMs,
		}
		if _, err := s.applier.Apply(ctx, sub, t); err != nil {
			return nil, err
		}
	}

	// The new renewal date is a date field write, so the hook runs; a date
	// already in the past expires the record immediately.
	if _, err := s.runDateHook(ctx, tenantID); err != nil {
		return nil, err
	}
	return s.find(ctx, tenantID)
}

// Cancel moves the record to cancelled. Cancelling an already cancelled
// subscription is a no-op.
func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error) {
	sub, err := s.find(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Status == enums.SubscriptionStatusCancelled {
		return sub, nil
	}
	if reason == "" {
		reason = "Subscription cancelled"
	}

	t := &Transition{
		TenantID:   tenantID,
		FromStatus: sub.Status,
		ToStatus:   enums.SubscriptionStatusCancelled,
		Action:     enums.ActionSubscriptionCancelled,
		Reason:     reason,
		OccurredAt: s.now().UnixMilli(),
	}
	if _, err := s.applier.Apply(ctx, sub, t); err != nil {
		return nil, err
	}
	return s.find(ctx, tenantID)
}

// SetDates writes trial end or renewal dates, typically from a billing
// event, and runs the change hook synchronously so a backdated write takes
// effect before the caller sees a response.
func (s *service) SetDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64) (*CheckResult, error) {
	if trialEndDate == nil && renewalDate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one date required")
	}
	if _, err := s.find(ctx, tenantID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDates(ctx, tenantID, trialEndDate, renewalDate, s.now().UnixMilli()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription dates")
	}
	return s.runDateHook(ctx, tenantID)
}

func (s *service) runDateHook(ctx context.Context, tenantID uuid.UUID) (*CheckResult, error) {
	result, err := s.Check(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if result.Updated {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenantID.String(),
			"status":    result.Status.String(),
			"action":    result.Action.String(),
		}), "date change hook applied transition")
	}
	return result, nil
}

func (s *service) find(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	sub, err := s.repo.Find(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}
