package subscriptions

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/internal/tiers"
	"github.com/hostlane/qms-backend/pkg/db/models"
	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/pagination"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	applier, err := NewApplier(repo, logg)
	if err != nil {
		t.Fatalf("applier: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Applier: applier,
		Logger:  logg,
		Now:     func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc
}

func TestServiceCreateSnapshotsTrial(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	tenantID := uuid.New()

	sub, err := svc.Create(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Tier != enums.TierProfessional {
		t.Fatalf("trial should snapshot professional, got %s", sub.Tier)
	}
	if sub.Status != enums.SubscriptionStatusTrial || !sub.IsTrial {
		t.Fatalf("expected trial status, got %s is_trial=%v", sub.Status, sub.IsTrial)
	}
	wantEnd := testNow.Add(TrialDays * 24 * time.Hour).UnixMilli()
	if sub.TrialEndDate == nil || *sub.TrialEndDate != wantEnd {
		t.Fatalf("expected trial end %d, got %v", wantEnd, sub.TrialEndDate)
	}
	def := tiers.MustGet(enums.TierProfessional)
	if sub.Limits[enums.QuotaGuestRecords] != def.Limits[enums.QuotaGuestRecords] {
		t.Fatalf("limits not snapshotted from registry")
	}

	_, err = svc.Create(context.Background(), tenantID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("duplicate create should conflict, got %v", err)
	}
}

func TestServiceCheckNoTransitionDue(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID:    tenantID,
		Status:      enums.SubscriptionStatusActive,
		RenewalDate: msPtr(testNow.Add(72 * time.Hour)),
	})
	svc := newTestService(t, repo)

	result, err := svc.Check(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Updated {
		t.Fatalf("no transition was due")
	}
	if result.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", result.Status)
	}
	if len(repo.applied) != 0 {
		t.Fatalf("no write should have happened")
	}
}

func TestServiceCheckExpiresTrialAndAppendsHistory(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID:     tenantID,
		Tier:         enums.TierProfessional,
		Status:       enums.SubscriptionStatusTrial,
		IsTrial:      true,
		TrialEndDate: msPtr(testNow.Add(-time.Hour)),
	})
	svc := newTestService(t, repo)

	result, err := svc.Check(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.Updated || result.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("expected expiry, got %+v", result)
	}
	if result.Action != enums.ActionTrialExpired {
		t.Fatalf("expected trial_expired, got %s", result.Action)
	}

	stored := repo.subs[tenantID]
	if stored.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("store not updated")
	}
	if stored.PaymentStatus != enums.PaymentStatusExpired {
		t.Fatalf("payment status should mirror expiry, got %s", stored.PaymentStatus)
	}
	if stored.IsTrial {
		t.Fatalf("is_trial should clear on expiry")
	}
	if len(stored.History) != 1 {
		t.Fatalf("expected one history entry, got %d", len(stored.History))
	}
	for _, entry := range stored.History {
		if entry.Action != enums.ActionTrialExpired {
			t.Fatalf("unexpected history action %s", entry.Action)
		}
		if entry.PreviousStatus != enums.SubscriptionStatusTrial {
			t.Fatalf("unexpected previous status %s", entry.PreviousStatus)
		}
		if entry.Reason != "Trial period ended" {
			t.Fatalf("unexpected reason %q", entry.Reason)
		}
	}
}

func TestServiceCheckStaleGuardIsNoOp(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID:     tenantID,
		Status:       enums.SubscriptionStatusTrial,
		TrialEndDate: msPtr(testNow.Add(-time.Hour)),
	})
	repo.denyApply = true
	svc := newTestService(t, repo)

	result, err := svc.Check(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("stale guard must not surface an error, got %v", err)
	}
	if result.Updated {
		t.Fatalf("guarded miss must report no update")
	}
}

func TestServiceCheckMissingTenant(t *testing.T) {
	svc := newTestService(t, newStubRepo())

	_, err := svc.Check(context.Background(), uuid.New())
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceCheckAllSweep(t *testing.T) {
	repo := newStubRepo()
	dueTenant := uuid.New()
	okTenant := uuid.New()
	badTenant := uuid.New()
	repo.seed(&models.Subscription{
		TenantID:     dueTenant,
		Status:       enums.SubscriptionStatusTrial,
		TrialEndDate: msPtr(testNow.Add(-time.Hour)),
	})
	repo.seed(&models.Subscription{
		TenantID:    okTenant,
		Status:      enums.SubscriptionStatusActive,
		RenewalDate: msPtr(testNow.Add(time.Hour)),
	})
	repo.seed(&models.Subscription{
		TenantID:    badTenant,
		Status:      enums.SubscriptionStatusActive,
		RenewalDate: msPtr(testNow.Add(-time.Hour)),
	})
	repo.applyErrFor[badTenant] = fmt.Errorf("connection reset")
	svc := newTestService(t, repo)

	report, err := svc.CheckAll(context.Background())
	if err == nil {
		t.Fatalf("expected aggregated error for the failed tenant")
	}
	if report.Checked != 3 {
		t.Fatalf("expected 3 checked, got %d", report.Checked)
	}
	if report.Updated != 1 {
		t.Fatalf("expected 1 updated, got %d", report.Updated)
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failed, got %d", report.Failed)
	}
	if repo.subs[dueTenant].Status != enums.SubscriptionStatusExpired {
		t.Fatalf("due tenant should have expired despite the failure")
	}
}

func TestServiceCheckAllStopsOnCancelledContext(t *testing.T) {
	repo := newStubRepo()
	repo.seed(&models.Subscription{
		TenantID:     uuid.New(),
		Status:       enums.SubscriptionStatusTrial,
		TrialEndDate: msPtr(testNow.Add(-time.Hour)),
	})
	svc := newTestService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.CheckAll(ctx)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if report.Checked != 0 {
		t.Fatalf("cancelled sweep should not check records, got %d", report.Checked)
	}
}

func TestServiceCancelIsIdempotent(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID:    tenantID,
		Status:      enums.SubscriptionStatusActive,
		RenewalDate: msPtr(testNow.Add(time.Hour)),
	})
	svc := newTestService(t, repo)

	sub, err := svc.Cancel(context.Background(), tenantID, "downgrading")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled, got %s", sub.Status)
	}
	if sub.PaymentStatus != enums.PaymentStatusExpired {
		t.Fatalf("cancelled records surface expired payment status, got %s", sub.PaymentStatus)
	}

	again, err := svc.Cancel(context.Background(), tenantID, "downgrading")
	if err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
	if again.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("expected cancelled, got %s", again.Status)
	}
	if len(repo.applied) != 1 {
		t.Fatalf("repeat cancel should not write, got %d transitions", len(repo.applied))
	}
}

func TestServiceActivateExpiredRecord(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID: tenantID,
		Tier:     enums.TierStarter,
		Status:   enums.SubscriptionStatusExpired,
	})
	svc := newTestService(t, repo)

	renewal := testNow.Add(30 * 24 * time.Hour).UnixMilli()
	sub, err := svc.Activate(context.Background(), tenantID, renewal)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}
	if sub.RenewalDate == nil || *sub.RenewalDate != renewal {
		t.Fatalf("renewal date not persisted")
	}
	if sub.PaymentStatus != enums.PaymentStatusActive {
		t.Fatalf("expected active payment status, got %s", sub.PaymentStatus)
	}
}

func TestServiceActivateCancelledRecordRejected(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID: tenantID,
		Tier:     enums.TierStarter,
		Status:   enums.SubscriptionStatusCancelled,
	})
	svc := newTestService(t, repo)

	_, err := svc.Activate(context.Background(), tenantID, testNow.Add(30*24*time.Hour).UnixMilli())
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(repo.applied) != 0 {
		t.Fatalf("no transition must be applied, got %d", len(repo.applied))
	}

	sub, _ := repo.Find(context.Background(), tenantID)
	if sub.Status != enums.SubscriptionStatusCancelled {
		t.Fatalf("status must stay cancelled, got %s", sub.Status)
	}
	if sub.RenewalDate != nil {
		t.Fatalf("renewal date must not be written")
	}
}

func TestServiceActivateWithPastRenewalExpiresImmediately(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID: tenantID,
		Status:   enums.SubscriptionStatusExpired,
	})
	svc := newTestService(t, repo)

	sub, err := svc.Activate(context.Background(), tenantID, testNow.Add(-time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if sub.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("past renewal date should expire through the hook, got %s", sub.Status)
	}
}

func TestServiceSetDatesRunsHookSynchronously(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{
		TenantID:     tenantID,
		Status:       enums.SubscriptionStatusTrial,
		IsTrial:      true,
		TrialEndDate: msPtr(testNow.Add(72 * time.Hour)),
	})
	svc := newTestService(t, repo)

	backdated := testNow.Add(-time.Minute).UnixMilli()
	result, err := svc.SetDates(context.Background(), tenantID, &backdated, nil)
	if err != nil {
		t.Fatalf("set dates: %v", err)
	}
	if !result.Updated || result.Status != enums.SubscriptionStatusExpired {
		t.Fatalf("backdated trial end should expire before returning, got %+v", result)
	}
	if repo.subs[tenantID].Status != enums.SubscriptionStatusExpired {
		t.Fatalf("store should hold the expired record")
	}
}

func TestServiceSetDatesRequiresADate(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{TenantID: tenantID, Status: enums.SubscriptionStatusActive})
	svc := newTestService(t, repo)

	_, err := svc.SetDates(context.Background(), tenantID, nil, nil)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceChangeTierResnapshots(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	starter := tiers.MustGet(enums.TierStarter)
	repo.seed(&models.Subscription{
		TenantID:    tenantID,
		Tier:        enums.TierStarter,
		Status:      enums.SubscriptionStatusActive,
		RenewalDate: msPtr(testNow.Add(time.Hour)),
		Limits:      starter.Limits,
		Features:    starter.Features,
	})
	svc := newTestService(t, repo)

	sub, err := svc.ChangeTier(context.Background(), tenantID, enums.TierEnterprise, nil)
	if err != nil {
		t.Fatalf("change tier: %v", err)
	}
	if sub.Tier != enums.TierEnterprise {
		t.Fatalf("expected enterprise, got %s", sub.Tier)
	}
	if sub.Limits[enums.QuotaGuestRecords] != tiers.Unlimited {
		t.Fatalf("limits not re-snapshotted")
	}
	if sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("tier change must not touch status, got %s", sub.Status)
	}
}

func TestServiceChangeTierUnknownTier(t *testing.T) {
	repo := newStubRepo()
	tenantID := uuid.New()
	repo.seed(&models.Subscription{TenantID: tenantID, Status: enums.SubscriptionStatusActive})
	svc := newTestService(t, repo)

	_, err := svc.ChangeTier(context.Background(), tenantID, enums.Tier("platinum"), nil)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// stubRepo is an in-memory Repository for service tests.
type stubRepo struct {
	subs        map[uuid.UUID]*models.Subscription
	order       []uuid.UUID
	applied     []Transition
	denyApply   bool
	applyErrFor map[uuid.UUID]error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		subs:        map[uuid.UUID]*models.Subscription{},
		applyErrFor: map[uuid.UUID]error{},
	}
}

func (r *stubRepo) seed(sub *models.Subscription) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	r.subs[sub.TenantID] = sub
	r.order = append(r.order, sub.TenantID)
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, sub *models.Subscription) error {
	if _, ok := r.subs[sub.TenantID]; ok {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	r.seed(sub)
	return nil
}

func (r *stubRepo) UpdateTierSnapshot(ctx context.Context, tenantID uuid.UUID, snap TierSnapshot) error {
	sub, ok := r.subs[tenantID]
	if !ok {
		return nil
	}
	sub.Tier = snap.Tier
	sub.Limits = snap.Limits
	sub.Features = snap.Features
	if snap.RenewalDate != nil {
		sub.RenewalDate = snap.RenewalDate
	}
	sub.LastUpdated = snap.LastUpdated
	return nil
}

func (r *stubRepo) Find(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	sub, ok := r.subs[tenantID]
	if !ok {
		return nil, nil
	}
	copied := *sub
	return &copied, nil
}

func (r *stubRepo) List(ctx context.Context, params ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	var out []models.Subscription
	for _, id := range r.order {
		out = append(out, *r.subs[id])
	}
	return out, nil, nil
}

func (r *stubRepo) ListForSweep(ctx context.Context, batchSize int, offset int) ([]models.Subscription, error) {
	if offset >= len(r.order) {
		return nil, nil
	}
	end := offset + batchSize
	if end > len(r.order) {
		end = len(r.order)
	}
	var out []models.Subscription
	for _, id := range r.order[offset:end] {
		out = append(out, *r.subs[id])
	}
	return out, nil
}

func (r *stubRepo) UpdateDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64, lastUpdated int64) error {
	sub, ok := r.subs[tenantID]
	if !ok {
		return nil
	}
	if trialEndDate != nil {
		sub.TrialEndDate = trialEndDate
	}
	if renewalDate != nil {
		sub.RenewalDate = renewalDate
	}
	sub.LastUpdated = lastUpdated
	return nil
}

func (r *stubRepo) ApplyTransition(ctx context.Context, t Transition, history dbtypes.History) (bool, error) {
	if err := r.applyErrFor[t.TenantID]; err != nil {
		return false, err
	}
	if r.denyApply {
		return false, nil
	}
	sub, ok := r.subs[t.TenantID]
	if !ok || sub.Status != t.FromStatus {
		return false, nil
	}
	sub.Status = t.ToStatus
	sub.PaymentStatus = enums.PaymentStatusFor(t.ToStatus)
	sub.IsTrial = false
	sub.LastUpdated = t.OccurredAt
	sub.History = history
	r.applied = append(r.applied, t)
	return true, nil
}
