package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/api/middleware"
	subsvc "github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/pkg/db/models"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/pagination"
)

type stubSubscriptionService struct {
	sub         *models.Subscription
	check       *subsvc.CheckResult
	report      *subsvc.SweepReport
	err         error
	lastTier    enums.Tier
	lastReason  string
	lastRenewal *int64
}

func (s *stubSubscriptionService) Create(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) Get(ctx context.Context, tenantID uuid.UUID) (*models.Subscription, error) {
	return s.sub, s.err
}

func (s *stubSubscriptionService) List(ctx context.Context, params subsvc.ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.sub == nil {
		return nil, nil, nil
	}
	return []models.Subscription{*s.sub}, nil, nil
}

func (s *stubSubscriptionService) Check(ctx context.Context, tenantID uuid.UUID) (*subsvc.CheckResult, error) {
	return s.check, s.err
}

func (s *stubSubscriptionService) CheckAll(ctx context.Context) (*subsvc.SweepReport, error) {
	return s.report, s.err
}

func (s *stubSubscriptionService) ChangeTier(ctx context.Context, tenantID uuid.UUID, tier enums.Tier, renewalDate *int64) (*models.Subscription, error) {
	s.lastTier = tier
	s.lastRenewal = renewalDate
	return s.sub, s.err
}

func (s *stubSubscriptionService) Activate(ctx context.Context, tenantID uuid.UUID, renewalDate int64) (*models.Subscription, error) {
	s.lastRenewal = &renewalDate
	return s.sub, s.err
}

func (s *stubSubscriptionService) Cancel(ctx context.Context, tenantID uuid.UUID, reason string) (*models.Subscription, error) {
	s.lastReason = reason
	return s.sub, s.err
}

func (s *stubSubscriptionService) SetDates(ctx context.Context, tenantID uuid.UUID, trialEndDate, renewalDate *int64) (*subsvc.CheckResult, error) {
	return s.check, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testSubscription(tenantID uuid.UUID) *models.Subscription {
	return &models.Subscription{
		ID:       uuid.New(),
		TenantID: tenantID,
		Tier:     enums.TierProfessional,
		Status:   enums.SubscriptionStatusActive,
	}
}

func TestSubscriptionFetchRequiresTenantScope(t *testing.T) {
	handler := SubscriptionFetch(&stubSubscriptionService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without tenant, got %d", resp.Code)
	}
}

func TestSubscriptionFetchReturnsRecord(t *testing.T) {
	tenantID := uuid.New()
	service := &stubSubscriptionService{sub: testSubscription(tenantID)}
	handler := SubscriptionFetch(service, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	req = req.WithContext(middleware.WithTenantID(req.Context(), tenantID.String()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var envelope struct {
		Data subscriptionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.TenantID != tenantID {
		t.Fatalf("unexpected payload tenant %s", envelope.Data.TenantID)
	}
	if envelope.Data.Tier != "professional" {
		t.Fatalf("unexpected tier %q", envelope.Data.Tier)
	}
}

func TestSubscriptionFetchMapsNotFound(t *testing.T) {
	service := &stubSubscriptionService{err: pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")}
	handler := SubscriptionFetch(service, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscription", nil)
	req = req.WithContext(middleware.WithTenantID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func adminRequest(t *testing.T, method, path string, body []byte, handler http.HandlerFunc, pattern string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handler)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestAdminSubscriptionCreate(t *testing.T) {
	tenantID := uuid.New()
	service := &stubSubscriptionService{sub: testSubscription(tenantID)}
	resp := adminRequest(t, http.MethodPost, "/tenants/"+tenantID.String()+"/subscription", nil,
		AdminSubscriptionCreate(service, testLogger()), "/tenants/{tenantId}/subscription")

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}
}

func TestAdminSubscriptionCreateRejectsBadTenantID(t *testing.T) {
	resp := adminRequest(t, http.MethodPost, "/tenants/nope/subscription", nil,
		AdminSubscriptionCreate(&stubSubscriptionService{}, testLogger()), "/tenants/{tenantId}/subscription")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAdminSubscriptionChangeTier(t *testing.T) {
	tenantID := uuid.New()
	service := &stubSubscriptionService{sub: testSubscription(tenantID)}
	body := []byte(`{"tier":"enterprise"}`)
	resp := adminRequest(t, http.MethodPost, "/tenants/"+tenantID.String()+"/subscription/change-tier", body,
		AdminSubscriptionChangeTier(service, testLogger()), "/tenants/{tenantId}/subscription/change-tier")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.lastTier != enums.TierEnterprise {
		t.Fatalf("tier not passed through, got %q", service.lastTier)
	}
}

func TestAdminSubscriptionChangeTierRejectsUnknownTier(t *testing.T) {
	tenantID := uuid.New()
	body := []byte(`{"tier":"platinum"}`)
	resp := adminRequest(t, http.MethodPost, "/tenants/"+tenantID.String()+"/subscription/change-tier", body,
		AdminSubscriptionChangeTier(&stubSubscriptionService{}, testLogger()), "/tenants/{tenantId}/subscription/change-tier")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAdminSubscriptionActivateRequiresRenewalDate(t *testing.T) {
	tenantID := uuid.New()
	resp := adminRequest(t, http.MethodPost, "/tenants/"+tenantID.String()+"/subscription/activate", []byte(`{}`),
		AdminSubscriptionActivate(&stubSubscriptionService{}, testLogger()), "/tenants/{tenantId}/subscription/activate")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAdminSubscriptionCancelPassesReason(t *testing.T) {
	tenantID := uuid.New()
	service := &stubSubscriptionService{sub: testSubscription(tenantID)}
	body := []byte(`{"reason":"switching providers"}`)
	resp := adminRequest(t, http.MethodPost, "/tenants/"+tenantID.String()+"/subscription/cancel", body,
		AdminSubscriptionCancel(service, testLogger()), "/tenants/{tenantId}/subscription/cancel")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if service.lastReason != "switching providers" {
		t.Fatalf("reason not passed through, got %q", service.lastReason)
	}
}

func TestAdminSubscriptionCheckAllReturnsReport(t *testing.T) {
	service := &stubSubscriptionService{report: &subsvc.SweepReport{Checked: 4, Updated: 2}}
	resp := adminRequest(t, http.MethodPost, "/subscriptions/check-all", nil,
		AdminSubscriptionCheckAll(service, testLogger()), "/subscriptions/check-all")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var envelope struct {
		Data subsvc.SweepReport `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Checked != 4 || envelope.Data.Updated != 2 {
		t.Fatalf("unexpected report %+v", envelope.Data)
	}
}

func TestAdminSubscriptionListRejectsBadFilter(t *testing.T) {
	resp := adminRequest(t, http.MethodGet, "/subscriptions?status=paused", nil,
		AdminSubscriptionList(&stubSubscriptionService{}, testLogger()), "/subscriptions")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
