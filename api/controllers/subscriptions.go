package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hostlane/qms-backend/api/middleware"
	"github.com/hostlane/qms-backend/api/responses"
	"github.com/hostlane/qms-backend/api/validators"
	subsvc "github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/pkg/db/models"
	dbtypes "github.com/hostlane/qms-backend/pkg/db/types"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
	"github.com/hostlane/qms-backend/pkg/pagination"
)

type subscriptionResponse struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenant_id"`
	Tier          string             `json:"tier"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"payment_status"`
	IsTrial       bool               `json:"is_trial"`
	TrialEndDate  *int64             `json:"trial_end_date,omitempty"`
	RenewalDate   *int64             `json:"renewal_date,omitempty"`
	Limits        dbtypes.LimitSet   `json:"limits"`
	Features      dbtypes.FeatureSet `json:"features"`
	LastUpdated   int64              `json:"last_updated"`
	History       dbtypes.History    `json:"history,omitempty"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:            sub.ID,
		TenantID:      sub.TenantID,
		Tier:          sub.Tier.String(),
		Status:        sub.Status.String(),
		PaymentStatus: sub.PaymentStatus.String(),
		IsTrial:       sub.IsTrial,
		TrialEndDate:  sub.TrialEndDate,
		RenewalDate:   sub.RenewalDate,
		Limits:        sub.Limits,
		Features:      sub.Features,
		LastUpdated:   sub.LastUpdated,
		History:       sub.History,
	}
}

func tenantFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.TenantIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant scope required")
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid tenant scope")
	}
	return tenantID, nil
}

func tenantFromPath(r *http.Request) (uuid.UUID, error) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantId"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tenant id")
	}
	return tenantID, nil
}

// SubscriptionFetch returns the calling tenant's subscription record.
func SubscriptionFetch(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Get(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

// SubscriptionCheck evaluates the calling tenant's record and applies any
// due transition before answering.
func SubscriptionCheck(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Check(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminSubscriptionCreate provisions the signup trial for a tenant.
func AdminSubscriptionCreate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Create(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSubscriptionResponse(sub))
	}
}

// AdminSubscriptionGet returns any tenant's subscription record.
func AdminSubscriptionGet(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Get(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

type subscriptionListResponse struct {
	Items      []subscriptionResponse `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// AdminSubscriptionList pages through subscriptions, optionally filtered
// by tier or status.
func AdminSubscriptionList(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor"))
			return
		}

		query := subsvc.ListQuery{Limit: limit, Cursor: cursor}
		if raw := r.URL.Query().Get("tier"); raw != "" {
			tier, err := enums.ParseTier(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier filter"))
				return
			}
			query.Tier = &tier
		}
		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseSubscriptionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			query.Status = &status
		}

		subs, next, err := svc.List(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := subscriptionListResponse{Items: make([]subscriptionResponse, 0, len(subs))}
		for i := range subs {
			resp.Items = append(resp.Items, newSubscriptionResponse(&subs[i]))
		}
		if next != nil {
			resp.NextCursor = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, resp)
	}
}

// AdminSubscriptionCheck runs the on-demand check for one tenant.
func AdminSubscriptionCheck(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Check(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminSubscriptionCheckAll sweeps every tenant on demand. Per-tenant
// failures land in the report rather than failing the request.
func AdminSubscriptionCheckAll(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := svc.CheckAll(r.Context())
		if err != nil && logg != nil {
			logg.Error(r.Context(), "on-demand sweep finished with failures", err)
		}
		if report == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

type changeTierRequest struct {
	Tier        string `json:"tier" validate:"required"`
	RenewalDate *int64 `json:"renewal_date,omitempty" validate:"omitempty,gt=0"`
}

// AdminSubscriptionChangeTier re-snapshots a tenant onto a new tier.
func AdminSubscriptionChangeTier(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload changeTierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tier, err := enums.ParseTier(payload.Tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier"))
			return
		}
		sub, err := svc.ChangeTier(r.Context(), tenantID, tier, payload.RenewalDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

type activateRequest struct {
	RenewalDate int64 `json:"renewal_date" validate:"required,gt=0"`
}

// AdminSubscriptionActivate converts a tenant to a paying subscription.
func AdminSubscriptionActivate(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload activateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Activate(r.Context(), tenantID, payload.RenewalDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// AdminSubscriptionCancel cancels a tenant's subscription.
func AdminSubscriptionCancel(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := svc.Cancel(r.Context(), tenantID, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

type setDatesRequest struct {
	TrialEndDate *int64 `json:"trial_end_date,omitempty" validate:"omitempty,gt=0"`
	RenewalDate  *int64 `json:"renewal_date,omitempty" validate:"omitempty,gt=0"`
}

// AdminSubscriptionSetDates writes subscription dates and runs the change
// hook before answering.
func AdminSubscriptionSetDates(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload setDatesRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SetDates(r.Context(), tenantID, payload.TrialEndDate, payload.RenewalDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
