package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hostlane/qms-backend/api/responses"
	"github.com/hostlane/qms-backend/api/validators"
	entsvc "github.com/hostlane/qms-backend/internal/entitlements"
	"github.com/hostlane/qms-backend/pkg/enums"
	pkgerrors "github.com/hostlane/qms-backend/pkg/errors"
	"github.com/hostlane/qms-backend/pkg/logger"
)

// EntitlementSnapshot returns the effective tier, limits and features
// governing the calling tenant right now.
func EntitlementSnapshot(svc entsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snap, err := svc.Snapshot(r.Context(), tenantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snap)
	}
}

type featureCheckResponse struct {
	Feature string `json:"feature"`
	Enabled bool   `json:"enabled"`
}

// EntitlementFeatureCheck answers whether the calling tenant has a feature.
func EntitlementFeatureCheck(svc entsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		feature, err := enums.ParseFeature(chi.URLParam(r, "feature"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid feature"))
			return
		}
		enabled, err := svc.HasFeature(r.Context(), tenantID, feature)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, featureCheckResponse{Feature: feature.String(), Enabled: enabled})
	}
}

// EntitlementQuotaCheck answers whether the calling tenant can consume one
// more unit of a quota, given its current usage.
func EntitlementQuotaCheck(svc entsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := tenantFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quota, err := enums.ParseQuota(chi.URLParam(r, "quota"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid quota"))
			return
		}
		usage, err := validators.ParseQueryInt64(r, "usage", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := svc.CheckQuota(r.Context(), tenantID, quota, usage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decision)
	}
}
