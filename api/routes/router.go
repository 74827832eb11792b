package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hostlane/qms-backend/api/controllers"
	"github.com/hostlane/qms-backend/api/middleware"
	"github.com/hostlane/qms-backend/internal/entitlements"
	"github.com/hostlane/qms-backend/internal/subscriptions"
	"github.com/hostlane/qms-backend/pkg/config"
	"github.com/hostlane/qms-backend/pkg/enums"
	"github.com/hostlane/qms-backend/pkg/logger"
)

// RouterParams groups everything the API router needs.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	Subscriptions subscriptions.Service
	Entitlements  entitlements.Service
	ReadyDeps     map[string]controllers.Pinger
}

// NewRouter wires the HTTP surface: health probes, the tenant-scoped
// service API, and the admin API.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.ReadyDeps))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTenant(logg))

			r.Route("/subscription", func(r chi.Router) {
				r.Get("/", controllers.SubscriptionFetch(params.Subscriptions, logg))
				r.Post("/check", controllers.SubscriptionCheck(params.Subscriptions, logg))
			})

			r.Route("/entitlements", func(r chi.Router) {
				r.Get("/", controllers.EntitlementSnapshot(params.Entitlements, logg))
				r.Get("/features/{feature}", controllers.EntitlementFeatureCheck(params.Entitlements, logg))
				r.Get("/quotas/{quota}", controllers.EntitlementQuotaCheck(params.Entitlements, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.ActorRoleAdmin), logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", controllers.AdminSubscriptionList(params.Subscriptions, logg))
			r.Post("/check-all", controllers.AdminSubscriptionCheckAll(params.Subscriptions, logg))
		})

		r.Route("/tenants/{tenantId}/subscription", func(r chi.Router) {
			r.Post("/", controllers.AdminSubscriptionCreate(params.Subscriptions, logg))
			r.Get("/", controllers.AdminSubscriptionGet(params.Subscriptions, logg))
			r.Post("/check", controllers.AdminSubscriptionCheck(params.Subscriptions, logg))
			r.Post("/change-tier", controllers.AdminSubscriptionChangeTier(params.Subscriptions, logg))
			r.Post("/activate", controllers.AdminSubscriptionActivate(params.Subscriptions, logg))
			r.Post("/cancel", controllers.AdminSubscriptionCancel(params.Subscriptions, logg))
			r.Post("/dates", controllers.AdminSubscriptionSetDates(params.Subscriptions, logg))
		})
	})

	return r
}
