package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/labaccess-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/labaccess-backend/api/controllers/webhooks"
	"github.com/angelmondragon/labaccess-backend/api/middleware"
	"github.com/angelmondragon/labaccess-backend/internal/badges"
	"github.com/angelmondragon/labaccess-backend/internal/runs"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

// RouterParams wires the HTTP surface. Nil collaborators disable their routes.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
	Trigger  *trigger.Handler
	Verifier *badges.Verifier
	Runs     runs.Repository
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, params.Ready))
	})

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.Trigger != nil {
			r.With(middleware.WebhookSignature(cfg.Webhook.Secret, logg)).
				Post("/webhooks/form-submit", webhookcontrollers.FormSubmit(params.Trigger, logg))
		}
		if params.Verifier != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.CORS(cfg.API.AllowedOrigins))
				r.Options("/badges/verify", func(http.ResponseWriter, *http.Request) {})
				r.Post("/badges/verify", controllers.BadgeVerify(params.Verifier, logg))
			})
		}
		if params.Runs != nil && cfg.API.OperatorToken != "" {
			r.Route("/runs", func(r chi.Router) {
				r.Use(middleware.OperatorToken(cfg.API.OperatorToken, logg))
				r.Get("/", controllers.RunsList(params.Runs, logg))
				r.Get("/{runID}", controllers.RunsGet(params.Runs, logg))
			})
		}
	})

	return r
}
