package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entregalo/entregalo-backend/api/controllers"
	"github.com/entregalo/entregalo-backend/api/handlers"
	"github.com/entregalo/entregalo-backend/api/middleware"
	"github.com/entregalo/entregalo-backend/internal/backfill"
	"github.com/entregalo/entregalo-backend/internal/dispatch"
	"github.com/entregalo/entregalo-backend/internal/movements"
	"github.com/entregalo/entregalo-backend/internal/outcomes"
	"github.com/entregalo/entregalo-backend/internal/settlements"
	"github.com/entregalo/entregalo-backend/pkg/config"
	"github.com/entregalo/entregalo-backend/pkg/db"
	"github.com/entregalo/entregalo-backend/pkg/logger"
	"github.com/entregalo/entregalo-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	gatherer prometheus.Gatherer,
	dispatchService dispatch.Service,
	outcomesService outcomes.Service,
	settlementsService settlements.Service,
	movementsService movements.Service,
	backfillService backfill.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Get("/healthz", handlers.Healthz(cfg, logg, dbP, redisP))
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.StoreContext(logg))

		r.Route("/dispatch-sessions", func(r chi.Router) {
			r.Post("/", controllers.DispatchSessionCreate(dispatchService, logg))
			r.Get("/{sessionID}", controllers.DispatchSessionGet(dispatchService, logg))
			r.Post("/{sessionID}/outcomes", controllers.OutcomeRecord(outcomesService, logg))
		})

		r.Route("/settlements", func(r chi.Router) {
			r.Post("/compute", controllers.SettlementCompute(settlementsService, logg))
			r.Get("/pending", controllers.SettlementsPending(settlementsService, logg))
			r.Post("/{settlementID}/payments", controllers.SettlementPayment(settlementsService, logg))
		})

		r.Route("/movements", func(r chi.Router) {
			r.Get("/health", controllers.MovementsHealth(movementsService, logg))
			r.Post("/backfill", controllers.MovementsBackfill(backfillService, logg))
		})
	})

	return r
}
