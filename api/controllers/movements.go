package controllers

import (
	"net/http"

	"github.com/entregalo/entregalo-backend/api/responses"
	"github.com/entregalo/entregalo-backend/api/validators"
	backfillsvc "github.com/entregalo/entregalo-backend/internal/backfill"
	movementsvc "github.com/entregalo/entregalo-backend/internal/movements"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/logger"
)

// MovementsHealth reports ledger anomaly counts.
func MovementsHealth(svc movementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "movements service unavailable"))
			return
		}

		report, err := svc.HealthReport(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}

type backfillRequest struct {
	Apply     bool `json:"apply"`
	BatchSize int  `json:"batch_size" validate:"omitempty,gte=1"`
}

// MovementsBackfill runs a repair pass over the ledger. Dry run unless apply
// is set.
func MovementsBackfill(svc backfillsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "backfill service unavailable"))
			return
		}

		payload := backfillRequest{}
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		report, err := svc.FixMovements(r.Context(), backfillsvc.Input{
			Apply:     payload.Apply,
			BatchSize: payload.BatchSize,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
