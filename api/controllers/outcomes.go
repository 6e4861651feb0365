package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/api/responses"
	"github.com/entregalo/entregalo-backend/api/validators"
	outcomesvc "github.com/entregalo/entregalo-backend/internal/outcomes"
	"github.com/entregalo/entregalo-backend/pkg/enums"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/logger"
)

type recordOutcomeRequest struct {
	OrderID              uuid.UUID `json:"order_id" validate:"required"`
	Status               string    `json:"status" validate:"required"`
	AmountCollectedCents int64     `json:"amount_collected_cents" validate:"gte=0"`
	FailureReason        *string   `json:"failure_reason,omitempty"`
}

// OutcomeRecord stores one courier-reported delivery result for a session line.
func OutcomeRecord(svc outcomesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "outcomes service unavailable"))
			return
		}

		storeID, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid session id"))
			return
		}

		var payload recordOutcomeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.RecordOutcome(r.Context(), outcomesvc.RecordOutcomeInput{
			StoreID:              storeID,
			SessionID:            sessionID,
			OrderID:              payload.OrderID,
			Status:               enums.DeliveryStatus(payload.Status),
			AmountCollectedCents: payload.AmountCollectedCents,
			FailureReason:        payload.FailureReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, line)
	}
}
