package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/api/responses"
	"github.com/entregalo/entregalo-backend/api/validators"
	dispatchsvc "github.com/entregalo/entregalo-backend/internal/dispatch"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/logger"
)

type createSessionRequest struct {
	CarrierID    uuid.UUID   `json:"carrier_id" validate:"required"`
	OrderIDs     []uuid.UUID `json:"order_ids" validate:"required,min=1"`
	CreatedBy    uuid.UUID   `json:"created_by" validate:"required"`
	DispatchDate *string     `json:"dispatch_date,omitempty"`
}

// DispatchSessionCreate hands a batch of orders to a carrier.
func DispatchSessionCreate(svc dispatchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
			return
		}

		storeID, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := dispatchsvc.CreateSessionInput{
			StoreID:   storeID,
			CarrierID: payload.CarrierID,
			OrderIDs:  payload.OrderIDs,
			CreatedBy: payload.CreatedBy,
		}
		if payload.DispatchDate != nil {
			date, err := time.Parse("2006-01-02", *payload.DispatchDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "dispatch_date must be YYYY-MM-DD"))
				return
			}
			input.DispatchDate = date
		}

		session, err := svc.CreateSession(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// DispatchSessionGet returns one session with its lines.
func DispatchSessionGet(svc dispatchsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch service unavailable"))
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

		session, err := svc.GetSession(r.Context(), storeID, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, session)
	}
}
