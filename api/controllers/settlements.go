package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/api/responses"
	"github.com/entregalo/entregalo-backend/api/validators"
	settlementsvc "github.com/entregalo/entregalo-backend/internal/settlements"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/logger"
	"github.com/entregalo/entregalo-backend/pkg/pagination"
)

// computeSettlementRequest accepts either a session id or a carrier+date
// pair; exactly one grouping must be provided.
type computeSettlementRequest struct {
	SessionID      *uuid.UUID `json:"session_id,omitempty"`
	CarrierID      *uuid.UUID `json:"carrier_id,omitempty"`
	Date           *string    `json:"date,omitempty"`
	CollectedCents *int64     `json:"collected_cents,omitempty" validate:"omitempty,gte=0"`
	Notes          *string    `json:"notes,omitempty"`
}

// SettlementCompute reconciles a session or a carrier day into a settlement.
func SettlementCompute(svc settlementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		storeID, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload computeSettlementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bySession := payload.SessionID != nil
		byDate := payload.CarrierID != nil || payload.Date != nil
		if bySession == byDate {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "provide either session_id or carrier_id with date"))
			return
		}

		if bySession {
			settlement, err := svc.ComputeForSession(r.Context(), settlementsvc.ComputeSessionInput{
				StoreID:        storeID,
				SessionID:      *payload.SessionID,
				CollectedCents: payload.CollectedCents,
				Notes:          payload.Notes,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, settlement)
			return
		}

		if payload.CarrierID == nil || payload.Date == nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "carrier_id and date are both required for date grouping"))
			return
		}
		date, err := time.Parse("2006-01-02", *payload.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD"))
			return
		}

		settlement, err := svc.ComputeForDate(r.Context(), settlementsvc.ComputeDateInput{
			StoreID:        storeID,
			CarrierID:      *payload.CarrierID,
			Date:           date,
			CollectedCents: payload.CollectedCents,
			Notes:          payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, settlement)
	}
}

type recordPaymentRequest struct {
	AmountCents int64   `json:"amount_cents" validate:"required,gt=0"`
	Method      *string `json:"method,omitempty"`
	Reference   *string `json:"reference,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// SettlementPayment applies one carrier payment against a settlement.
func SettlementPayment(svc settlementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		storeID, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlementID, err := uuid.Parse(chi.URLParam(r, "settlementID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid settlement id"))
			return
		}

		var payload recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		settlement, err := svc.RecordPayment(r.Context(), settlementsvc.RecordPaymentInput{
			StoreID:      storeID,
			SettlementID: settlementID,
			AmountCents:  payload.AmountCents,
			Method:       payload.Method,
			Reference:    payload.Reference,
			Notes:        payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, settlement)
	}
}

// SettlementsPending lists open settlements, newest first, cursor-paginated.
func SettlementsPending(svc settlementsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlements service unavailable"))
			return
		}

		storeID, err := storeFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "limit must be an integer"))
				return
			}
			params.Limit = limit
		}

		list, err := svc.GetPending(r.Context(), storeID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, list)
	}
}
