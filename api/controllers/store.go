package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/entregalo/entregalo-backend/api/middleware"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
)

// storeFromRequest returns the tenant store injected by the StoreContext
// middleware.
func storeFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.StoreIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "store context missing")
	}
	storeID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	return storeID, nil
}
