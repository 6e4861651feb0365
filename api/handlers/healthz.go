package handlers

import (
	"net/http"

	"github.com/entregalo/entregalo-backend/api/responses"
	"github.com/entregalo/entregalo-backend/pkg/config"
	"github.com/entregalo/entregalo-backend/pkg/db"
	pkgerrors "github.com/entregalo/entregalo-backend/pkg/errors"
	"github.com/entregalo/entregalo-backend/pkg/logger"
	"github.com/entregalo/entregalo-backend/pkg/redis"
)

func Healthz(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"env":  cfg.App.Env,
				"path": r.URL.Path,
			})
			logg.Info(ctx, "health.check")
		}

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unreachable"))
				return
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unreachable"))
				return
			}
		}

		w.Header().Set("X-Entregalo-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}
