package controllers

import (
	"context"
	"net/http"

	"github.com/robojust/storefront-backend/api/responses"
	"github.com/robojust/storefront-backend/pkg/config"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/logger"
)

// DependencyPinger is anything readiness should verify before the instance
// accepts traffic.
type DependencyPinger interface {
	Ping(ctx context.Context) error
}

// HealthLive answers as soon as the process serves HTTP.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Robojust-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the backing stores and reports 503 until all answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers ...DependencyPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Robojust-Env", cfg.App.Env)
		for _, p := range pingers {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
