package controllers

import (
	"context"
	"net/http"

	"github.com/learnsphere/learnsphere-backend/api/responses"
	"github.com/learnsphere/learnsphere-backend/pkg/config"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
)

const envHeader = "X-LearnSphere-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the backing stores are reachable before reporting
// ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		checks := map[string]pinger{
			"database": db,
			"redis":    cache,
		}
		for name, dependency := range checks {
			if dependency == nil {
				continue
			}
			if err := dependency.Ping(r.Context()); err != nil {
				wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unreachable")
				responses.WriteError(r.Context(), logg, w, wrapped)
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
