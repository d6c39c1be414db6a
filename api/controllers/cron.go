package controllers

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/brandpay-backend/api/responses"
	pkgerrors "github.com/angelmondragon/brandpay-backend/pkg/errors"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
)

// TriggerCron fires the jobs registered under {target} and returns immediately.
func TriggerCron(trigger Trigger, targets []string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trigger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "cron trigger unavailable"))
			return
		}
		target := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "target")))
		if !slices.Contains(targets, target) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown cron target").
				WithDetails(map[string]any{"targets": targets}))
			return
		}
		trigger.Fire(r.Context(), target)
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"target": target, "status": "triggered"})
	}
}
