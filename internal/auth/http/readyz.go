package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/ratelimit"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the principal store and the rate-limit counter store
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	limiter *ratelimit.Limiter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := slogx.FromContext(r.Context())
		checks := &authsdk.HealthChecks{
			Database: "ok",
			Counter:  "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			log.Warn("readiness: store ping failed", "err", err)
			checks.Database = "unavailable"
			overallStatus = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		if limiter != nil {
			if err := limiter.Ping(r.Context()); err != nil {
				log.Warn("readiness: counter ping failed", "err", err)
				checks.Counter = "unavailable"
				overallStatus = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, authsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
