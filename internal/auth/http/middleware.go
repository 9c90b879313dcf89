package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/pkg/httpx"
)

type ctxKey int

const sessionKey ctxKey = iota

func withSession(ctx context.Context, s service.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// sessionFrom returns the session stored by the authenticate middleware.
func sessionFrom(ctx context.Context) (service.Session, bool) {
	s, ok := ctx.Value(sessionKey).(service.Session)
	return s, ok
}

// authenticate resolves the bearer token to a session and stores it in the
// request context. With requireMFA set, MFA-enabled principals need a
// stepped-up token.
func (r *Router) authenticate(requireMFA bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := r.Gate.Authenticate(req.Context(), httpx.BearerToken(req), requireMFA)
			if err != nil {
				writeError(w, req, err)
				return
			}
			next.ServeHTTP(w, req.WithContext(withSession(req.Context(), sess)))
		})
	}
}

// admissionExempt lists path prefixes that are never counted: probes,
// metrics scrapes and the API docs.
var admissionExempt = []string{"/livez", "/readyz", "/metrics", "/swagger/"}

// admit charges every other request against the per-principal and
// per-address limits. A failing counter store rejects the request.
func (r *Router) admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if r.Admission == nil || isExempt(req.URL.Path) {
			next.ServeHTTP(w, req)
			return
		}

		addr := httpx.ClientIP(req, r.opts.TrustProxy)
		if err := r.Admission.Admit(req.Context(), httpx.BearerToken(req), addr); err != nil {
			writeError(w, req, err)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func isExempt(path string) bool {
	for _, p := range admissionExempt {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
