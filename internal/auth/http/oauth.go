package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/oauth"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// OAuthHandler drives sign-in through an external identity provider.
type OAuthHandler struct {
	Providers    *oauth.Registry
	States       *oauth.StateStore
	OAuthService *service.OAuthService
	FrontendURL  string
	Clock        service.Clock
}

// HandleLogin handles GET /auth/{provider}/login
//
//	@Summary		Start OAuth sign-in
//	@Description	Redirects the browser to the provider's consent page. The state parameter is valid for 10 minutes.
//	@Tags			OAuth
//	@Param			provider	path		string					true	"Identity provider"	Enums(google, facebook)
//	@Success		302			{string}	string					"Redirect to the provider"
//	@Failure		404			{object}	authsdk.ErrorResponse	"Unsupported provider"
//	@Failure		500			{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/auth/{provider}/login [get].
func (h *OAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := h.Providers.Get(r.PathValue("provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, err := h.States.Issue(p.Name())
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback handles GET /auth/{provider}/callback
//
//	@Summary		Finish OAuth sign-in
//	@Description	Exchanges the authorization code, resolves the external identity to an account (creating or
//	@Description	linking one as needed) and redirects to the frontend with an access token. Without a configured
//	@Description	frontend the token is returned as JSON.
//	@Tags			OAuth
//	@Produce		json
//	@Param			provider	path		string					true	"Identity provider"	Enums(google, facebook)
//	@Param			code		query		string					true	"Authorization code"
//	@Param			state		query		string					true	"State issued by /auth/{provider}/login"
//	@Success		302			{string}	string					"Redirect to {FRONTEND_URL}/auth/callback?token=..."
//	@Success		200			{object}	authsdk.TokenResponse	"Access token when no frontend is configured"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Provider error, bad state or account conflict"
//	@Failure		404			{object}	authsdk.ErrorResponse	"Unsupported provider"
//	@Failure		500			{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/auth/{provider}/callback [get].
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	p, err := h.Providers.Get(r.PathValue("provider"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		log.Warn("provider denied authorization", "provider", p.Name(), "error", e)
		writeError(w, r, domain.ErrProviderError.WithMessage("authorization was denied by the provider"))
		return
	}
	if !h.States.Consume(q.Get("state"), p.Name()) {
		writeError(w, r, domain.ErrProviderError.WithMessage("invalid or expired OAuth state"))
		return
	}
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		writeError(w, r, domain.ErrProviderError.WithMessage("missing authorization code"))
		return
	}

	tok, err := p.ExchangeCode(ctx, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := p.FetchIdentity(ctx, tok)
	if err != nil {
		writeError(w, r, err)
		return
	}

	issued, err := h.OAuthService.SignIn(ctx, p.Name(), id.AccountID, id.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if h.FrontendURL == "" {
		httpx.WriteJSON(w, http.StatusOK, tokenResponse(issued, h.Clock.Now(), false))
		return
	}

	httpx.NoCache(w)
	target := strings.TrimSuffix(h.FrontendURL, "/") + "/auth/callback?token=" + url.QueryEscape(issued.Token)
	http.Redirect(w, r, target, http.StatusFound)
}
