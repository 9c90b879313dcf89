package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
	"github.com/aussiebroadwan/budg/pkg/httpx"
)

// AccountHandler serves registration, password login and the current
// principal.
type AccountHandler struct {
	Credentials *service.CredentialService
	Login       *service.LoginService
	Clock       service.Clock
}

// HandleRegister handles POST /auth/register
//
//	@Summary		Register an account
//	@Description	Creates an active, unverified account with a password. Emails are unique case-insensitively.
//	@Tags			Account
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"Email, password and optional names"
//	@Success		201		{object}	authsdk.PrincipalResponse	"Created account"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Email already registered or password policy violated"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/auth/register [post].
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.Credentials.CreatePrincipal(r.Context(), req.Email, req.Password, domain.Profile{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, principalResponse(p))
}

// HandleToken handles POST /auth/token
//
//	@Summary		Password login
//	@Description	Exchanges an email and password for an access token. The form follows the OAuth2 password grant
//	@Description	(username is the email). A JSON body with the same fields is also accepted.
//	@Description
//	@Description	For accounts with MFA enabled, supply otp to get a token that satisfies MFA directly. Without it
//	@Description	the token is returned with mfa_required set and must be stepped up via /auth/mfa/verify.
//	@Tags			Account
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string					true	"Account email"
//	@Param			password	formData	string					true	"Password"
//	@Param			otp			formData	string					false	"Current TOTP code"
//	@Success		200			{object}	authsdk.TokenResponse	"access_token, token_type, expires_in"
//	@Failure		400			{object}	authsdk.ErrorResponse	"Inactive account, invalid code or malformed request"
//	@Failure		401			{object}	authsdk.ErrorResponse	"Incorrect email or password"
//	@Failure		429			{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500			{object}	authsdk.ErrorResponse	"Internal server error"
//	@Header			200			{string}	Cache-Control			"no-store"
//	@Router			/auth/token [post].
func (h *AccountHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		OTP      string `json:"otp"`
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, domain.ErrInvalidRequest.WithMessage("invalid form body"))
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		req.OTP = r.PostForm.Get("otp")
	}
	if req.Username == "" {
		req.Username = req.Email
	}

	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		writeError(w, r, domain.ErrInvalidRequest.WithMessage("username and password are required"))
		return
	}

	res, err := h.Login.Login(r.Context(), req.Username, req.Password, req.OTP)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res.Token, h.Clock.Now(), res.MFARequired))
}

// HandleMe handles GET /auth/me
//
//	@Summary		Current account
//	@Description	Returns the account behind the bearer token. Accounts with MFA enabled need a token that carries MFA.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.PrincipalResponse	"Current account"
//	@Failure		400	{object}	authsdk.ErrorResponse		"Inactive account"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token, or MFA required"
//	@Failure		429	{object}	authsdk.ErrorResponse		"Rate limit exceeded"
//	@Router			/auth/me [get].
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, principalResponse(sess.Principal))
}
