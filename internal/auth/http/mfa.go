package http

import (
	"net/http"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

// MFAHandler handles all MFA-related endpoints.
type MFAHandler struct {
	MFAService   *service.MFAService
	LoginService *service.LoginService
	Clock        service.Clock
}

// HandleEnable handles POST /auth/mfa/enable
//
//	@Summary		Start TOTP enrollment
//	@Description	Generates a TOTP secret for the authenticated account. MFA is not active until a code is
//	@Description	confirmed with /auth/mfa/verify. An unconfirmed enrollment can be restarted once it goes stale.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MFAEnableResponse	"TOTP secret and provisioning URI"
//	@Failure		400	{object}	authsdk.ErrorResponse		"MFA already enabled or enrollment in progress"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/auth/mfa/enable [post].
func (h *MFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := sessionFrom(ctx)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	enr, err := h.MFAService.BeginEnroll(ctx, sess.Principal.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("mfa enrollment started", "principal_id", sess.Principal.ID)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MFAEnableResponse{
		Secret:          enr.Secret,
		ProvisioningURI: enr.ProvisioningURI,
		Issuer:          enr.Issuer,
		Account:         enr.Account,
	})
}

// HandleVerify handles POST /auth/mfa/verify
//
//	@Summary		Verify a TOTP code
//	@Description	Confirms a pending enrollment, or checks a code for an account with MFA enabled. Returns an
//	@Description	access token that satisfies MFA.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFACodeRequest	true	"TOTP code"
//	@Success		200		{object}	authsdk.TokenResponse	"Stepped-up access token"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid code or MFA not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/auth/mfa/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := sessionFrom(ctx)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	var req authsdk.MFACodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tok, err := h.LoginService.VerifyMFA(ctx, sess, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(tok, h.Clock.Now(), false))
}

// HandleDisable handles POST /auth/mfa/disable
//
//	@Summary		Disable MFA
//	@Description	Turns MFA off after checking a current TOTP code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.MFACodeRequest	true	"TOTP code"
//	@Success		200		{object}	authsdk.MessageResponse	"MFA disabled"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid code or MFA not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/auth/mfa/disable [post].
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := sessionFrom(ctx)
	if !ok {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}

	var req authsdk.MFACodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.MFAService.Disable(ctx, sess.Principal.ID, req.Code); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "MFA disabled successfully"})
}
