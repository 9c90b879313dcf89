package http

import (
	"net/http"

	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
	"github.com/aussiebroadwan/budg/pkg/httpx"
)

type PasswordResetHandler struct {
	ResetService *service.PasswordResetService
}

// HandleRequest handles POST /auth/password-reset/request
//
//	@Summary		Request a password reset
//	@Description	Sends a reset token to the email when it belongs to an active account. The response is the same
//	@Description	either way so it cannot be used to probe for accounts.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetRequest	true	"Account email"
//	@Success		200		{object}	authsdk.MessageResponse			"Request accepted"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/auth/password-reset/request [post].
func (h *PasswordResetHandler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.ResetService.Request(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{
		Message: "If the account exists, a password reset email has been sent",
	})
}

// HandleVerify handles POST /auth/password-reset/verify
//
//	@Summary		Check a reset token
//	@Description	Validates a reset token without consuming it.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetVerifyRequest	true	"Reset token"
//	@Success		200		{object}	authsdk.PasswordResetVerifyResponse	"Account the token belongs to"
//	@Failure		400		{object}	authsdk.ErrorResponse				"Expired, malformed, used or wrong-purpose token"
//	@Failure		429		{object}	authsdk.ErrorResponse				"Rate limit exceeded"
//	@Router			/auth/password-reset/verify [post].
func (h *PasswordResetHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetVerifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.ResetService.Verify(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.PasswordResetVerifyResponse{Email: p.Email})
}

// HandleComplete handles POST /auth/password-reset/complete
//
//	@Summary		Reset the password
//	@Description	Consumes a reset token and sets a new password. Every other outstanding reset token for the account
//	@Description	stops working.
//	@Tags			Password Reset
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordResetCompleteRequest	true	"Reset token and new password"
//	@Success		200		{object}	authsdk.MessageResponse					"Password changed"
//	@Failure		400		{object}	authsdk.ErrorResponse					"Invalid token or password policy violated"
//	@Failure		429		{object}	authsdk.ErrorResponse					"Rate limit exceeded"
//	@Failure		500		{object}	authsdk.ErrorResponse					"Internal server error"
//	@Router			/auth/password-reset/complete [post].
func (h *PasswordResetHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetCompleteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.ResetService.Complete(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: "Password has been reset"})
}
