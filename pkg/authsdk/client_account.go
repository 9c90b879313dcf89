package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates a password account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*PrincipalResponse, error) {
	var out PrincipalResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/register", "", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges an email and password for an access token. otp may be
// empty; for accounts with MFA enabled the returned token then has
// MFARequired set.
func (c *Client) Login(ctx context.Context, email, password, otp string) (*TokenResponse, error) {
	data := url.Values{
		"username": {email},
		"password": {password},
	}
	if otp != "" {
		data.Set("otp", otp)
	}

	var out TokenResponse
	if err := c.doForm(ctx, "/auth/token", data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the account behind accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*PrincipalResponse, error) {
	var out PrincipalResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", accessToken, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestPasswordReset asks for a reset token to be delivered to email. The
// service answers the same way whether or not the account exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*MessageResponse, error) {
	var out MessageResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/password-reset/request", "",
		PasswordResetRequest{Email: email}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPasswordReset checks a reset token without consuming it.
func (c *Client) VerifyPasswordReset(ctx context.Context, token string) (*PasswordResetVerifyResponse, error) {
	var out PasswordResetVerifyResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/password-reset/verify", "",
		PasswordResetVerifyRequest{Token: token}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompletePasswordReset consumes token and sets newPassword.
func (c *Client) CompletePasswordReset(ctx context.Context, token, newPassword string) (*MessageResponse, error) {
	var out MessageResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/password-reset/complete", "",
		PasswordResetCompleteRequest{Token: token, NewPassword: newPassword}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
