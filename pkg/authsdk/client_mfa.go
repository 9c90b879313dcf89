package authsdk

import (
	"context"
	"net/http"
)

// EnableMFA starts TOTP enrollment for the account behind accessToken.
func (c *Client) EnableMFA(ctx context.Context, accessToken string) (*MFAEnableResponse, error) {
	var out MFAEnableResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/mfa/enable", accessToken, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMFA confirms a pending enrollment or checks a code for an enabled
// account. Either way it returns an access token that satisfies MFA.
func (c *Client) VerifyMFA(ctx context.Context, accessToken, code string) (*TokenResponse, error) {
	var out TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/mfa/verify", accessToken,
		MFACodeRequest{Code: code}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableMFA turns MFA off. It needs a current code.
func (c *Client) DisableMFA(ctx context.Context, accessToken, code string) (*MessageResponse, error) {
	var out MessageResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/mfa/disable", accessToken,
		MFACodeRequest{Code: code}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
