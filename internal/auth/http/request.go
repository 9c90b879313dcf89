package http

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
)

const maxBodyBytes = 1 << 20

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.ErrInvalidRequest.WithMessage("request body must be a JSON object")
	}
	return nil
}

func principalResponse(p domain.Principal) authsdk.PrincipalResponse {
	resp := authsdk.PrincipalResponse{
		ID:          p.ID,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		IsActive:    p.Active,
		IsVerified:  p.Verified,
		MFAEnabled:  p.MFAState() == domain.MFAEnabled,
		HasPassword: p.HasPassword(),
		CreatedAt:   p.CreatedAt,
	}
	if p.IsLinked() {
		resp.OAuthProvider = *p.OAuthProvider
	}
	return resp
}

func tokenResponse(tok domain.IssuedToken, now time.Time, mfaRequired bool) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken: tok.Token,
		TokenType:   "bearer",
		ExpiresIn:   max(int(math.Round(tok.ExpiresAt.Sub(now).Seconds())), 0),
		MFARequired: mfaRequired,
	}
}
