package oauth

import (
	"io"

	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

func NewGoogle(cfg Config) Provider {
	return newClient("google", cfg, google.Endpoint, googleUserInfoURL,
		[]string{"openid", "email", "profile"}, decodeGoogle)
}

func decodeGoogle(r io.Reader) (Identity, error) {
	var doc struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
	}
	if err := decodeJSON(r, &doc); err != nil {
		return Identity{}, err
	}
	if doc.Sub == "" {
		return Identity{}, errNoAccountID
	}

	id := Identity{AccountID: doc.Sub, Email: doc.Email}
	// an unverified address must not be used to merge accounts
	if doc.EmailVerified != nil && !*doc.EmailVerified {
		id.Email = ""
	}
	return id, nil
}
