package oauth

import (
	"io"

	"golang.org/x/oauth2/facebook"
)

const facebookUserInfoURL = "https://graph.facebook.com/v12.0/me?fields=id,email"

func NewFacebook(cfg Config) Provider {
	return newClient("facebook", cfg, facebook.Endpoint, facebookUserInfoURL,
		[]string{"email", "public_profile"}, decodeFacebook)
}

func decodeFacebook(r io.Reader) (Identity, error) {
	var doc struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &doc); err != nil {
		return Identity{}, err
	}
	if doc.ID == "" {
		return Identity{}, errNoAccountID
	}
	return Identity{AccountID: doc.ID, Email: doc.Email}, nil
}
