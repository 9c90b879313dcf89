package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client is a client for the Budg authentication service.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,

			// OAuth login and callback answer with redirects the caller
			// needs to see, not follow.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// LoginURL is where a browser starts an OAuth sign-in with provider.
func (c *Client) LoginURL(provider string) string {
	return c.url("/auth/" + provider + "/login")
}
