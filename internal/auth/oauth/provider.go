// Package oauth talks to external identity providers: it builds
// authorization URLs, exchanges codes and fetches the asserted identity.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"golang.org/x/oauth2"
)

// Identity is what a provider asserts about the signed-in user.
type Identity struct {
	AccountID string
	Email     string
}

type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error)
}

// Config holds a provider's client registration. Endpoint and UserInfoURL
// default to the provider's public endpoints when left empty.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

func (c Config) Enabled() bool { return c.ClientID != "" && c.ClientSecret != "" }

// maxUserInfoBytes bounds the userinfo response we are willing to decode.
const maxUserInfoBytes = 1 << 20

// client is the shared implementation; providers differ in endpoints,
// scopes and how the userinfo document is read.
type client struct {
	name        string
	conf        *oauth2.Config
	userInfoURL string
	decode      func(io.Reader) (Identity, error)
}

func newClient(name string, cfg Config, def oauth2.Endpoint, defUserInfo string, scopes []string, decode func(io.Reader) (Identity, error)) *client {
	ep := cfg.Endpoint
	if ep.AuthURL == "" || ep.TokenURL == "" {
		ep = def
	}
	ui := cfg.UserInfoURL
	if ui == "" {
		ui = defUserInfo
	}
	return &client{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       scopes,
		},
		userInfoURL: ui,
		decode:      decode,
	}
}

func (c *client) Name() string { return c.name }

func (c *client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (c *client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrProviderError.WithMessage("authorization code not found")
	}
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, domain.ErrProviderError.WithMessage("failed to get access token").Wrap(err)
	}
	return tok, nil
}

func (c *client) FetchIdentity(ctx context.Context, tok *oauth2.Token) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("oauth: build userinfo request: %w", err)
	}

	resp, err := c.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, domain.ErrProviderError.WithMessage("failed to get user info").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, domain.ErrProviderError.WithMessage(
			fmt.Sprintf("failed to get user info: %s returned %d", c.name, resp.StatusCode))
	}

	id, err := c.decode(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return Identity{}, domain.ErrProviderError.WithMessage("failed to read user info").Wrap(err)
	}
	if id.AccountID == "" {
		return Identity{}, domain.ErrProviderError.WithMessage("provider did not return an account id")
	}
	return id, nil
}

// Registry looks providers up by the name used in URLs.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns ErrUnsupportedProvider for unknown or unconfigured names.
func (r *Registry) Get(name string) (Provider, error) {
	if p, ok := r.providers[strings.ToLower(name)]; ok {
		return p, nil
	}
	return nil, domain.ErrUnsupportedProvider.WithMessage(fmt.Sprintf("unsupported OAuth provider %q", name))
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var errNoAccountID = errors.New("userinfo has no subject")

func decodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode userinfo: %w", err)
	}
	return nil
}
