package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/oauth"
	"github.com/aussiebroadwan/budg/internal/auth/ratelimit"
	"github.com/aussiebroadwan/budg/internal/auth/service"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/budg/pkg/authsdk"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/httpx"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
	"github.com/aussiebroadwan/budg/pkg/slogx"
)

type recordingMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email string, tok domain.IssuedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = tok.Token
	return nil
}

func (m *recordingMailer) token(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

type fakeProvider struct {
	identity oauth.Identity
}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state)
}

func (fakeProvider) ExchangeCode(_ context.Context, code string) (*oauth2.Token, error) {
	if code != "good-code" {
		return nil, domain.ErrProviderError.WithMessage("code exchange failed")
	}
	return &oauth2.Token{AccessToken: "provider-token"}, nil
}

func (f fakeProvider) FetchIdentity(context.Context, *oauth2.Token) (oauth.Identity, error) {
	return f.identity, nil
}

type testEnv struct {
	server *httptest.Server
	client *authsdk.Client
	mailer *recordingMailer
}

type envConfig struct {
	addressLimit int64
	strict       httpx.RateLimitConfig
	frontendURL  string
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	hmac, err := jwtx.NewHMAC("HS256", []byte("0123456789abcdef0123456789abcdef"), "budg-test")
	require.NoError(t, err)
	sealer, err := cryptox.NewSealer([]byte("test-master-key"))
	require.NoError(t, err)
	hasher := cryptox.NewHasher("test-pepper", cryptox.Argon2Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16,
	})

	if cfg.addressLimit == 0 {
		cfg.addressLimit = 1000
	}
	if cfg.strict.RequestsPerWindow == 0 {
		cfg.strict = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}
	}

	mailer := &recordingMailer{tokens: map[string]string{}}
	tokens := &service.TokenService{Signer: hmac, Verifier: hmac, Issuer: "budg-test"}
	creds := &service.CredentialService{Store: st, Hasher: hasher}
	mfa := &service.MFAService{Store: st, Sealer: sealer, Issuer: "Budg"}
	limiter := ratelimit.New(ratelimit.NewMemoryCounter())

	r := NewRouter(st, slogx.Discard(), Options{
		BuildVersion: "test",
		FrontendURL:  cfg.frontendURL,
		StrictLimit:  cfg.strict,
	})
	r.Credentials = creds
	r.Tokens = tokens
	r.LoginService = &service.LoginService{Credentials: creds, MFA: mfa, Tokens: tokens}
	r.MFAService = mfa
	r.ResetService = &service.PasswordResetService{Store: st, Tokens: tokens, Hasher: hasher, Mailer: mailer}
	r.OAuthService = &service.OAuthService{Store: st, Tokens: tokens, MergeByEmail: true}
	r.Gate = &service.Gate{Tokens: tokens, Store: st}
	r.Admission = &service.Admission{
		Limiter:      limiter,
		Tokens:       tokens,
		UserLimit:    1000,
		AddressLimit: cfg.addressLimit,
		Window:       time.Minute,
	}
	r.Limiter = limiter
	r.Providers = oauth.NewRegistry(fakeProvider{identity: oauth.Identity{AccountID: "fb-1", Email: "ada@example.com"}})
	r.States = oauth.NewStateStore(0, 0)
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, client: authsdk.NewClient(srv.URL), mailer: mailer}
}

func (e *testEnv) register(t *testing.T, email, password string) {
	t.Helper()
	_, err := e.client.Register(context.Background(), authsdk.RegisterRequest{Email: email, Password: password})
	require.NoError(t, err)
}

func apiErr(t *testing.T, err error) *authsdk.APIError {
	t.Helper()
	require.Error(t, err)
	e, ok := err.(*authsdk.APIError)
	require.True(t, ok, "want *authsdk.APIError, got %T: %v", err, err)
	return e
}

func TestRegisterLoginMe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	ctx := context.Background()

	p, err := env.client.Register(ctx, authsdk.RegisterRequest{
		Email:     "  Ada@Example.com ",
		Password:  "correct horse",
		FirstName: "Ada",
	})
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", p.Email)
	require.Equal(t, "Ada", p.FirstName)
	require.True(t, p.IsActive)
	require.False(t, p.IsVerified)
	require.True(t, p.HasPassword)

	_, err = env.client.Register(ctx, authsdk.RegisterRequest{Email: "ADA@example.com", Password: "another pass"})
	e := apiErr(t, err)
	require.Equal(t, http.StatusBadRequest, e.StatusCode)
	require.Equal(t, authsdk.ErrorCodeDuplicateEmail, e.Code)

	tok, err := env.client.Login(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)
	require.Equal(t, "bearer", tok.TokenType)
	require.InDelta(t, 1800, tok.ExpiresIn, 2)
	require.False(t, tok.MFARequired)

	me, err := env.client.Me(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.Equal(t, p.ID, me.ID)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})

	tests := []struct {
		name string
		req  authsdk.RegisterRequest
	}{
		{"bad email", authsdk.RegisterRequest{Email: "not-an-email", Password: "long enough"}},
		{"short password", authsdk.RegisterRequest{Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.client.Register(context.Background(), tt.req)
			e := apiErr(t, err)
			require.Equal(t, http.StatusBadRequest, e.StatusCode)
			require.Equal(t, authsdk.ErrorCodeInvalidRequest, e.Code)
		})
	}

	resp, err := http.Post(env.server.URL+"/auth/register", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	env.register(t, "ada@example.com", "correct horse")

	resp, err := http.PostForm(env.server.URL+"/auth/token", url.Values{
		"username": {"ada@example.com"},
		"password": {"wrong horse"},
	})
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Bearer", resp.Header.Get("WWW-Authenticate"))
	require.Contains(t, string(body), authsdk.ErrorCodeInvalidCredentials)

	_, err = env.client.Login(context.Background(), "nobody@example.com", "correct horse", "")
	require.Equal(t, authsdk.ErrorCodeInvalidCredentials, authsdk.ErrorCode(err))

	_, err = env.client.Login(context.Background(), "", "", "")
	require.Equal(t, authsdk.ErrorCodeInvalidRequest, authsdk.ErrorCode(err))
}

func TestLoginAcceptsJSON(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	env.register(t, "ada@example.com", "correct horse")

	resp, err := http.Post(env.server.URL+"/auth/token", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"correct horse"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestMeRequiresBearer(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})

	for _, tok := range []string{"", "not-a-jwt"} {
		_, err := env.client.Me(context.Background(), tok)
		e := apiErr(t, err)
		require.Equal(t, http.StatusUnauthorized, e.StatusCode)
		require.Equal(t, authsdk.ErrorCodeUnauthenticated, e.Code)
	}
}

func TestMFAFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	ctx := context.Background()
	c := env.client

	env.register(t, "ada@example.com", "correct horse")
	tok, err := c.Login(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)

	_, err = c.DisableMFA(ctx, tok.AccessToken, "123456")
	require.Equal(t, authsdk.ErrorCodeMFANotEnabled, authsdk.ErrorCode(err))

	enr, err := c.EnableMFA(ctx, tok.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, enr.Secret)
	require.Equal(t, "Budg", enr.Issuer)
	require.Equal(t, "ada@example.com", enr.Account)
	require.True(t, strings.HasPrefix(enr.ProvisioningURI, "otpauth://totp/"))

	_, err = c.EnableMFA(ctx, tok.AccessToken)
	require.Equal(t, authsdk.ErrorCodeAlreadyEnrolled, authsdk.ErrorCode(err))

	_, err = c.VerifyMFA(ctx, tok.AccessToken, "000000x")
	require.Equal(t, authsdk.ErrorCodeInvalidCode, authsdk.ErrorCode(err))

	code, err := totp.GenerateCode(enr.Secret, time.Now())
	require.NoError(t, err)
	stepped, err := c.VerifyMFA(ctx, tok.AccessToken, code)
	require.NoError(t, err)
	require.NotEmpty(t, stepped.AccessToken)

	// A password-only login now needs a step-up before /auth/me.
	weak, err := c.Login(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)
	require.True(t, weak.MFARequired)

	_, err = c.Me(ctx, weak.AccessToken)
	e := apiErr(t, err)
	require.Equal(t, http.StatusUnauthorized, e.StatusCode)
	require.Equal(t, authsdk.ErrorCodeMFARequired, e.Code)

	me, err := c.Me(ctx, stepped.AccessToken)
	require.NoError(t, err)
	require.True(t, me.MFAEnabled)

	strong, err := c.Login(ctx, "ada@example.com", "correct horse", code)
	require.NoError(t, err)
	require.False(t, strong.MFARequired)
	_, err = c.Me(ctx, strong.AccessToken)
	require.NoError(t, err)

	_, err = c.DisableMFA(ctx, weak.AccessToken, code)
	require.NoError(t, err)

	me, err = c.Me(ctx, weak.AccessToken)
	require.NoError(t, err)
	require.False(t, me.MFAEnabled)
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	ctx := context.Background()
	c := env.client

	env.register(t, "ada@example.com", "correct horse")

	known, err := c.RequestPasswordReset(ctx, "ada@example.com")
	require.NoError(t, err)
	unknown, err := c.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.Equal(t, known.Message, unknown.Message)

	resetToken := env.mailer.token("ada@example.com")
	require.NotEmpty(t, resetToken)

	v, err := c.VerifyPasswordReset(ctx, resetToken)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", v.Email)

	_, err = c.CompletePasswordReset(ctx, resetToken, "short")
	require.Equal(t, authsdk.ErrorCodeInvalidRequest, authsdk.ErrorCode(err))

	_, err = c.CompletePasswordReset(ctx, resetToken, "a much better passphrase")
	require.NoError(t, err)

	_, err = c.VerifyPasswordReset(ctx, resetToken)
	require.Equal(t, authsdk.ErrorCodeTokenExpired, authsdk.ErrorCode(err))

	_, err = c.Login(ctx, "ada@example.com", "correct horse", "")
	require.Equal(t, authsdk.ErrorCodeInvalidCredentials, authsdk.ErrorCode(err))
	_, err = c.Login(ctx, "ada@example.com", "a much better passphrase", "")
	require.NoError(t, err)
}

func TestPasswordResetRejectsAccessToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	ctx := context.Background()

	env.register(t, "ada@example.com", "correct horse")
	tok, err := env.client.Login(ctx, "ada@example.com", "correct horse", "")
	require.NoError(t, err)

	_, err = env.client.VerifyPasswordReset(ctx, tok.AccessToken)
	require.Equal(t, authsdk.ErrorCodeTokenPurposeMismatch, authsdk.ErrorCode(err))

	_, err = env.client.VerifyPasswordReset(ctx, "garbage")
	require.Equal(t, authsdk.ErrorCodeTokenMalformed, authsdk.ErrorCode(err))
}

func TestOAuthSignIn(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{frontendURL: "https://app.example.com/"})
	c := env.client

	resp, err := c.HTTPClient.Get(c.LoginURL("fake"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", loc.Host)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	callback := func(state, code string) *http.Response {
		q := url.Values{"state": {state}, "code": {code}}
		resp, err := c.HTTPClient.Get(env.server.URL + "/auth/fake/callback?" + q.Encode())
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp = callback(state, "good-code")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	dest, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "app.example.com", dest.Host)
	require.Equal(t, "/auth/callback", dest.Path)

	me, err := c.Me(context.Background(), dest.Query().Get("token"))
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", me.Email)
	require.Equal(t, "fake", me.OAuthProvider)
	require.True(t, me.IsVerified)
	require.False(t, me.HasPassword)

	// states are single use
	resp = callback(state, "good-code")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOAuthCallbackErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	c := env.client

	resp, err := c.HTTPClient.Get(c.LoginURL("myspace"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = c.HTTPClient.Get(env.server.URL + "/auth/fake/callback?state=forged&code=good-code")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = c.HTTPClient.Get(c.LoginURL("fake"))
	require.NoError(t, err)
	resp.Body.Close()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	resp, err = c.HTTPClient.Get(env.server.URL + "/auth/fake/callback?code=bad-code&state=" + url.QueryEscape(loc.Query().Get("state")))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestOAuthCallbackWithoutFrontendReturnsJSON(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})
	c := env.client

	resp, err := c.HTTPClient.Get(c.LoginURL("fake"))
	require.NoError(t, err)
	resp.Body.Close()
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)

	q := url.Values{"state": {loc.Query().Get("state")}, "code": {"good-code"}}
	resp, err = c.HTTPClient.Get(env.server.URL + "/auth/fake/callback?" + q.Encode())
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"access_token"`)
}

func TestAdmissionByAddress(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{addressLimit: 3})
	ctx := context.Background()

	for range 3 {
		_, err := env.client.Me(ctx, "")
		require.Equal(t, authsdk.ErrorCodeUnauthenticated, authsdk.ErrorCode(err))
	}

	_, err := env.client.Me(ctx, "")
	e := apiErr(t, err)
	require.Equal(t, http.StatusTooManyRequests, e.StatusCode)
	require.Equal(t, authsdk.ErrorCodeRateLimited, e.Code)
	require.Equal(t, "ip rate limit exceeded", e.Description)
	require.Positive(t, e.RetryAfter)

	// probes are never counted
	_, err = env.client.Liveness(ctx)
	require.NoError(t, err)
	_, err = env.client.Health(ctx)
	require.NoError(t, err)
}

func TestAdmissionIgnoresForwardedForByDefault(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{addressLimit: 2})

	var last int
	for i := range 3 {
		req, err := http.NewRequest(http.MethodGet, env.server.URL+"/auth/me", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))

		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		last = resp.StatusCode
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}

func TestStrictLimiterOnToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{
		strict: httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Hour, Burst: 2},
	})
	env.register(t, "ada@example.com", "correct horse")

	for range 2 {
		_, err := env.client.Login(context.Background(), "ada@example.com", "wrong horse", "")
		require.Equal(t, authsdk.ErrorCodeInvalidCredentials, authsdk.ErrorCode(err))
	}
	_, err := env.client.Login(context.Background(), "ada@example.com", "correct horse", "")
	require.Equal(t, authsdk.ErrorCodeRateLimited, authsdk.ErrorCode(err))

	// registration is not behind the strict limiter
	env.register(t, "grace@example.com", "correct horse")
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})

	live, err := env.client.Liveness(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)
	require.Nil(t, live.Checks)

	ready, err := env.client.Health(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, &authsdk.HealthChecks{Database: "ok", Counter: "ok"}, ready.Checks)
}

func TestRequestIDAndMetrics(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envConfig{})

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/livez", nil)
	require.NoError(t, err)
	req.Header.Set(slogx.RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "req-123", resp.Header.Get(slogx.RequestIDHeader))

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `budg_auth_http_requests_total{method="GET",route="GET /livez"`)
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrDuplicateEmail, http.StatusBadRequest},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrInactiveAccount, http.StatusBadRequest},
		{domain.ErrTokenExpired.WithMessage("custom"), http.StatusBadRequest},
		{domain.ErrMFARequired, http.StatusUnauthorized},
		{domain.ErrUnsupportedProvider, http.StatusNotFound},
		{&service.RateLimitedError{Scope: "user", RetryAfter: 1500 * time.Millisecond}, http.StatusTooManyRequests},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			require.Equal(t, tt.status, rec.Code)

			if tt.status == http.StatusTooManyRequests {
				require.Equal(t, "2", rec.Header().Get("Retry-After"))
			}
			if tt.status == http.StatusInternalServerError {
				require.Contains(t, rec.Body.String(), authsdk.ErrorCodeServerError)
				require.NotContains(t, rec.Body.String(), "unexpected EOF")
			}
		})
	}
}
