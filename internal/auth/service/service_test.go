package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/ratelimit"
	"github.com/aussiebroadwan/budg/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentReset struct {
	email string
	token domain.IssuedToken
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentReset
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email string, tok domain.IssuedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentReset{email: email, token: tok})
	return nil
}

func (m *recordingMailer) last(t *testing.T) sentReset {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

type harness struct {
	store   *sqlite.Store
	clock   *testClock
	counter *ratelimit.MemoryCounter

	creds     *CredentialService
	tokens    *TokenService
	mfa       *MFAService
	login     *LoginService
	oauth     *OAuthService
	reset     *PasswordResetService
	gate      *Gate
	admission *Admission
	mailer    *recordingMailer
}

var testArgon2 = cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	// second aligned so token expiry lands exactly where the tests expect
	clk := &testClock{t: time.Now().UTC().Truncate(time.Second)}
	clock := Clock(clk.Now)

	hmac, err := jwtx.NewHMAC("HS256", []byte("0123456789abcdef0123456789abcdef"), "budg-test")
	require.NoError(t, err)
	hmac = hmac.WithClock(clk.Now)

	sealer, err := cryptox.NewSealer([]byte("test-master-key"))
	require.NoError(t, err)

	hasher := cryptox.NewHasher("test-pepper", testArgon2)

	h := &harness{store: st, clock: clk, mailer: &recordingMailer{}}
	h.counter = ratelimit.NewMemoryCounter().WithClock(clk.Now)
	h.creds = &CredentialService{Store: st, Hasher: hasher, Clock: clock}
	h.tokens = &TokenService{Signer: hmac, Verifier: hmac, Issuer: "budg-test", Clock: clock}
	h.mfa = &MFAService{Store: st, Sealer: sealer, Issuer: "Budg", EnrollmentTTL: DefaultEnrollmentTTL, Clock: clock}
	h.login = &LoginService{Credentials: h.creds, MFA: h.mfa, Tokens: h.tokens}
	h.oauth = &OAuthService{Store: st, Tokens: h.tokens, MergeByEmail: true, Clock: clock}
	h.reset = &PasswordResetService{Store: st, Tokens: h.tokens, Hasher: hasher, Mailer: h.mailer, Clock: clock}
	h.gate = &Gate{Tokens: h.tokens, Store: st}
	h.admission = &Admission{
		Limiter:      ratelimit.New(h.counter),
		Tokens:       h.tokens,
		UserLimit:    2,
		AddressLimit: 5,
		Window:       time.Minute,
	}
	return h
}

func (h *harness) register(t *testing.T, email, password string) domain.Principal {
	t.Helper()
	p, err := h.creds.CreatePrincipal(context.Background(), email, password, domain.Profile{})
	require.NoError(t, err)
	return p
}

func (h *harness) reload(t *testing.T, id string) domain.Principal {
	t.Helper()
	p, err := h.store.Principals().GetPrincipalByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func (h *harness) code(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	c, err := totp.GenerateCodeCustom(secret, at, totpOpts)
	require.NoError(t, err)
	return c
}

// enable walks a principal through enrollment and returns the secret.
func (h *harness) enable(t *testing.T, id string) string {
	t.Helper()
	ctx := context.Background()
	enr, err := h.mfa.BeginEnroll(ctx, id)
	require.NoError(t, err)
	require.NoError(t, h.mfa.ConfirmEnroll(ctx, id, h.code(t, enr.Secret, h.clock.Now())))
	return enr.Secret
}

func (h *harness) auditActions(t *testing.T, principalID string) []domain.AuditAction {
	t.Helper()
	events, err := h.store.Audit().ListAuditEvents(context.Background(), principalID, 100)
	require.NoError(t, err)
	actions := make([]domain.AuditAction, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}
