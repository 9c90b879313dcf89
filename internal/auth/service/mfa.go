package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/budg/internal/auth/domain"
	"github.com/aussiebroadwan/budg/internal/auth/store"
	"github.com/aussiebroadwan/budg/pkg/cryptox"
	"github.com/aussiebroadwan/budg/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSkew       = 1
	totpSecretSize = 20 // 160 bits

	DefaultEnrollmentTTL = 10 * time.Minute
)

var totpOpts = totp.ValidateOpts{
	Period:    totpPeriod,
	Skew:      totpSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// MFAService drives the TOTP state machine
// Disabled -> PendingEnrollment -> Enabled -> Disabled.
// Secrets are sealed before they reach the store.
type MFAService struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Issuer string

	// EnrollmentTTL is how long a pending enrollment blocks a new one.
	// Zero means it blocks until confirmed.
	EnrollmentTTL time.Duration
	Clock         Clock
}

// BeginEnroll generates a secret for a principal with MFA disabled and
// returns it with an otpauth provisioning URI.
func (s *MFAService) BeginEnroll(ctx context.Context, principalID string) (enr domain.MFAEnrollment, err error) {
	defer func() { observe("mfa_enroll_begin", err) }()

	now := s.Clock.Now()
	var staleBefore time.Time
	if s.EnrollmentTTL > 0 {
		staleBefore = now.Add(-s.EnrollmentTTL)
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Principals().GetPrincipalByID(ctx, principalID)
		if err != nil {
			return fmt.Errorf("load principal: %w", err)
		}

		switch p.MFAState() {
		case domain.MFAEnabled:
			return domain.ErrAlreadyEnrolled
		case domain.MFAPendingEnrollment:
			if p.MFAPendingSince == nil || !p.MFAPendingSince.Before(staleBefore) {
				return domain.ErrAlreadyEnrolled
			}
		}

		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      s.Issuer,
			AccountName: p.Email,
			Period:      totpPeriod,
			SecretSize:  totpSecretSize,
			Digits:      otp.DigitsSix,
			Algorithm:   otp.AlgorithmSHA1,
		})
		if err != nil {
			return fmt.Errorf("generate totp key: %w", err)
		}

		sealed, err := s.Sealer.Seal([]byte(key.Secret()))
		if err != nil {
			return fmt.Errorf("seal totp secret: %w", err)
		}

		// The guard in the update catches a concurrent enrollment that
		// committed after our read.
		if err := tx.Principals().BeginMFAEnrollment(ctx, p.ID, sealed, now, staleBefore); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.ErrAlreadyEnrolled
			}
			return fmt.Errorf("store mfa secret: %w", err)
		}

		enr = domain.MFAEnrollment{
			Secret:          key.Secret(),
			ProvisioningURI: key.URL(),
			Issuer:          s.Issuer,
			Account:         p.Email,
		}
		return appendAudit(ctx, tx, p.ID, domain.AuditMFAEnrollBegin, "", now)
	})
	if err != nil {
		return domain.MFAEnrollment{}, err
	}
	return enr, nil
}

// ConfirmEnroll enables MFA once the user proves their authenticator holds
// the pending secret. A wrong code leaves the enrollment pending.
func (s *MFAService) ConfirmEnroll(ctx context.Context, principalID, code string) (err error) {
	defer func() { observe("mfa_confirm", err) }()

	now := s.Clock.Now()
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Principals().GetPrincipalByID(ctx, principalID)
		if err != nil {
			return fmt.Errorf("load principal: %w", err)
		}

		switch p.MFAState() {
		case domain.MFAEnabled:
			return domain.ErrAlreadyEnrolled
		case domain.MFADisabled:
			return domain.ErrMFANotEnabled.WithMessage("MFA enrollment has not been started")
		}

		if err := s.check(p, code, now); err != nil {
			return err
		}

		if err := tx.Principals().EnableMFA(ctx, p.ID, *p.MFASecret); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.ErrInvalidCode.WithMessage("MFA enrollment was restarted")
			}
			return fmt.Errorf("enable mfa: %w", err)
		}

		slogx.FromContext(ctx).Info("mfa enabled", slog.String("principal_id", p.ID))
		return appendAudit(ctx, tx, p.ID, domain.AuditMFAEnabled, "", now)
	})
}

// Verify checks a code for a principal with MFA enabled.
func (s *MFAService) Verify(ctx context.Context, principalID, code string) (err error) {
	defer func() { observe("mfa_verify", err) }()

	p, err := s.Store.Principals().GetPrincipalByID(ctx, principalID)
	if err != nil {
		return fmt.Errorf("load principal: %w", err)
	}
	if p.MFAState() != domain.MFAEnabled {
		return domain.ErrMFANotEnabled
	}
	return s.check(p, code, s.Clock.Now())
}

// Disable turns MFA off after a successful verification and discards the
// secret.
func (s *MFAService) Disable(ctx context.Context, principalID, code string) (err error) {
	defer func() { observe("mfa_disable", err) }()

	now := s.Clock.Now()
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		p, err := tx.Principals().GetPrincipalByID(ctx, principalID)
		if err != nil {
			return fmt.Errorf("load principal: %w", err)
		}
		if p.MFAState() != domain.MFAEnabled {
			return domain.ErrMFANotEnabled
		}

		if err := s.check(p, code, now); err != nil {
			return err
		}

		if err := tx.Principals().DisableMFA(ctx, p.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return domain.ErrMFANotEnabled
			}
			return fmt.Errorf("disable mfa: %w", err)
		}

		slogx.FromContext(ctx).Info("mfa disabled", slog.String("principal_id", p.ID))
		return appendAudit(ctx, tx, p.ID, domain.AuditMFADisabled, "", now)
	})
}

func (s *MFAService) check(p domain.Principal, code string, at time.Time) error {
	secret, err := s.Sealer.Open(*p.MFASecret)
	if err != nil {
		return fmt.Errorf("open totp secret: %w", err)
	}
	if !checkCode(string(secret), code, at) {
		return domain.ErrInvalidCode
	}
	return nil
}

// checkCode validates a 6-digit code against secret at time at, accepting
// one step of drift either way. It does no I/O.
func checkCode(secret, code string, at time.Time) bool {
	code = strings.ReplaceAll(strings.TrimSpace(code), " ", "")
	if len(code) != int(otp.DigitsSix) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totpOpts)
	return err == nil && ok
}
