package domain

import (
	"strings"
	"time"
)

// Principal is a registered identity. Email is stored in normalized form.
type Principal struct {
	ID           string
	Email        string
	PasswordHash *string // nil for OAuth-only principals
	FirstName    string
	LastName     string

	Active   bool
	Verified bool

	MFAEnabled      bool
	MFASecret       *string    // sealed; set while enrolling or enabled
	MFAPendingSince *time.Time // when the current enrollment began

	OAuthProvider  *string
	OAuthAccountID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile holds the optional descriptive fields supplied at registration.
type Profile struct {
	FirstName string
	LastName  string
}

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p Principal) HasPassword() bool { return p.PasswordHash != nil && *p.PasswordHash != "" }

func (p Principal) IsLinked() bool {
	return p.OAuthProvider != nil && p.OAuthAccountID != nil
}

// Reachable reports whether some credential can authenticate p. Principals
// that are not reachable must never be persisted.
func (p Principal) Reachable() bool { return p.HasPassword() || p.IsLinked() }

func (p Principal) MFAState() MFAState {
	switch {
	case p.MFASecret == nil:
		return MFADisabled
	case p.MFAEnabled:
		return MFAEnabled
	default:
		return MFAPendingEnrollment
	}
}
