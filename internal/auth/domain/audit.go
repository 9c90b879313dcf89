package domain

import "time"

type AuditAction string

const (
	AuditRegister       AuditAction = "register"
	AuditLogin          AuditAction = "login"
	AuditLoginFailed    AuditAction = "login_failed"
	AuditPasswordReset  AuditAction = "password_reset"
	AuditMFAEnrollBegin AuditAction = "mfa_enroll_begin"
	AuditMFAEnabled     AuditAction = "mfa_enabled"
	AuditMFADisabled    AuditAction = "mfa_disabled"
	AuditOAuthLinked    AuditAction = "oauth_linked"
	AuditOAuthCreated   AuditAction = "oauth_created"
)

// AuditEvent records an identity-relevant change to a principal.
type AuditEvent struct {
	ID          string
	PrincipalID string
	Action      AuditAction
	Detail      string
	CreatedAt   time.Time
}
