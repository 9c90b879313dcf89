package authsdk

import "time"

// ============================================================================
// Account Types
// ============================================================================

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email     string `json:"email" example:"ada@example.com"`
	Password  string `json:"password" example:"correct horse battery"`
	FirstName string `json:"first_name,omitempty" example:"Ada"`
	LastName  string `json:"last_name,omitempty" example:"Lovelace"`
}

// PrincipalResponse describes a registered account. It is returned from
// POST /auth/register and GET /auth/me.
type PrincipalResponse struct {
	ID          string `json:"id" example:"01JAB3YQ7N6X0W7Q2M4ZK9T5RS"`
	Email       string `json:"email" example:"ada@example.com"`
	FirstName   string `json:"first_name,omitempty" example:"Ada"`
	LastName    string `json:"last_name,omitempty" example:"Lovelace"`
	IsActive    bool   `json:"is_active" example:"true"`
	IsVerified  bool   `json:"is_verified" example:"false"`
	MFAEnabled  bool   `json:"mfa_enabled" example:"false"`
	HasPassword bool   `json:"has_password" example:"true"`

	// OAuthProvider is set when the account is linked to an external identity.
	OAuthProvider string `json:"oauth_provider,omitempty" example:"google"`

	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is returned from POST /auth/token and POST /auth/mfa/verify.
type TokenResponse struct {
	// AccessToken is the signed JWT used as a bearer credential.
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer".
	TokenType string `json:"token_type" example:"bearer"`

	// ExpiresIn is the lifetime of the access token in seconds.
	ExpiresIn int `json:"expires_in" example:"1800"`

	// MFARequired is set when the account has MFA enabled and no code was
	// supplied. The token cannot reach MFA-protected routes until it is
	// stepped up with POST /auth/mfa/verify.
	MFARequired bool `json:"mfa_required,omitempty"`
}

// ============================================================================
// Password Reset Types
// ============================================================================

type PasswordResetRequest struct {
	Email string `json:"email" example:"ada@example.com"`
}

type PasswordResetVerifyRequest struct {
	Token string `json:"token"`
}

// PasswordResetVerifyResponse names the account a valid reset token belongs to.
type PasswordResetVerifyResponse struct {
	Email string `json:"email" example:"ada@example.com"`
}

type PasswordResetCompleteRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password" example:"a much better passphrase"`
}

// ============================================================================
// MFA Types
// ============================================================================

// MFAEnableResponse carries the TOTP secret for the authenticator app. The
// secret is only ever shown once.
type MFAEnableResponse struct {
	Secret          string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	ProvisioningURI string `json:"provisioning_uri" example:"otpauth://totp/Budg:ada@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Budg"`
	Issuer          string `json:"issuer" example:"Budg"`
	Account         string `json:"account" example:"ada@example.com"`
}

// MFACodeRequest is the body of POST /auth/mfa/verify and /auth/mfa/disable.
type MFACodeRequest struct {
	Code string `json:"code" example:"123456"`
}

// ============================================================================
// Generic Types
// ============================================================================

type MessageResponse struct {
	Message string `json:"message" example:"MFA disabled successfully"`
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	// Error is the error kind (e.g. "invalid_credentials", "rate_limited")
	Error string `json:"error" example:"invalid_credentials"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description,omitempty" example:"incorrect email or password"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status ("ok" or "unavailable")
	Status string `json:"status" example:"ok"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty" example:"1h23m45s"`

	// Version is the service version string
	Version string `json:"version,omitempty" example:"0.1.0"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the principal store connection status
	Database string `json:"database" example:"ok"`

	// Counter indicates the rate-limit counter store status
	Counter string `json:"counter" example:"ok"`
}
