package domain

// MFAState is derived from the mfa_secret and mfa_enabled columns.
type MFAState int

const (
	MFADisabled MFAState = iota
	MFAPendingEnrollment
	MFAEnabled
)

func (s MFAState) String() string {
	switch s {
	case MFAPendingEnrollment:
		return "pending_enrollment"
	case MFAEnabled:
		return "enabled"
	default:
		return "disabled"
	}
}

// MFAEnrollment is handed to the user once, when enrollment begins.
type MFAEnrollment struct {
	Secret          string // base32
	ProvisioningURI string // otpauth://totp/...
	Issuer          string
	Account         string
}
