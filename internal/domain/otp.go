package domain

import "time"

type OtpIntent string

const (
	IntentSignup OtpIntent = "signup"
	IntentReset  OtpIntent = "reset"
)

// OtpPayload is what a record carries until it is consumed.
// Signup records hold the pending account; reset records hold nothing else.
type OtpPayload struct {
	Intent       OtpIntent `json:"intent"`
	Name         string    `json:"name,omitempty"`
	PasswordHash string    `json:"passwordHash,omitempty"`
}

type OtpRecord struct {
	Email     string
	Code      string
	ExpiresAt time.Time
	Payload   OtpPayload
	CreatedAt time.Time
}

// Expired uses a strict comparison: a record is still good at exactly ExpiresAt.
func (r *OtpRecord) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// OtpRetention is how long a record outlives its expiry before sweeping,
// so a late submission is still reported as expired rather than unknown.
const OtpRetention = 24 * time.Hour

const (
	OtpCodeLength = 6
	OtpCodeMin    = 100000
	OtpCodeMax    = 999999
)
