package models

import "time"

// OTPRecord is the per-phone verification state held by an OTP store.
// Only the bcrypt hash of the code is kept at rest.
type OTPRecord struct {
	CodeHash  string    `json:"code_hash"`
	Phone     string    `json:"phone"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssuedCode is returned by IssueCode for delivery to the subscriber.
type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}
