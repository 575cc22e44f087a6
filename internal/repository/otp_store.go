package repository

import (
	"context"
	"errors"

	"github.com/swadisht/swadisht/internal/models"
)

// ErrOTPNotFound is returned when no pending record exists for a phone,
// including records already consumed or evicted by TTL.
var ErrOTPNotFound = errors.New("otp not found")

// OTPStore holds at most one pending OTPRecord per phone number.
// Save overwrites any previous record for the same phone. Stores are safe
// for concurrent use, but check-then-act sequences across calls must be
// serialized by the caller (the OTP service holds a per-phone lock).
type OTPStore interface {
	Save(ctx context.Context, rec *models.OTPRecord) error
	Get(ctx context.Context, phone string) (*models.OTPRecord, error)
	Delete(ctx context.Context, phone string) error
}
