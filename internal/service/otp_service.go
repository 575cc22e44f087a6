package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/config"
	"github.com/swadisht/swadisht/internal/models"
	"github.com/swadisht/swadisht/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Verification failure taxonomy. Handlers map these to client responses;
// anything else that comes out of the service is an internal error.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("no OTP requested or already expired")
	ErrExpired         = errors.New("OTP expired")
	ErrMismatch        = errors.New("OTP mismatch")
	ErrTooManyAttempts = errors.New("too many incorrect attempts")
)

// OTPService issues and verifies one-time passcodes. All reads and writes
// of a phone's record happen under that phone's lock, so two concurrent
// verifications can never both consume the same code.
type OTPService struct {
	store  repository.OTPStore
	cfg    *config.OTPConfig
	logger *logrus.Logger
	locks  keyedMutex
	now    func() time.Time

	phoneRe *regexp.Regexp
}

func NewOTPService(store repository.OTPStore, cfg *config.OTPConfig, logger *logrus.Logger) *OTPService {
	return &OTPService{
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		phoneRe: regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, cfg.PhoneLength)),
	}
}

// IssueCode generates a fresh code for phone and stores its hash, replacing
// any code still pending for that phone. The plain code is returned once,
// for delivery only.
func (s *OTPService) IssueCode(ctx context.Context, phone string) (*models.IssuedCode, error) {
	if !s.phoneRe.MatchString(phone) {
		return nil, fmt.Errorf("%w: phone must be exactly %d digits", ErrInvalidInput, s.cfg.PhoneLength)
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := s.now()
	rec := &models.OTPRecord{
		CodeHash:  string(hashed),
		Phone:     phone,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	unlock := s.locks.lock(phone)
	defer unlock()

	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.WithError(err).Error("Failed to store OTP")
		return nil, fmt.Errorf("failed to store OTP: %w", err)
	}

	return &models.IssuedCode{Code: code, ExpiresAt: rec.ExpiresAt}, nil
}

// VerifyCode checks the submitted code against the pending record for phone.
// A matching code consumes the record; a mismatch leaves it in place so the
// user can retry until expiry or the attempt limit.
func (s *OTPService) VerifyCode(ctx context.Context, phone, code string) error {
	if phone == "" || code == "" {
		return fmt.Errorf("%w: phone and OTP are required", ErrInvalidInput)
	}

	unlock := s.locks.lock(phone)
	defer unlock()

	rec, err := s.store.Get(ctx, phone)
	if errors.Is(err, repository.ErrOTPNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load OTP: %w", err)
	}

	if s.now().After(rec.ExpiresAt) {
		if err := s.store.Delete(ctx, phone); err != nil {
			s.logger.WithError(err).Error("Failed to purge expired OTP")
		}
		return ErrExpired
	}

	if rec.Attempts >= s.cfg.MaxAttempts {
		if err := s.store.Delete(ctx, phone); err != nil {
			s.logger.WithError(err).Error("Failed to purge exhausted OTP")
		}
		return ErrTooManyAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)) != nil {
		rec.Attempts++
		if err := s.store.Save(ctx, rec); err != nil {
			s.logger.WithError(err).Error("Failed to record OTP attempt")
		}
		return ErrMismatch
	}

	if err := s.store.Delete(ctx, phone); err != nil {
		s.logger.WithError(err).Error("Failed to consume OTP")
		return fmt.Errorf("failed to consume OTP: %w", err)
	}

	return nil
}

// RollbackCode discards a just-issued record. The send handler calls this
// when delivery fails, so a user is never left with a pending code they
// never received.
func (s *OTPService) RollbackCode(ctx context.Context, phone string) error {
	unlock := s.locks.lock(phone)
	defer unlock()

	return s.store.Delete(ctx, phone)
}

// generateCode draws uniformly from [10^(L-1), 10^L), matching the issued
// SMS templates: no leading zeros, always exactly L digits.
func (s *OTPService) generateCode() (string, error) {
	low := int64(1)
	for i := 1; i < s.cfg.Length; i++ {
		low *= 10
	}

	n, err := rand.Int(rand.Reader, big.NewInt(9*low))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", low+n.Int64()), nil
}

// keyedMutex serializes operations per phone number. Entries are
// reference-counted and removed once the last holder unlocks.
type keyedMutex struct {
	mu sync.Mutex
	m  map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.m == nil {
		k.m = make(map[string]*keyedLock)
	}
	l, ok := k.m[key]
	if !ok {
		l = &keyedLock{}
		k.m[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.m, key)
		}
		k.mu.Unlock()
	}
}
