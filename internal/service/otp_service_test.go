package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/config"
	"github.com/swadisht/swadisht/internal/repository"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestOTPService() *OTPService {
	cfg := &config.OTPConfig{
		Store:       config.StoreMemory,
		Length:      4,
		PhoneLength: 10,
		TTL:         5 * time.Minute,
		MaxAttempts: 5,
	}
	store := repository.NewMemoryOTPStore(testLogger())
	return NewOTPService(store, cfg, testLogger())
}

const testPhone = "9876543210"

func TestIssueCodeFormat(t *testing.T) {
	svc := newTestOTPService()

	for i := 0; i < 25; i++ {
		issued, err := svc.IssueCode(context.Background(), testPhone)
		if err != nil {
			t.Fatalf("IssueCode returned error: %v", err)
		}
		if len(issued.Code) != 4 {
			t.Fatalf("Expected 4-digit code, got %q", issued.Code)
		}
		n, err := strconv.Atoi(issued.Code)
		if err != nil {
			t.Fatalf("Code %q is not numeric: %v", issued.Code, err)
		}
		if n < 1000 || n > 9999 {
			t.Fatalf("Code %d outside 1000-9999", n)
		}
	}
}

func TestIssueCodeSetsExpiry(t *testing.T) {
	svc := newTestOTPService()

	before := time.Now()
	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	ttl := issued.ExpiresAt.Sub(before)
	if ttl < 4*time.Minute+59*time.Second || ttl > 5*time.Minute+time.Second {
		t.Fatalf("Expected expiry about 5m out, got %v", ttl)
	}
}

func TestIssueCodeInvalidPhone(t *testing.T) {
	svc := newTestOTPService()

	cases := []string{"", "12345", "98765432101", "98765abcde", "+919876543210"}
	for _, phone := range cases {
		if _, err := svc.IssueCode(context.Background(), phone); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Expected ErrInvalidInput for phone %q, got %v", phone, err)
		}
	}
}

func TestVerifyConsumesCodeExactlyOnce(t *testing.T) {
	svc := newTestOTPService()

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); err != nil {
		t.Fatalf("Expected first verification to succeed, got %v", err)
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on second verification, got %v", err)
	}
}

func TestReissueOverwritesPreviousCode(t *testing.T) {
	svc := newTestOTPService()

	first, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	// Codes can collide by chance; reissue until they differ.
	var second string
	for i := 0; i < 20 && second == ""; i++ {
		issued, err := svc.IssueCode(context.Background(), testPhone)
		if err != nil {
			t.Fatalf("IssueCode returned error: %v", err)
		}
		if issued.Code != first.Code {
			second = issued.Code
		}
	}
	if second == "" {
		t.Fatal("Could not generate a code different from the first")
	}

	if err := svc.VerifyCode(context.Background(), testPhone, first.Code); !errors.Is(err, ErrMismatch) {
		t.Fatalf("Expected ErrMismatch for stale code, got %v", err)
	}

	if err := svc.VerifyCode(context.Background(), testPhone, second); err != nil {
		t.Fatalf("Expected latest code to verify, got %v", err)
	}
}

func TestVerifyExpiredCodePurgesRecord(t *testing.T) {
	svc := newTestOTPService()

	start := time.Now()
	svc.now = func() time.Time { return start }

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	svc.now = func() time.Time { return start.Add(6 * time.Minute) }

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); !errors.Is(err, ErrExpired) {
		t.Fatalf("Expected ErrExpired, got %v", err)
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after expiry purge, got %v", err)
	}
}

func TestVerifyAtBoundaryStillValid(t *testing.T) {
	svc := newTestOTPService()

	start := time.Now()
	svc.now = func() time.Time { return start }

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	// Exactly at expiresAt the code has not yet expired.
	svc.now = func() time.Time { return issued.ExpiresAt }

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); err != nil {
		t.Fatalf("Expected verification at expiry instant to succeed, got %v", err)
	}
}

func TestMismatchDoesNotConsumeRecord(t *testing.T) {
	svc := newTestOTPService()

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	wrong := "0000"
	if wrong == issued.Code {
		wrong = "0001"
	}

	for i := 0; i < 3; i++ {
		if err := svc.VerifyCode(context.Background(), testPhone, wrong); !errors.Is(err, ErrMismatch) {
			t.Fatalf("Attempt %d: expected ErrMismatch, got %v", i+1, err)
		}
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); err != nil {
		t.Fatalf("Expected correct code to verify after mismatches, got %v", err)
	}
}

func TestMaxAttemptsExhaustsRecord(t *testing.T) {
	svc := newTestOTPService()

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	wrong := "0000"
	if wrong == issued.Code {
		wrong = "0001"
	}

	for i := 0; i < 5; i++ {
		if err := svc.VerifyCode(context.Background(), testPhone, wrong); !errors.Is(err, ErrMismatch) {
			t.Fatalf("Attempt %d: expected ErrMismatch, got %v", i+1, err)
		}
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); !errors.Is(err, ErrTooManyAttempts) {
		t.Fatalf("Expected ErrTooManyAttempts, got %v", err)
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after exhaustion purge, got %v", err)
	}
}

func TestVerifyMissingInput(t *testing.T) {
	svc := newTestOTPService()

	if err := svc.VerifyCode(context.Background(), "", "1234"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for empty phone, got %v", err)
	}
	if err := svc.VerifyCode(context.Background(), testPhone, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput for empty code, got %v", err)
	}
}

func TestConcurrentVerifySingleWinner(t *testing.T) {
	svc := newTestOTPService()

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	const workers = 8
	results := make([]error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = svc.VerifyCode(context.Background(), testPhone, issued.Code)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrNotFound):
		default:
			t.Fatalf("Worker %d: unexpected error %v", i, err)
		}
	}

	if successes != 1 {
		t.Fatalf("Expected exactly one successful verification, got %d", successes)
	}
}

func TestRollbackCodeRemovesPendingRecord(t *testing.T) {
	svc := newTestOTPService()

	issued, err := svc.IssueCode(context.Background(), testPhone)
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if err := svc.RollbackCode(context.Background(), testPhone); err != nil {
		t.Fatalf("RollbackCode returned error: %v", err)
	}

	if err := svc.VerifyCode(context.Background(), testPhone, issued.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound after rollback, got %v", err)
	}
}

func TestIssueCodesAreIndependentPerPhone(t *testing.T) {
	svc := newTestOTPService()

	a, err := svc.IssueCode(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}
	b, err := svc.IssueCode(context.Background(), "9123456780")
	if err != nil {
		t.Fatalf("IssueCode returned error: %v", err)
	}

	if err := svc.VerifyCode(context.Background(), "9876543210", a.Code); err != nil {
		t.Fatalf("Expected first phone to verify, got %v", err)
	}
	if err := svc.VerifyCode(context.Background(), "9123456780", b.Code); err != nil {
		t.Fatalf("Expected second phone to verify, got %v", err)
	}
}
