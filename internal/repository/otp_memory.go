package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/models"
)

// MemoryOTPStore is the in-process OTPStore used in development and tests.
// Expired records are dropped on read and swept periodically by the janitor.
type MemoryOTPStore struct {
	mu     sync.Mutex
	m      map[string]*models.OTPRecord
	now    func() time.Time
	logger *logrus.Logger

	stopJanitor chan struct{}
	janitorOnce sync.Once
}

func NewMemoryOTPStore(logger *logrus.Logger) *MemoryOTPStore {
	return &MemoryOTPStore{
		m:           make(map[string]*models.OTPRecord),
		now:         time.Now,
		logger:      logger,
		stopJanitor: make(chan struct{}),
	}
}

func (s *MemoryOTPStore) Save(_ context.Context, rec *models.OTPRecord) error {
	cp := *rec
	s.mu.Lock()
	s.m[rec.Phone] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryOTPStore) Get(_ context.Context, phone string) (*models.OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.m[phone]
	if !ok {
		return nil, ErrOTPNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryOTPStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	delete(s.m, phone)
	s.mu.Unlock()
	return nil
}

// StartJanitor sweeps expired records every interval until Stop is called.
// Expiry is otherwise only observed during verification, so abandoned
// records would accumulate for the life of the process.
func (s *MemoryOTPStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := s.sweep(); n > 0 {
					s.logger.WithField("count", n).Debug("Swept expired OTP records")
				}
			case <-s.stopJanitor:
				return
			}
		}
	}()
}

func (s *MemoryOTPStore) Stop() {
	s.janitorOnce.Do(func() {
		close(s.stopJanitor)
	})
}

func (s *MemoryOTPStore) sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for phone, rec := range s.m {
		if now.After(rec.ExpiresAt) {
			delete(s.m, phone)
			n++
		}
	}
	return n
}
