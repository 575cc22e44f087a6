package sms

import (
	"context"

	"github.com/sirupsen/logrus"
)

// ConsoleSender is the demo-mode strategy: it never contacts an external
// system, logs the code so manual testing can proceed, and always succeeds.
type ConsoleSender struct {
	logger *logrus.Logger
}

func NewConsoleSender(logger *logrus.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger}
}

func (s *ConsoleSender) Send(_ context.Context, phone, code string) error {
	s.logger.WithFields(logrus.Fields{
		"phone": phone,
		"otp":   code,
	}).Info("DEMO MODE: OTP not sent via SMS")
	return nil
}
