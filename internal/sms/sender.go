// Package sms delivers one-time passcodes to subscribers. Delivery is a
// single capability behind the Sender interface so the demo path and the
// MSG91 integration can be swapped by configuration.
package sms

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/config"
)

// Sender delivers a code to a phone number. Implementations do not retry;
// a failed send is reported to the caller, which decides what to do with
// the already-issued code.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// NewSender selects the delivery strategy for the configured mode.
func NewSender(cfg *config.SMSConfig, logger *logrus.Logger) Sender {
	if cfg.Mode == config.ModeLive {
		return NewMSG91Client(cfg, logger)
	}
	return NewConsoleSender(logger)
}
