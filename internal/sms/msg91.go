package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/config"
)

// MSG91Client sends OTP SMS through the MSG91 OTP API.
// See https://docs.msg91.com/p/tf9GTextN/e/B1BHdZpQw/MSG91
type MSG91Client struct {
	authKey     string
	templateID  string
	countryCode string
	endpoint    string
	httpClient  *http.Client
	logger      *logrus.Logger
}

func NewMSG91Client(cfg *config.SMSConfig, logger *logrus.Logger) *MSG91Client {
	return &MSG91Client{
		authKey:     cfg.AuthKey,
		templateID:  cfg.TemplateID,
		countryCode: cfg.CountryCode,
		endpoint:    cfg.Endpoint,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

type msg91Request struct {
	TemplateID string `json:"template_id"`
	Mobile     string `json:"mobile"`
	OTP        string `json:"otp"`
}

type msg91Response struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Send forwards the code to MSG91 with the configured country code prefixed.
// A provider response of type "success" means delivered; anything else is an
// error carrying the provider diagnostic. Timeouts come from the HTTP client.
func (c *MSG91Client) Send(ctx context.Context, phone, code string) error {
	payload := msg91Request{
		TemplateID: c.templateID,
		Mobile:     c.countryCode + phone,
		OTP:        code,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal MSG91 request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build MSG91 request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authkey", c.authKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("MSG91 request failed")
		return fmt.Errorf("sms delivery failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read MSG91 response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(raw),
		}).Error("MSG91 returned non-2xx status")
		return fmt.Errorf("sms delivery failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed msg91Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("sms delivery failed: malformed provider response: %w", err)
	}

	if parsed.Type != "success" {
		c.logger.WithField("provider_message", parsed.Message).Error("MSG91 rejected OTP send")
		return fmt.Errorf("sms delivery failed: %s", parsed.Message)
	}

	return nil
}
