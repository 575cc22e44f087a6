package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/config"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func msg91Config(endpoint string) *config.SMSConfig {
	return &config.SMSConfig{
		Mode:        config.ModeLive,
		AuthKey:     "test-auth-key",
		TemplateID:  "test-template",
		CountryCode: "91",
		Endpoint:    endpoint,
		Timeout:     2 * time.Second,
	}
}

func TestMSG91SendSuccess(t *testing.T) {
	var gotAuthKey, gotMobile, gotTemplate, gotOTP string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthKey = r.Header.Get("authkey")

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		gotMobile = body["mobile"]
		gotTemplate = body["template_id"]
		gotOTP = body["otp"]

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"success","message":"request-id"}`))
	}))
	defer srv.Close()

	client := NewMSG91Client(msg91Config(srv.URL), testLogger())

	if err := client.Send(context.Background(), "9876543210", "4821"); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	if gotAuthKey != "test-auth-key" {
		t.Fatalf("Expected authkey header, got %q", gotAuthKey)
	}
	if gotMobile != "919876543210" {
		t.Fatalf("Expected country code prefixed mobile, got %q", gotMobile)
	}
	if gotTemplate != "test-template" {
		t.Fatalf("Expected template id, got %q", gotTemplate)
	}
	if gotOTP != "4821" {
		t.Fatalf("Expected otp in payload, got %q", gotOTP)
	}
}

func TestMSG91SendProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"type":"error","message":"invalid authkey"}`))
	}))
	defer srv.Close()

	client := NewMSG91Client(msg91Config(srv.URL), testLogger())

	err := client.Send(context.Background(), "9876543210", "4821")
	if err == nil {
		t.Fatal("Expected error for provider rejection, got nil")
	}
	if !strings.Contains(err.Error(), "invalid authkey") {
		t.Fatalf("Expected provider diagnostic in error, got %v", err)
	}
}

func TestMSG91SendNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"unauthorized"}`))
	}))
	defer srv.Close()

	client := NewMSG91Client(msg91Config(srv.URL), testLogger())

	if err := client.Send(context.Background(), "9876543210", "4821"); err == nil {
		t.Fatal("Expected error for non-2xx status, got nil")
	}
}

func TestMSG91SendMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewMSG91Client(msg91Config(srv.URL), testLogger())

	if err := client.Send(context.Background(), "9876543210", "4821"); err == nil {
		t.Fatal("Expected error for malformed response, got nil")
	}
}

func TestMSG91SendTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"type":"success"}`))
	}))
	defer srv.Close()

	cfg := msg91Config(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	client := NewMSG91Client(cfg, testLogger())

	if err := client.Send(context.Background(), "9876543210", "4821"); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}
