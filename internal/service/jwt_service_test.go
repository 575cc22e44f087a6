package service

import (
	"strings"
	"testing"
	"time"

	"github.com/swadisht/swadisht/internal/config"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()

	svc, err := NewJWTService(&config.JWTConfig{
		SecretKey:     "0123456789abcdef0123456789abcdef",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewJWTService returned error: %v", err)
	}
	return svc
}

func TestNewJWTServiceRejectsShortSecret(t *testing.T) {
	_, err := NewJWTService(&config.JWTConfig{SecretKey: "short"}, testLogger())
	if err == nil {
		t.Fatal("Expected error for short secret key")
	}
}

func TestGenerateAndVerifyTokenPair(t *testing.T) {
	svc := newTestJWTService(t)

	pair, familyID, err := svc.GenerateTokenPair(testPhone, "")
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}
	if familyID == "" {
		t.Fatal("Expected a generated family ID")
	}
	if pair.TokenType != "Bearer" {
		t.Fatalf("Expected Bearer token type, got %q", pair.TokenType)
	}

	access, err := svc.VerifyToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken(access) returned error: %v", err)
	}
	if access.Type != "access" || access.Phone != testPhone {
		t.Fatalf("Unexpected access claims: %+v", access)
	}

	refresh, err := svc.VerifyToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyToken(refresh) returned error: %v", err)
	}
	if refresh.Type != "refresh" {
		t.Fatalf("Expected refresh type, got %q", refresh.Type)
	}
	if refresh.JTI == access.JTI {
		t.Fatal("Expected distinct JTIs for access and refresh tokens")
	}
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	svc := newTestJWTService(t)

	pair, _, err := svc.GenerateTokenPair(testPhone, "")
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := svc.VerifyToken(tampered); err == nil {
		t.Fatal("Expected error for tampered token")
	}
}

func TestRefreshTokensKeepsFamily(t *testing.T) {
	svc := newTestJWTService(t)

	pair, familyID, err := svc.GenerateTokenPair(testPhone, "")
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}

	newPair, newFamilyID, err := svc.RefreshTokens(pair.RefreshToken, familyID)
	if err != nil {
		t.Fatalf("RefreshTokens returned error: %v", err)
	}
	if newFamilyID != familyID {
		t.Fatalf("Expected family ID %q to survive rotation, got %q", familyID, newFamilyID)
	}
	if newPair.RefreshToken == pair.RefreshToken {
		t.Fatal("Expected a fresh refresh token")
	}
}

func TestRefreshTokensRejectsAccessToken(t *testing.T) {
	svc := newTestJWTService(t)

	pair, _, err := svc.GenerateTokenPair(testPhone, "")
	if err != nil {
		t.Fatalf("GenerateTokenPair returned error: %v", err)
	}

	_, _, err = svc.RefreshTokens(pair.AccessToken, "")
	if err == nil || !strings.Contains(err.Error(), "not a refresh token") {
		t.Fatalf("Expected refresh-type rejection, got %v", err)
	}
}
