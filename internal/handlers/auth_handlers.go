package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/swadisht/swadisht/internal/config"
	"github.com/swadisht/swadisht/internal/models"
	"github.com/swadisht/swadisht/internal/service"
	"github.com/swadisht/swadisht/internal/sms"
)

// UserStore is the account lookup used to decide first-time logins.
type UserStore interface {
	GetOrCreate(ctx context.Context, phone string) (*models.User, bool, error)
}

// RefreshTokenStore persists refresh token state for rotation and revocation.
type RefreshTokenStore interface {
	Store(ctx context.Context, jti, phone, familyID string, expiresAt time.Time) error
	Get(ctx context.Context, jti string) (*models.RefreshTokenData, error)
	Revoke(ctx context.Context, jti string) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type AuthHandlers struct {
	otpService    *service.OTPService
	sender        sms.Sender
	jwtService    *service.JWTService
	refreshTokens RefreshTokenStore
	users         UserStore
	cfg           *config.Config
	logger        *logrus.Logger
}

func NewAuthHandlers(
	otpService *service.OTPService,
	sender sms.Sender,
	jwtService *service.JWTService,
	refreshTokens RefreshTokenStore,
	users UserStore,
	cfg *config.Config,
	logger *logrus.Logger,
) *AuthHandlers {
	return &AuthHandlers{
		otpService:    otpService,
		sender:        sender,
		jwtService:    jwtService,
		refreshTokens: refreshTokens,
		users:         users,
		cfg:           cfg,
		logger:        logger,
	}
}

type SendOTPRequest struct {
	Phone string `json:"phone"`
}

type SendOTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Code is echoed only outside production, to unblock manual testing.
	Code string `json:"code,omitempty"`
}

type VerifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type VerifyOTPResponse struct {
	Success      bool         `json:"success"`
	Message      string       `json:"message"`
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
}

type UserResponse struct {
	Phone     string `json:"phone"`
	Name      string `json:"name,omitempty"`
	IsNewUser bool   `json:"is_new_user"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendOTP handles POST /otp/send: issue a code for the phone and deliver
// it. A failed delivery rolls the issued code back, so the store never
// holds a code the user cannot have received.
func (h *AuthHandlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	phone := strings.TrimSpace(req.Phone)

	issued, err := h.otpService.IssueCode(r.Context(), phone)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid phone number. Please provide a %d-digit number.", h.cfg.OTP.PhoneLength))
			return
		}
		h.logger.WithError(err).Error("Failed to issue OTP")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	if err := h.sender.Send(r.Context(), phone, issued.Code); err != nil {
		h.logger.WithError(err).WithField("phone", phone).Error("Failed to deliver OTP")
		if rbErr := h.otpService.RollbackCode(r.Context(), phone); rbErr != nil {
			h.logger.WithError(rbErr).WithField("phone", phone).Error("Failed to roll back undelivered OTP")
		}
		h.respondWithError(w, http.StatusInternalServerError, "Failed to send OTP. Please try again.")
		return
	}

	resp := SendOTPResponse{
		Success: true,
		Message: "OTP sent successfully",
	}
	if !h.cfg.IsProduction() {
		resp.Code = issued.Code
	}

	h.respondWithJSON(w, http.StatusOK, resp)
}

// VerifyOTP handles POST /otp/verify: consume the pending code and log the
// user in, issuing a session token pair.
func (h *AuthHandlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	phone := strings.TrimSpace(req.Phone)
	code := strings.TrimSpace(req.Code)

	if err := h.otpService.VerifyCode(r.Context(), phone, code); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			h.respondWithError(w, http.StatusBadRequest, "Phone number and OTP are required.")
		case errors.Is(err, service.ErrNotFound):
			h.respondWithError(w, http.StatusBadRequest, "No OTP requested for this number or OTP has expired.")
		case errors.Is(err, service.ErrExpired):
			h.respondWithError(w, http.StatusBadRequest, "OTP has expired. Please request a new one.")
		case errors.Is(err, service.ErrMismatch):
			h.respondWithError(w, http.StatusBadRequest, "Invalid OTP. Please try again.")
		case errors.Is(err, service.ErrTooManyAttempts):
			h.respondWithError(w, http.StatusBadRequest, "Too many incorrect attempts. Please request a new OTP.")
		default:
			h.logger.WithError(err).Error("Failed to verify OTP")
			h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		}
		return
	}

	user, isNew, err := h.users.GetOrCreate(r.Context(), phone)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get or create user")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	tokenPair, familyID, err := h.jwtService.GenerateTokenPair(phone, "")
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate tokens")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	claims, err := h.jwtService.VerifyToken(tokenPair.RefreshToken)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify refresh token")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	if err := h.refreshTokens.Store(
		r.Context(),
		claims.JTI,
		phone,
		familyID,
		claims.RegisteredClaims.ExpiresAt.Time,
	); err != nil {
		h.logger.WithError(err).Error("Failed to store refresh token")
		// Continue anyway, token is still valid
	}

	h.respondWithJSON(w, http.StatusOK, VerifyOTPResponse{
		Success: true,
		Message: "OTP verified successfully.",
		User: UserResponse{
			Phone:     user.Phone,
			Name:      user.Name,
			IsNewUser: isNew,
		},
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		TokenType:    tokenPair.TokenType,
		ExpiresIn:    tokenPair.ExpiresIn,
	})
}

func (h *AuthHandlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if req.RefreshToken == "" {
		h.respondWithError(w, http.StatusBadRequest, "Refresh token is required.")
		return
	}

	claims, err := h.jwtService.VerifyToken(req.RefreshToken)
	if err != nil {
		h.respondWithError(w, http.StatusUnauthorized, "Invalid refresh token.")
		return
	}

	if claims.Type != "refresh" {
		h.respondWithError(w, http.StatusUnauthorized, "Token is not a refresh token.")
		return
	}

	revoked, err := h.refreshTokens.IsRevoked(r.Context(), claims.JTI)
	if err == nil && revoked {
		h.respondWithError(w, http.StatusUnauthorized, "Refresh token has been revoked.")
		return
	}

	familyID := ""
	tokenData, err := h.refreshTokens.Get(r.Context(), claims.JTI)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to get refresh token data, will start a new family")
	}
	if tokenData != nil {
		familyID = tokenData.FamilyID
		h.refreshTokens.Revoke(r.Context(), claims.JTI)
	}

	newTokenPair, newFamilyID, err := h.jwtService.RefreshTokens(req.RefreshToken, familyID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate new tokens")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	newClaims, err := h.jwtService.VerifyToken(newTokenPair.RefreshToken)
	if err != nil {
		h.logger.WithError(err).Error("Failed to verify new refresh token")
		h.respondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	if err := h.refreshTokens.Store(
		r.Context(),
		newClaims.JTI,
		claims.Phone,
		newFamilyID,
		newClaims.RegisteredClaims.ExpiresAt.Time,
	); err != nil {
		h.logger.WithError(err).Error("Failed to store new refresh token")
		// Continue anyway
	}

	h.respondWithJSON(w, http.StatusOK, RefreshTokenResponse{
		Success:      true,
		AccessToken:  newTokenPair.AccessToken,
		RefreshToken: newTokenPair.RefreshToken,
		TokenType:    newTokenPair.TokenType,
		ExpiresIn:    newTokenPair.ExpiresIn,
	})
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	_, ok := r.Context().Value("claims").(*service.Claims)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, "Invalid token.")
		return
	}

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		refreshClaims, err := h.jwtService.VerifyToken(req.RefreshToken)
		if err == nil && refreshClaims.Type == "refresh" {
			h.refreshTokens.Revoke(r.Context(), refreshClaims.JTI)
		}
	}

	h.respondWithJSON(w, http.StatusOK, StatusResponse{
		Success: true,
		Message: "Logged out successfully.",
	})
}

func (h *AuthHandlers) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func (h *AuthHandlers) respondWithError(w http.ResponseWriter, status int, message string) {
	h.respondWithJSON(w, status, StatusResponse{
		Success: false,
		Message: message,
	})
}
