package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Environment string
	Server      ServerConfig
	DynamoDB    DynamoDBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	OTP         OTPConfig
	SMS         SMSConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type OTPConfig struct {
	// Store selects the backing for pending codes: "memory" or "redis".
	Store       string
	Length      int
	PhoneLength int
	TTL         time.Duration
	MaxAttempts int
}

type SMSConfig struct {
	// Mode is "demo" (log the code, never call out) or "live" (MSG91).
	Mode        string
	AuthKey     string
	TemplateID  string
	CountryCode string
	Endpoint    string
	Timeout     time.Duration
}

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"

	ModeDemo = "demo"
	ModeLive = "live"
)

func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "ap-south-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "SwadishtTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		OTP: OTPConfig{
			Store:       getEnv("OTP_STORE", StoreMemory),
			Length:      getEnvAsInt("OTP_LENGTH", 4),
			PhoneLength: getEnvAsInt("PHONE_LENGTH", 10),
			TTL:         getEnvAsDuration("OTP_TTL", 5*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		},
		SMS: SMSConfig{
			Mode:        getEnv("SMS_MODE", ModeDemo),
			AuthKey:     getEnv("MSG91_AUTH_KEY", ""),
			TemplateID:  getEnv("MSG91_TEMPLATE_ID", ""),
			CountryCode: getEnv("SMS_COUNTRY_CODE", "91"),
			Endpoint:    getEnv("MSG91_ENDPOINT", "https://api.msg91.com/api/v5/otp"),
			Timeout:     getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	if cfg.OTP.Store != StoreMemory && cfg.OTP.Store != StoreRedis {
		return nil, fmt.Errorf("OTP_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, cfg.OTP.Store)
	}

	if cfg.OTP.Length < 4 || cfg.OTP.Length > 8 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 8, got %d", cfg.OTP.Length)
	}

	switch cfg.SMS.Mode {
	case ModeDemo:
	case ModeLive:
		if cfg.SMS.AuthKey == "" || cfg.SMS.TemplateID == "" {
			return nil, fmt.Errorf("MSG91_AUTH_KEY and MSG91_TEMPLATE_ID are required in live SMS mode")
		}
	default:
		return nil, fmt.Errorf("SMS_MODE must be %q or %q, got %q", ModeDemo, ModeLive, cfg.SMS.Mode)
	}

	return cfg, nil
}

// IsProduction reports whether code echoing in responses must be suppressed.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
