package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Mpesa      MpesaConfig
	Admin      AdminConfig
	Cloudinary CloudinaryConfig
	CORS       CORSConfig
	Log        LogConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

const (
	MpesaSandbox    = "sandbox"
	MpesaProduction = "production"
	MpesaStub       = "stub"

	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"
)

// MpesaConfig holds the Daraja credentials and STK push settings.
type MpesaConfig struct {
	ConsumerKey        string
	ConsumerSecret     string
	Passkey            string
	ShortCode          string
	Environment        string // sandbox | production | stub
	CallbackURL        string
	BaseURLOverride    string
	TransactionType    string
	TokenCache         bool
	DiagnosticsTimeout time.Duration
}

// BaseURL returns the Daraja host selected by Environment, unless overridden.
func (m MpesaConfig) BaseURL() string {
	if m.BaseURLOverride != "" {
		return strings.TrimRight(m.BaseURLOverride, "/")
	}
	if m.Environment == MpesaProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// AdminConfig seeds the first admin account when both fields are set.
type AdminConfig struct {
	Email    string
	Password string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type CORSConfig struct {
	AllowOrigins []string
}

type LogConfig struct {
	Level   string
	File    string
	Console bool
}

type RateLimitConfig struct {
	PerMinute int
}

// Load reads the process environment once. Callers pass the result down explicitly.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 90*time.Second), // STK calls have no client timeout
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			DSN:             getEnv("DB_DSN", "stkpay:stkpay@tcp(localhost:3306)/stkpay?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 8*time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "stkpay"),
		},
		Mpesa: MpesaConfig{
			ConsumerKey:        os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:     os.Getenv("MPESA_CONSUMER_SECRET"),
			Passkey:            os.Getenv("MPESA_PASSKEY"),
			ShortCode:          os.Getenv("MPESA_BUSINESS_SHORT_CODE"),
			Environment:        getEnv("MPESA_ENVIRONMENT", MpesaSandbox),
			CallbackURL:        os.Getenv("MPESA_CALLBACK_URL"),
			BaseURLOverride:    os.Getenv("MPESA_BASE_URL"),
			TransactionType:    getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			TokenCache:         getBool("MPESA_TOKEN_CACHE", false),
			DiagnosticsTimeout: getDuration("MPESA_DIAGNOSTICS_TIMEOUT", 10*time.Second),
		},
		Admin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: os.Getenv("CLOUDINARY_CLOUD_NAME"),
			APIKey:    os.Getenv("CLOUDINARY_API_KEY"),
			APISecret: os.Getenv("CLOUDINARY_API_SECRET"),
		},
		CORS: CORSConfig{
			AllowOrigins: getList("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
		},
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			File:    os.Getenv("LOG_FILE"),
			Console: getBool("LOG_CONSOLE", true),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getInt("RATE_LIMIT_PER_MINUTE", 100),
		},
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getList(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
