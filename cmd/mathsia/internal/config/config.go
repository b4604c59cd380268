// Package config provides configuration management for the MathsIA API.
// Settings are read once at process start from a dotenv-format file merged
// under real environment variables, validated as a whole, and held as an
// immutable record for the lifetime of the process.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Version is the application version string.
const Version = "0.1.0"

// Environment names accepted for the ENVIRONMENT key.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Log level names accepted for the LOG_LEVEL key.
const (
	LogLevelDebug    = "DEBUG"
	LogLevelInfo     = "INFO"
	LogLevelWarning  = "WARNING"
	LogLevelError    = "ERROR"
	LogLevelCritical = "CRITICAL"
)

// placeholderSecret is the historical development secret. It must never
// reach production.
const placeholderSecret = "default_secret_key_change_in_production"

// Settings holds the application configuration.
// It is designed to be immutable after initialization.
type Settings struct {
	AppName     string
	Environment string
	Debug       bool
	APIV1Prefix string

	// Security
	SecretKey                string
	AccessTokenExpireMinutes int
	RefreshTokenExpireDays   int
	Algorithm                string

	// MongoDB
	MongoDBURL        string
	MongoDBDBName     string
	MongoDBUsername   string
	MongoDBPassword   string
	MongoDBAuthSource string

	// Logging
	LogLevel string
}

// configKeys lists every recognized key in serialization order.
var configKeys = []string{
	"APP_NAME",
	"ENVIRONMENT",
	"DEBUG",
	"API_V1_PREFIX",
	"SECRET_KEY",
	"ACCESS_TOKEN_EXPIRE_MINUTES",
	"REFRESH_TOKEN_EXPIRE_DAYS",
	"ALGORITHM",
	"MONGODB_URL",
	"MONGODB_DB_NAME",
	"MONGODB_USERNAME",
	"MONGODB_PASSWORD",
	"MONGODB_AUTH_SOURCE",
	"LOG_LEVEL",
}

// defaults contains all default configuration values, centralized in one
// place to avoid hardcoded literals. SECRET_KEY has no default on purpose.
var defaults = map[string]string{
	"APP_NAME":                    "MathsIA API",
	"ENVIRONMENT":                 EnvDevelopment,
	"DEBUG":                       "true",
	"API_V1_PREFIX":               "/api",
	"ACCESS_TOKEN_EXPIRE_MINUTES": "30",
	"REFRESH_TOKEN_EXPIRE_DAYS":   "7",
	"ALGORITHM":                   "HS256",
	"MONGODB_URL":                 "mongodb://localhost:27017",
	"MONGODB_DB_NAME":             "mathsia_db",
	"MONGODB_USERNAME":            "",
	"MONGODB_PASSWORD":            "",
	"MONGODB_AUTH_SOURCE":         "admin",
	"LOG_LEVEL":                   LogLevelInfo,
}

var validEnvironments = map[string]bool{
	EnvDevelopment: true,
	EnvProduction:  true,
	EnvTesting:     true,
}

var validLogLevels = map[string]bool{
	LogLevelDebug:    true,
	LogLevelInfo:     true,
	LogLevelWarning:  true,
	LogLevelError:    true,
	LogLevelCritical: true,
}

// validAlgorithms are the supported HMAC signing algorithm identifiers.
var validAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Load initializes and loads the application configuration.
// It reads KEY=VALUE pairs from a dotenv-format file and merges them under
// real environment variables (environment takes precedence, file values sit
// above defaults). Passing an empty path makes the default ".env" optional;
// an explicit path must exist.
//
// Validation inspects every field and returns a ValidationErrors listing
// all failures at once, never just the first.
func Load(configPath string) (*Settings, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		fileVals, err := godotenv.Read(configPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s: %w", configPath, err)
		}
		mergeFileValues(v, fileVals)
	} else if fileVals, err := godotenv.Read(".env"); err == nil {
		mergeFileValues(v, fileVals)
	}

	// Bind each key so environment variables override file values.
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg, errs := parse(v)
	if len(errs) > 0 {
		return nil, errs
	}

	return cfg, nil
}

func mergeFileValues(v *viper.Viper, fileVals map[string]string) {
	merged := make(map[string]any, len(fileVals))
	for key, value := range fileVals {
		merged[key] = value
	}
	// MergeConfigMap sits below explicit env bindings in viper precedence.
	_ = v.MergeConfigMap(merged)
}

// parse builds the Settings record from raw string values, collecting every
// field-level failure instead of stopping at the first.
func parse(v *viper.Viper) (*Settings, ValidationErrors) {
	var errs ValidationErrors

	cfg := &Settings{
		AppName:           v.GetString("APP_NAME"),
		Environment:       v.GetString("ENVIRONMENT"),
		APIV1Prefix:       v.GetString("API_V1_PREFIX"),
		SecretKey:         v.GetString("SECRET_KEY"),
		Algorithm:         v.GetString("ALGORITHM"),
		MongoDBURL:        v.GetString("MONGODB_URL"),
		MongoDBDBName:     v.GetString("MONGODB_DB_NAME"),
		MongoDBUsername:   v.GetString("MONGODB_USERNAME"),
		MongoDBPassword:   v.GetString("MONGODB_PASSWORD"),
		MongoDBAuthSource: v.GetString("MONGODB_AUTH_SOURCE"),
		LogLevel:          v.GetString("LOG_LEVEL"),
	}

	if cfg.AppName == "" {
		errs = append(errs, FieldError{"APP_NAME", MissingRequiredField, "application name must not be empty"})
	}

	if !validEnvironments[cfg.Environment] {
		errs = append(errs, FieldError{"ENVIRONMENT", InvalidEnumValue,
			fmt.Sprintf("%q is not one of development, production, testing", cfg.Environment)})
	}

	debug, err := strconv.ParseBool(strings.ToLower(v.GetString("DEBUG")))
	if err != nil {
		errs = append(errs, FieldError{"DEBUG", InvalidEnumValue,
			fmt.Sprintf("%q is not a boolean", v.GetString("DEBUG"))})
	}
	cfg.Debug = debug

	// Normalize the prefix: a leading slash is required, a trailing one is
	// dropped so route concatenation stays predictable.
	if cfg.APIV1Prefix != "" && !strings.HasPrefix(cfg.APIV1Prefix, "/") {
		cfg.APIV1Prefix = "/" + cfg.APIV1Prefix
	}
	cfg.APIV1Prefix = strings.TrimSuffix(cfg.APIV1Prefix, "/")

	if cfg.SecretKey == "" {
		errs = append(errs, FieldError{"SECRET_KEY", MissingRequiredField, "signing secret is required"})
	} else if cfg.SecretKey == placeholderSecret && cfg.Environment == EnvProduction {
		errs = append(errs, FieldError{"SECRET_KEY", MissingRequiredField,
			"placeholder secret is not allowed in production"})
	}

	cfg.AccessTokenExpireMinutes = parsePositiveInt(v, "ACCESS_TOKEN_EXPIRE_MINUTES", &errs)
	cfg.RefreshTokenExpireDays = parsePositiveInt(v, "REFRESH_TOKEN_EXPIRE_DAYS", &errs)

	if !validAlgorithms[cfg.Algorithm] {
		errs = append(errs, FieldError{"ALGORITHM", InvalidEnumValue,
			fmt.Sprintf("%q is not a supported signing algorithm (HS256, HS384, HS512)", cfg.Algorithm)})
	}

	if u, err := url.Parse(cfg.MongoDBURL); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
		errs = append(errs, FieldError{"MONGODB_URL", InvalidURI,
			fmt.Sprintf("%q is not a mongodb:// or mongodb+srv:// URI", cfg.MongoDBURL)})
	}

	if cfg.MongoDBDBName == "" {
		errs = append(errs, FieldError{"MONGODB_DB_NAME", MissingRequiredField, "database name must not be empty"})
	}

	if cfg.MongoDBAuthSource == "" {
		errs = append(errs, FieldError{"MONGODB_AUTH_SOURCE", MissingRequiredField, "auth source must not be empty"})
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, FieldError{"LOG_LEVEL", InvalidEnumValue,
			fmt.Sprintf("%q is not one of DEBUG, INFO, WARNING, ERROR, CRITICAL", cfg.LogLevel)})
	}

	return cfg, errs
}

func parsePositiveInt(v *viper.Viper, key string, errs *ValidationErrors) int {
	raw := v.GetString(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, FieldError{key, InvalidNumericValue, fmt.Sprintf("%q is not an integer", raw)})
		return 0
	}
	if n <= 0 {
		*errs = append(*errs, FieldError{key, InvalidNumericValue, fmt.Sprintf("%d must be positive", n)})
		return 0
	}
	return n
}

// AccessTokenTTL returns the configured access token lifetime.
func (s *Settings) AccessTokenTTL() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (s *Settings) RefreshTokenTTL() time.Duration {
	return time.Duration(s.RefreshTokenExpireDays) * 24 * time.Hour
}

// IsProduction reports whether the service runs with ENVIRONMENT=production.
func (s *Settings) IsProduction() bool {
	return s.Environment == EnvProduction
}

// IsDevelopment reports whether the service runs with ENVIRONMENT=development.
func (s *Settings) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// Environ serializes the record back to KEY=VALUE lines in declaration
// order. Reloading the result yields an identical record.
func (s *Settings) Environ() []string {
	values := map[string]string{
		"APP_NAME":                    s.AppName,
		"ENVIRONMENT":                 s.Environment,
		"DEBUG":                       strconv.FormatBool(s.Debug),
		"API_V1_PREFIX":               s.APIV1Prefix,
		"SECRET_KEY":                  s.SecretKey,
		"ACCESS_TOKEN_EXPIRE_MINUTES": strconv.Itoa(s.AccessTokenExpireMinutes),
		"REFRESH_TOKEN_EXPIRE_DAYS":   strconv.Itoa(s.RefreshTokenExpireDays),
		"ALGORITHM":                   s.Algorithm,
		"MONGODB_URL":                 s.MongoDBURL,
		"MONGODB_DB_NAME":             s.MongoDBDBName,
		"MONGODB_USERNAME":            s.MongoDBUsername,
		"MONGODB_PASSWORD":            s.MongoDBPassword,
		"MONGODB_AUTH_SOURCE":         s.MongoDBAuthSource,
		"LOG_LEVEL":                   s.LogLevel,
	}

	lines := make([]string, 0, len(configKeys))
	for _, key := range configKeys {
		lines = append(lines, key+"="+values[key])
	}
	return lines
}
