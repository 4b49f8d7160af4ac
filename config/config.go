package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultSecretKey is the placeholder signing key shipped in the defaults.
const DefaultSecretKey = "your-secret-key-change-in-production"

// Settings holds the application configuration.
// It is populated once at start-up and must be treated as read-only afterwards.
type Settings struct {
	AppName    string
	AppVersion string

	// Database
	DatabaseURL string

	// Security
	SecretKey                string
	Algorithm                string
	AccessTokenExpireMinutes int

	// E-mail
	SMTPServer   string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// App
	Debug        bool
	AllowedHosts []string
	CORSOrigins  []string
	Host         string
	Port         int

	RedisURL string

	GeminiAPIKey string
	GeminiModel  string

	VerificationCodeExpireMinutes int
	VerificationMaxAttempts       int
	VerificationRequestsPerMinute float64
	VerificationBurst             int
	ShutdownTimeoutSeconds        int
}

// Options selects the optional files Load reads on top of the defaults.
type Options struct {
	// EnvFile is a dotenv file. A missing file is not an error.
	EnvFile string
	// ConfigFile is an optional YAML file. A missing file is an error.
	ConfigFile string
}

var defaults = map[string]any{
	"app_name":    "Travel Expense Manager API",
	"app_version": "1.0.0",

	"database_url": "sqlite:///./travel_expenses.db",

	"secret_key":                  DefaultSecretKey,
	"algorithm":                   "HS256",
	"access_token_expire_minutes": 30,

	"smtp_server":   "smtp.gmail.com",
	"smtp_port":     587,
	"smtp_username": "",
	"smtp_password": "",
	"smtp_from":     "",

	"debug":         true,
	"allowed_hosts": []string{"*"},
	"cors_origins":  []string{"http://localhost:3000"},
	"host":          "0.0.0.0",
	"port":          8000,

	"redis_url": "",

	"gemini_api_key": "",
	"gemini_model":   "gemini-1.5-flash",

	"verification_code_expire_minutes": 10,
	"verification_max_attempts":        5,
	"verification_requests_per_minute": 1.0,
	"verification_burst":               3,
	"shutdown_timeout_seconds":         10,
}

var supportedAlgorithms = map[string]bool{
	"HS256": true,
	"HS384": true,
	"HS512": true,
}

// Load resolves the settings. Precedence, lowest first:
// defaults, YAML config file, dotenv file, process environment.
func Load(opts Options) (*Settings, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// Environment keys match either the upper-case or the literal field name.
		if err := v.BindEnv(key, strings.ToUpper(key), key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if opts.EnvFile != "" {
		values, err := godotenv.Read(opts.EnvFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read env file: %w", err)
		default:
			merged := make(map[string]any, len(values))
			for key, value := range values {
				merged[strings.ToLower(key)] = value
			}
			if err := v.MergeConfigMap(merged); err != nil {
				return nil, fmt.Errorf("merge env file: %w", err)
			}
		}
	}

	allowedHosts, err := stringList(v, "allowed_hosts")
	if err != nil {
		return nil, err
	}
	corsOrigins, err := stringList(v, "cors_origins")
	if err != nil {
		return nil, err
	}

	s := &Settings{
		AppName:    strings.TrimSpace(v.GetString("app_name")),
		AppVersion: strings.TrimSpace(v.GetString("app_version")),

		DatabaseURL: strings.TrimSpace(v.GetString("database_url")),

		SecretKey:                v.GetString("secret_key"),
		Algorithm:                strings.ToUpper(strings.TrimSpace(v.GetString("algorithm"))),
		AccessTokenExpireMinutes: v.GetInt("access_token_expire_minutes"),

		SMTPServer:   strings.TrimSpace(v.GetString("smtp_server")),
		SMTPPort:     v.GetInt("smtp_port"),
		SMTPUsername: strings.TrimSpace(v.GetString("smtp_username")),
		SMTPPassword: v.GetString("smtp_password"),
		SMTPFrom:     strings.TrimSpace(v.GetString("smtp_from")),

		Debug:        v.GetBool("debug"),
		AllowedHosts: allowedHosts,
		CORSOrigins:  corsOrigins,
		Host:         strings.TrimSpace(v.GetString("host")),
		Port:         v.GetInt("port"),

		RedisURL: strings.TrimSpace(v.GetString("redis_url")),

		GeminiAPIKey: strings.TrimSpace(v.GetString("gemini_api_key")),
		GeminiModel:  strings.TrimSpace(v.GetString("gemini_model")),

		VerificationCodeExpireMinutes: v.GetInt("verification_code_expire_minutes"),
		VerificationMaxAttempts:       v.GetInt("verification_max_attempts"),
		VerificationRequestsPerMinute: v.GetFloat64("verification_requests_per_minute"),
		VerificationBurst:             v.GetInt("verification_burst"),
		ShutdownTimeoutSeconds:        v.GetInt("shutdown_timeout_seconds"),
	}

	if s.SMTPFrom == "" {
		s.SMTPFrom = s.SMTPUsername
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	if s.SecretKey == "" {
		return fmt.Errorf("secret_key must not be empty")
	}
	if !supportedAlgorithms[s.Algorithm] {
		return fmt.Errorf("algorithm %q is not supported (use HS256, HS384 or HS512)", s.Algorithm)
	}
	if s.AccessTokenExpireMinutes <= 0 {
		return fmt.Errorf("access_token_expire_minutes must be positive, got %d", s.AccessTokenExpireMinutes)
	}
	if s.SMTPPort <= 0 || s.SMTPPort > 65535 {
		return fmt.Errorf("invalid smtp_port %d", s.SMTPPort)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if len(s.AllowedHosts) == 0 {
		return fmt.Errorf("allowed_hosts must not be empty")
	}
	if len(s.CORSOrigins) == 0 {
		return fmt.Errorf("cors_origins must not be empty")
	}
	if s.VerificationCodeExpireMinutes <= 0 {
		return fmt.Errorf("verification_code_expire_minutes must be positive")
	}
	if s.VerificationMaxAttempts <= 0 {
		return fmt.Errorf("verification_max_attempts must be positive")
	}
	if s.VerificationRequestsPerMinute < 0 || s.VerificationBurst < 0 {
		return fmt.Errorf("verification rate limits must be >= 0")
	}
	return nil
}

// AccessTokenTTL is the lifetime of issued access tokens.
func (s *Settings) AccessTokenTTL() time.Duration {
	return time.Duration(s.AccessTokenExpireMinutes) * time.Minute
}

// VerificationCodeTTL is the lifetime of an e-mailed login code.
func (s *Settings) VerificationCodeTTL() time.Duration {
	return time.Duration(s.VerificationCodeExpireMinutes) * time.Minute
}

// ShutdownTimeout bounds graceful shutdown.
func (s *Settings) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// Addr is the listen address.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UsesDefaultSecret reports whether the placeholder signing key is still in use.
func (s *Settings) UsesDefaultSecret() bool {
	return s.SecretKey == DefaultSecretKey
}

// MailEnabled reports whether SMTP credentials are configured.
func (s *Settings) MailEnabled() bool {
	return s.SMTPUsername != "" && s.SMTPServer != ""
}

// stringList reads a list setting. Overrides may be a JSON array or a comma-separated string.
func stringList(v *viper.Viper, key string) ([]string, error) {
	switch raw := v.Get(key).(type) {
	case []string:
		return cleanList(raw), nil
	case []any:
		items := make([]string, 0, len(raw))
		for _, item := range raw {
			items = append(items, fmt.Sprint(item))
		}
		return cleanList(items), nil
	case string:
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "[") {
			var items []string
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				return nil, fmt.Errorf("parse %s: %w", key, err)
			}
			return cleanList(items), nil
		}
		return cleanList(strings.Split(raw, ",")), nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("parse %s: unsupported value %v", key, raw)
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var (
	appConfig *Settings
	initOnce  sync.Once
	initErr   error
)

// Init loads the process-wide settings once. Later calls return the first result.
func Init(opts Options) (*Settings, error) {
	initOnce.Do(func() {
		appConfig, initErr = Load(opts)
	})
	return appConfig, initErr
}

// Get returns the process-wide settings, loading defaults and the environment
// on first use when Init was never called.
func Get() *Settings {
	s, err := Init(Options{EnvFile: ".env"})
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return s
}
