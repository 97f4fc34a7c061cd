package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"civil-erp/pkg/secret"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	defaultEnvFile   = "configs/.env"
	devJWTSecret     = "default_super_secret_key_change_me_in_production"
	releaseMode      = "release"
	minJWTSecretSize = 16
)

type DBConfig struct {
	Host     string `env:"DB_HOST" env-default:"localhost"`
	Port     string `env:"DB_PORT" env-default:"5432"`
	User     string `env:"DB_USER" env-default:"postgres"`
	Password string `env:"DB_PASSWORD" env-default:"postgres"`
	Name     string `env:"DB_NAME" env-default:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable"`
}

type NICConfig struct {
	AuthTimeout   time.Duration `env:"NIC_AUTH_TIMEOUT" env-default:"15s"`
	SubmitTimeout time.Duration `env:"NIC_SUBMIT_TIMEOUT" env-default:"30s"`
	CancelTimeout time.Duration `env:"NIC_CANCEL_TIMEOUT" env-default:"15s"`
}

type AppConfig struct {
	Port    string `env:"PORT" env-default:"8080"`
	GinMode string `env:"GIN_MODE" env-default:"debug"`

	DB DBConfig

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" env-default:"24h"`

	// CredentialsKey encrypts stored tax-authority secrets. Losing it invalidates them.
	CredentialsKey string `env:"CREDENTIALS_KEY"`

	NIC                      NICConfig
	CredentialReloadSchedule string   `env:"CREDENTIAL_RELOAD_SCHEDULE" env-default:"@every 5m"`
	CORSOrigins              []string `env:"CORS_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://127.0.0.1:5173"`

	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
}

// Load reads configs/.env when present, then the process environment.
func Load(log logrus.FieldLogger) (*AppConfig, error) {
	if err := godotenv.Load(defaultEnvFile); err != nil {
		log.Infof("no %s file found, using process environment", defaultEnvFile)
	}
	cfg := &AppConfig{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	normalize(cfg)
	if err := Validate(cfg, log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalize(cfg *AppConfig) {
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.CredentialsKey = strings.TrimSpace(cfg.CredentialsKey)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	origins := cfg.CORSOrigins[:0]
	for _, o := range cfg.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSOrigins = origins
}

// Validate enforces secrets in release mode and fills development fallbacks otherwise.
func Validate(cfg *AppConfig, log logrus.FieldLogger) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	release := cfg.IsRelease()
	if cfg.JWTSecret == "" {
		if release {
			return errors.New("JWT_SECRET is required in release mode")
		}
		log.Warn("JWT_SECRET not set, using development fallback")
		cfg.JWTSecret = devJWTSecret
	}
	if release && len(cfg.JWTSecret) < minJWTSecretSize {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretSize)
	}
	if cfg.CredentialsKey == "" {
		if release {
			return errors.New("CREDENTIALS_KEY is required in release mode")
		}
		key, err := secret.GenerateKey()
		if err != nil {
			return fmt.Errorf("generate credentials key: %w", err)
		}
		log.Warn("CREDENTIALS_KEY not set, generated an ephemeral key; stored GST secrets will not survive restart")
		cfg.CredentialsKey = key
	}
	if _, err := secret.NewCipher(cfg.CredentialsKey); err != nil {
		return fmt.Errorf("CREDENTIALS_KEY: %w", err)
	}
	if cfg.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if cfg.NIC.AuthTimeout <= 0 || cfg.NIC.SubmitTimeout <= 0 || cfg.NIC.CancelTimeout <= 0 {
		return errors.New("NIC timeouts must be positive")
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

func (c *AppConfig) IsRelease() bool {
	return c.GinMode == releaseMode
}

// DSN builds the postgres connection URL.
func (c *AppConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     c.DB.Host + ":" + c.DB.Port,
		Path:     "/" + c.DB.Name,
		RawQuery: "sslmode=" + c.DB.SSLMode,
	}
	return u.String()
}
