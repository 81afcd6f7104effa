package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/carelink/carelink_backend/pkg/constants"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// e.g. CARELINK_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Containers may configure everything through the environment.
		if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

// setDefaults registers every key AutomaticEnv must know about, plus the
// values the service falls back to.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.host", "")
	v.SetDefault("casbin_database.port", 5432)
	v.SetDefault("casbin_database.sslmode", "disable")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.body_limit_mb", 40)
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.cors.allow_origins", []string{"*"})
	v.SetDefault("server.cors.allow_headers", []string{"authorization", "x-client-info", "apikey", "content-type"})
	v.SetDefault("server.rate_limit.requests_per_window", 20)
	v.SetDefault("server.rate_limit.window_seconds", 30)

	v.SetDefault("authentication.jwt_secret", "")
	v.SetDefault("authentication.allow_guest_payments", true)
	v.SetDefault("authorization.casbin_model_path", "casbin_model.conf")
	v.SetDefault("authorization.enable_audit", true)

	v.SetDefault("observability.service_name", constants.ServiceName)
	v.SetDefault("observability.metrics.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output.stdout", true)

	v.SetDefault("s3.presign_ttl_sec", 300)
	v.SetDefault("s3.max_upload_mb", 20)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.currency", constants.Currency)
	v.SetDefault("stripe.guest_email", "guest@example.com")
	v.SetDefault("stripe.success_url", "http://localhost:3000/payment-success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/payment-cancelled")
	v.SetDefault("stripe.portal_return_url", "http://localhost:3000/")

	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.api_key", "")
	v.SetDefault("ai.openai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.openai.transcription_model", "whisper-1")
	v.SetDefault("ai.gemini.api_key", "")
	v.SetDefault("ai.gemini.model", "gemini-1.5-flash")

	v.SetDefault("messaging.max_content_length", constants.MaxMessageLength)
	v.SetDefault("messaging.codec", "base64")
	v.SetDefault("messaging.encryption_key", "")

	v.SetDefault("nats.url", "")
}
