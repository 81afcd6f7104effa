package email

import (
	"time"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/pkg/constants"
)

// Config holds SMTP settings plus the values templates interpolate.
type Config struct {
	Enabled bool
	From    string

	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPUseTLS         bool
	SMTPTimeoutSeconds int

	AppName string
	BaseURL string
}

func (c Config) SMTPTimeout() time.Duration {
	if c.SMTPTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.SMTPTimeoutSeconds) * time.Second
}

func FromCentralConfig(c config.EmailConfig) Config {
	port := c.SMTP.Port
	if port == 0 {
		port = 587
	}
	return Config{
		Enabled:            c.Enabled,
		From:               c.From,
		SMTPHost:           c.SMTP.Host,
		SMTPPort:           port,
		SMTPUsername:       c.SMTP.Username,
		SMTPPassword:       c.SMTP.Password,
		SMTPUseTLS:         c.SMTP.UseTLS,
		SMTPTimeoutSeconds: c.SMTP.TimeoutSeconds,
		AppName:            constants.AppName,
		BaseURL:            c.BaseURL,
	}
}
