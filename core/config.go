package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL           = "https://api.crebain.com"
	DefaultTimeout           = 30 * time.Second
	DefaultUserAgent         = "go-crebain"
	DefaultWebhookTolerance  = 5 * time.Minute
	DefaultRequestsPerMinute = 60
	MinWebhookSecretLength   = 16
)

type WebhookConfig struct {
	Secret    string        `koanf:"secret" mapstructure:"secret"`
	Tolerance time.Duration `koanf:"tolerance" mapstructure:"tolerance"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute" mapstructure:"requests_per_minute"`
}

type Config struct {
	BaseURL   string          `koanf:"base_url" mapstructure:"base_url"`
	APIKey    string          `koanf:"api_key" mapstructure:"api_key"`
	UserAgent string          `koanf:"user_agent" mapstructure:"user_agent"`
	Timeout   time.Duration   `koanf:"timeout" mapstructure:"timeout"`
	Webhook   WebhookConfig   `koanf:"webhook" mapstructure:"webhook"`
	RateLimit RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: DefaultUserAgent,
		Timeout:   DefaultTimeout,
		Webhook: WebhookConfig{
			Tolerance: DefaultWebhookTolerance,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: DefaultRequestsPerMinute,
		},
	}
}

func (c Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return fmt.Errorf("core: base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: base_url %q is not an absolute url", base)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("core: api_key is required")
	}
	if secret := strings.TrimSpace(c.Webhook.Secret); secret != "" && len(secret) < MinWebhookSecretLength {
		return fmt.Errorf("core: webhook.secret must be at least %d characters", MinWebhookSecretLength)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("core: timeout must not be negative")
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("core: rate_limit.requests_per_minute must not be negative")
	}
	return nil
}
