package gateway

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the gateway process.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	Addr              string        `envconfig:"GATEWAY_ADDR" default:":3005"`
	ReadTimeout       time.Duration `envconfig:"GATEWAY_READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"GATEWAY_WRITE_TIMEOUT" default:"30s"`
	RequestTimeout    time.Duration `envconfig:"GATEWAY_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	CoreAPIBaseURL string        `envconfig:"CORE_API_BASE_URL" default:"http://127.0.0.1:8080"`
	ForwardTimeout time.Duration `envconfig:"FORWARD_TIMEOUT" default:"10s"`

	// Shared with the core service; both hops verify automation traffic
	// against the same key.
	InternalHMACSecret string `envconfig:"INTERNAL_HMAC_SECRET" required:"true"`

	GraphAPIBaseURL     string `envconfig:"GRAPH_API_BASE_URL" default:"https://graph.facebook.com"`
	GraphAPIVersion     string `envconfig:"GRAPH_API_VERSION" default:"v18.0"`
	WhatsAppAccessToken string `envconfig:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppWABAID      string `envconfig:"WHATSAPP_WABA_ID"`

	// Meta calls GET /webhooks/whatsapp with this token during webhook
	// subscription; inbound POSTs are relayed to the workflow engine URL.
	WhatsAppVerifyToken string        `envconfig:"WHATSAPP_VERIFY_TOKEN"`
	WorkflowWebhookURL  string        `envconfig:"WORKFLOW_WEBHOOK_URL"`
	WebhookRelayTimeout time.Duration `envconfig:"WEBHOOK_RELAY_TIMEOUT" default:"10s"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.InternalHMACSecret == "" {
		return nil, errors.New("internal hmac secret must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the gateway runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
