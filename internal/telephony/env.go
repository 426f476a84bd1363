package telephony

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// twilioEnv holds the conventional Twilio environment variables.
type twilioEnv struct {
	AccountSID   string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken    string `env:"TWILIO_AUTH_TOKEN"`
	APIKeySID    string `env:"TWILIO_API_KEY"`
	APIKeySecret string `env:"TWILIO_API_SECRET"`
	TwiMLAppSID  string `env:"TWILIO_TWIML_APP_SID"`
	CallerID     string `env:"TWILIO_CALLER_ID"`
}

// FillFromEnv sets any empty credential in cfg from the TWILIO_* variables.
func FillFromEnv(cfg *Config) error {
	var raw twilioEnv
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse twilio env: %w", err)
	}
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = strings.TrimSpace(v)
		}
	}
	fill(&cfg.AccountSID, raw.AccountSID)
	fill(&cfg.AuthToken, raw.AuthToken)
	fill(&cfg.APIKeySID, raw.APIKeySID)
	fill(&cfg.APIKeySecret, raw.APIKeySecret)
	fill(&cfg.TwiMLAppSID, raw.TwiMLAppSID)
	fill(&cfg.CallerID, raw.CallerID)
	return nil
}
