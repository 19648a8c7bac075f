package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_GATEWAY_URL points the suite at an already running broker.
	// When empty, each test spins up a full in-process stack instead.
	GatewayURL string `envconfig:"E2E_GATEWAY_URL"`
	// E2E_DEBUG_JSON allows dumping full request/reply envelopes as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
