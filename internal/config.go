package internal

import (
	"fmt"
	"time"
)

// Config defines the broker-side environment variables.
type Config struct {
	GatewayAddr     string        `env:"CHAT_GATEWAY_ADDR,default=0.0.0.0:8080"`
	QueueCapacity   int           `env:"QUEUE_CAPACITY,default=64"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,default=*"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=2s"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	DebugPort       int           `env:"DEBUG_PORT,default=8081"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
