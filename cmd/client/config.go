package main

// Config defines the client-side environment variables.
type Config struct {
	GatewayURL string `env:"CHAT_GATEWAY_URL,default=ws://localhost:8080/ipc"`
	Colours    bool   `env:"CHAT_COLOURS,default=true"`
	LogLevel   string `env:"LOG_LEVEL,default=WARN"`
}
