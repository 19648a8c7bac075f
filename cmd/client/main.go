package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"salachat/domain"
	"salachat/infrastructure/ws"
	"salachat/session"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const dialTimeout = 5 * time.Second

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run connects to the broker gateway and hands the terminal over to the
// interactive session until /quit or a termination signal.
func run() (int, error) {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Uso: %s <nombre_usuario>\n", os.Args[0])
		return exitConfig, nil
	}
	name := os.Args[1]

	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the broker gateway.
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	client, err := ws.Dial(dialCtx, config.GatewayURL, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to gateway at %s: %w", config.GatewayURL, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = client.Close()
	}()

	// 4. Run the interactive session. The process id doubles as the
	// reply address for everything the server sends back.
	render := session.NewRenderer(os.Stdout, os.Stderr, config.Colours)
	sess, err := session.NewSession(log, domain.PID(os.Getpid()), name, client, render, os.Stdin)
	if err != nil {
		return exitConfig, err
	}

	if err := sess.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, err
	}
	return exitOK, nil
}
