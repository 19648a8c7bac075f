package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"salachat/infrastructure/ws"
	"salachat/internal"
	"salachat/ipc"
	"salachat/moderation"
	"salachat/runtime"
	"salachat/runtime/workers"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the broker lifecycle, and centralizes error reporting.
// The pattern keeps every defer running before the process exits and keeps
// the wiring testable outside of main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Moderation dictionaries (embedded)
	censoredData, err := runtime.NewCensoredLoader().LoadAll("censored")
	if err != nil {
		return exitRuntime, fmt.Errorf("censored words loading failed: %w", err)
	}
	logger.Info("Censored dictionaries loaded",
		"words", len(censoredData.Words), "languages", censoredData.Languages)

	censor, err := moderation.NewModerator(censoredData.Words, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("moderator init failed: %w", err)
	}

	// 3. Queue arena, registry and supervised workers
	arena := ipc.NewArena(config.QueueCapacity)
	registry := runtime.NewRegistry(logger, arena)
	supervisor := workers.NewSupervisor(logger, config.RestartInterval)
	broker := runtime.NewBroker(logger, arena, registry, supervisor, censor, config.MetricInterval)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := broker.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("broker start failed: %w", err)
	}

	// 5. Gateway, supervised like any other worker
	gateway := ws.NewGateway(logger, arena, config.GatewayAddr)
	supervisor.Start(ctx, gateway)

	// 6. Debug inspector, only when running at debug level
	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug room inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(config.DebugPort, endpoint, broker.Rooms, broker.Stats)
	}

	// 7. Wait for Stop
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// 8. Final Cleanup (Graceful Shutdown)
	broker.Stop()
	supervisor.Wait()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
