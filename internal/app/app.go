package app

import (
	"context"
	"flag"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"kestrel/internal/app/bootstrap"
	"kestrel/internal/app/server"
	"kestrel/internal/config"
	"kestrel/internal/detection"
	"kestrel/internal/jobs/runtime"
	"kestrel/internal/support"
)

const defaultBackendPort = 8082

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	log.SetLevel(log.DebugLevel)

	portFlag := flag.Int("port", defaultBackendPort, "Port for API server")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	flag.Parse()

	config.SetProductionMode(*productionFlag)
	if *productionFlag {
		log.SetLevel(log.InfoLevel)
	}

	port := resolvePort("KESTREL_PORT", "BACKEND_PORT", *portFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if client, err := support.GetRedisClient(); err != nil {
		log.Warn("Instance heartbeat disabled", "error", err)
	} else {
		heartbeatCancel := runtime.LaunchInstanceHeartbeat(ctx, client)
		defer heartbeatCancel()
	}

	bootstrap.Setup(ctx)

	defer func() {
		if engine := detection.PublicEngine; engine != nil {
			engine.Close()
		}
	}()

	return server.OpenRoutes(port)
}

func resolvePort(primaryEnv, legacyEnv string, fallback int) int {
	if port := readPort(primaryEnv); port != 0 {
		return port
	}
	if port := readPort(legacyEnv); port != 0 {
		return port
	}
	return fallback
}

func readPort(envKey string) int {
	raw := os.Getenv(envKey)
	if raw == "" {
		return 0
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port == 0 {
		log.Warn("invalid port override", "env", envKey, "value", raw)
		return 0
	}
	return port
}
