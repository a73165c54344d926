package bootstrap

import (
	"context"

	"github.com/charmbracelet/log"

	"kestrel/internal/blocker"
	"kestrel/internal/config"
	"kestrel/internal/database"
	"kestrel/internal/detection"
	"kestrel/internal/geo"
	"kestrel/internal/jobs/runtime"
	"kestrel/internal/support"
)

// Setup wires the engine: configuration, database, block manager, detection
// pipeline, and the background routines. Fatal on anything the engine cannot
// run without; Redis-backed features degrade to single-instance mode when the
// client is unavailable.
func Setup(ctx context.Context) {
	config.ReadSettings()
	cfg := config.GetConfig()

	if _, err := database.SetupDB(); err != nil {
		log.Fatalf("failed to set up database: %v", err)
	}

	policy, err := detection.PolicyFromConfig(cfg)
	if err != nil {
		log.Fatalf("invalid detection policy: %v", err)
	}

	manager := blocker.NewManager()
	blocker.PublicManager = manager
	if err := manager.Initialize(ctx); err != nil {
		log.Error("Failed to load block cache", "error", err)
	}

	engine := detection.NewEngine(cfg, policy, manager, geo.NewResolver(cfg))
	detection.PublicEngine = engine
	engine.Start()

	config.RegisterOnChange(func(updated config.Config) {
		newPolicy, policyErr := detection.PolicyFromConfig(updated)
		if policyErr != nil {
			log.Error("Rejected policy from config update", "error", policyErr)
			return
		}
		engine.ReloadPolicy(newPolicy)
	})

	if client, redisErr := support.GetRedisClient(); redisErr != nil {
		log.Warn("Redis unavailable, running single-instance", "error", redisErr)
	} else {
		config.EnableRedisSynchronization(ctx, client)
		manager.EnableRedisSynchronization(ctx, client)
	}

	// Routines

	go runtime.StartRetentionRoutine(ctx)
}
