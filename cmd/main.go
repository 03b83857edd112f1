package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sensor_gateway/internal/config"
	"sensor_gateway/internal/logger"
	"sensor_gateway/internal/recovery"

	"github.com/google/uuid"
)

// @title       Radio sensor gateway status API
// @version     1.0
// @description View of the radio to broker gateway.
// @BasePath    /
// @securityDefinitions.apikey BearerAuth
// @in   header
// @name Authorization
func main() {
	configPath := flag.String("config", "configs/config.yml", "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	bootID := uuid.NewString()
	log.Infow("booting", "boot_id", bootID)

	app := newGatewayApp(cfg, log, bootID)
	policy := recovery.NewPolicy(recovery.SystemActions{}, os.Stderr, log,
		recovery.WithJournal(app, bootID))
	policy.BeforeRestart(app.Close)

	// Startup runs inside the region too, so a missing radio or an
	// unwritable database gets the same cooldown and remedy as a runtime
	// fault. The gateway only stops by failing, and the remedy restarts
	// the device or the process, so Supervise does not return.
	policy.Supervise(context.Background(), app.Run)
}
