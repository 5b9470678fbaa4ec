// Command indoor-navigator serves BLE indoor positioning and walking routes
// over HTTP for one building map.
package main

import (
	"context"
	"os"

	"indoor-navigator/internal/config"
	"indoor-navigator/internal/logging"
	"indoor-navigator/internal/metrics"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logging.L().Error("config_invalid", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	srv := newServer(cfg, logger, metrics.NewRegistry())

	// Keep serving without a map; /health reports it and /reload retries.
	if _, err := srv.reload(); err != nil {
		logger.Warn("map_unavailable", "path", cfg.MapPath, "hint", "fix the map file and POST /reload or send SIGHUP")
	}

	if err := srv.run(context.Background()); err != nil {
		logger.Error("server_failed", "error", err)
		os.Exit(1)
	}
}
