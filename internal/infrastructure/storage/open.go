package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsAlerts/internal/config"
	"NewsAlerts/internal/ports"
)

// Open selects the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (ports.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "mongo", "mongodb":
		return OpenMongo(ctx, cfg.MongoURI, cfg.Name, logger)
	case "postgres", "postgresql":
		return OpenPostgres(ctx, cfg.DSN)
	case "memory":
		logger.Warn("using in-memory store; data is lost on exit")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
