// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/modules/allocators"
)

// InitializeDatabases opens allocators.db and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	allocatorsDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "allocators",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize allocators database: %w", err)
	}

	if err := allocatorsDB.Migrate(allocators.Schema); err != nil {
		allocatorsDB.Close()
		return nil, fmt.Errorf("failed to apply allocators schema: %w", err)
	}
	container.AllocatorsDB = allocatorsDB

	log.Info().Str("path", allocatorsDB.Path()).Msg("Database initialized")

	return container, nil
}
