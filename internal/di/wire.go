// Package di provides dependency injection wiring and initialization.
package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Initialize strategy hosts and services, restoring persisted allocators
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close(log)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// Close releases hosts and databases held by the container. Nil members are skipped.
func (c *Container) Close(log zerolog.Logger) {
	if c.RemoteHost != nil {
		if err := c.RemoteHost.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close strategy host connection")
		}
	}
	if c.LuaRuntime != nil {
		c.LuaRuntime.Close()
	}
	if c.AllocatorsDB != nil {
		if err := c.AllocatorsDB.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close allocators database")
		}
	}
}
