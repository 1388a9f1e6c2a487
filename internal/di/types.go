// Package di provides dependency injection type definitions.
package di

import (
	"github.com/aristath/allocator/internal/database"
	"github.com/aristath/allocator/internal/host/luahost"
	"github.com/aristath/allocator/internal/host/rpchost"
	"github.com/aristath/allocator/internal/modules/allocators"
	"github.com/aristath/allocator/internal/strategy"
)

// Container holds all dependencies for the application.
// It is created by Wire() and passed to the server for access to services.
type Container struct {
	// Databases
	AllocatorsDB *database.DB

	// Strategy hosts
	Registry   *strategy.Registry
	LuaRuntime *luahost.Runtime // nil when no scripts directory is configured
	RemoteHost *rpchost.Client  // nil when no remote host is configured

	// Repositories
	AllocatorRepo *allocators.Repository

	// Services
	Catalog          *allocators.Catalog
	AllocatorService *allocators.Service
}
