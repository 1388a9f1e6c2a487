package di

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/allocator"
	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/host/luahost"
	"github.com/aristath/allocator/internal/host/rpchost"
	"github.com/aristath/allocator/internal/modules/allocators"
	"github.com/aristath/allocator/internal/strategy"
)

// InitializeServices builds the strategy hosts, the catalog and the allocator service,
// then restores persisted allocators.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Registry = strategy.NewDefaultRegistry()
	container.Catalog = allocators.NewCatalog(container.Registry, log)

	if dir := cfg.Host.ScriptsDir; dir != "" {
		rt, err := newLuaRuntime(dir, log)
		if err != nil {
			return err
		}
		if rt != nil {
			container.LuaRuntime = rt
			container.Catalog.SetLuaProvider(rt)
		}
	}

	if addr := cfg.Host.Addr; addr != "" {
		client, err := rpchost.Dial(addr, log)
		if err != nil {
			// Remote strategies stay unavailable; native and Lua strategies still work.
			log.Warn().Err(err).Str("addr", addr).Msg("Strategy host unreachable")
		} else {
			container.RemoteHost = client
			container.Catalog.SetRemoteProvider(client)
		}
	}

	container.AllocatorRepo = allocators.NewRepository(container.AllocatorsDB.Conn(), log)

	var opts []allocator.Option
	if cfg.EnforceMinObservations {
		opts = append(opts, allocator.WithMinObservationsCheck())
	}
	container.AllocatorService = allocators.NewService(container.Catalog, container.AllocatorRepo, log, opts...)

	if _, err := container.AllocatorService.Load(); err != nil {
		return fmt.Errorf("failed to load allocators: %w", err)
	}

	return nil
}

// newLuaRuntime loads every script in dir. A missing directory disables the runtime.
func newLuaRuntime(dir string, log zerolog.Logger) (*luahost.Runtime, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Warn().Str("dir", dir).Msg("Lua scripts directory not found, Lua strategies disabled")
		return nil, nil
	}

	rt := luahost.New(log)
	n, err := rt.LoadDir(dir)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to load lua strategies: %w", err)
	}

	log.Info().Str("dir", dir).Int("scripts", n).Msg("Lua strategies loaded")
	return rt, nil
}
