// Package main runs a standalone strategy host: Lua strategy scripts served to
// allocator services over msgpack-RPC.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/allocator/internal/config"
	"github.com/aristath/allocator/internal/host/luahost"
	"github.com/aristath/allocator/internal/host/rpchost"
	"github.com/aristath/allocator/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty || cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	rt := luahost.New(log)
	defer rt.Close()

	n, err := rt.LoadDir(cfg.Host.ScriptsDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Host.ScriptsDir).Msg("Failed to load strategy scripts")
	}
	classes, _ := rt.Classes()
	log.Info().
		Int("scripts", n).
		Strs("classes", classes).
		Msg("Strategy scripts loaded")

	srv, err := rpchost.NewServer(rt, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy host")
	}

	lis, err := net.Listen("tcp", cfg.Host.Listen)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Host.Listen).Msg("Failed to listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx, lis); err != nil {
		log.Error().Err(err).Msg("Strategy host stopped with error")
		return
	}
	log.Info().Msg("Strategy host stopped")
}
