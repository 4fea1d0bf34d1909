// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"log/slog"
	"os"

	"github.com/bureau-foundation/aconfigd/lib/config"
	"github.com/bureau-foundation/aconfigd/lib/service"
)

// run creates a daemon, loads the storage records, runs body, and
// closes the daemon.
func run(cfg *config.Config, logger *slog.Logger, body func(*Daemon) error) (err error) {
	d, err := New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := d.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := d.InitializeFromStorageRecord(); err != nil {
		return err
	}
	return body(d)
}

// newSocketServer serves on the init-provided control socket when one
// was passed, and binds the configured path otherwise.
func newSocketServer(cfg *config.Config, logger *slog.Logger) (*service.SocketServer, error) {
	if _, ok := os.LookupEnv(service.ControlSocketEnvPrefix + cfg.Socket.Name); ok {
		listener, err := service.ControlSocketListener(cfg.Socket.Name)
		if err != nil {
			return nil, err
		}
		return service.NewListenerServer(listener, logger), nil
	}

	mode, err := cfg.SocketMode()
	if err != nil {
		return nil, err
	}
	server := service.NewSocketServer(cfg.Socket.Path, logger)
	server.SetSocketMode(mode)
	return server, nil
}

// StartSocket loads the storage records and serves the control socket
// until ctx is cancelled.
func StartSocket(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return run(cfg, logger, func(d *Daemon) error {
		server, err := newSocketServer(cfg, logger)
		if err != nil {
			return err
		}
		d.Register(server)
		return server.Serve(ctx)
	})
}

// Init removes stale apex boot files and initializes every apex under
// the apex directory.
func Init(cfg *config.Config, logger *slog.Logger) error {
	return run(cfg, logger, func(d *Daemon) error {
		if err := d.RemoveNonPlatformBootFiles(); err != nil {
			return err
		}
		return d.InitializeMainlineStorage(cfg.Containers.ApexDir)
	})
}

// BootstrapInit initializes the apexes under the bootstrap apex
// directory.
func BootstrapInit(cfg *config.Config, logger *slog.Logger) error {
	return run(cfg, logger, func(d *Daemon) error {
		return d.InitializeMainlineStorage(cfg.Containers.BootstrapApexDir)
	})
}

// PlatformInit recreates the boot files of the platform partitions.
func PlatformInit(cfg *config.Config, logger *slog.Logger) error {
	return run(cfg, logger, func(d *Daemon) error {
		if err := d.RemoveBootFiles(); err != nil {
			return err
		}
		return d.InitializePlatformStorage()
	})
}
