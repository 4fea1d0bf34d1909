// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/aconfigd/lib/command"
	"github.com/bureau-foundation/aconfigd/lib/ipc"
	"github.com/bureau-foundation/aconfigd/lib/storage"
)

// Default control sockets of the system and mainline daemons.
const (
	systemSocket   = "/dev/socket/aconfigd_system"
	mainlineSocket = "/dev/socket/aconfigd_mainline"
)

// flagSource reads and writes flags across every configured daemon.
type flagSource struct {
	clients []*ipc.Client
	logger  *slog.Logger
}

func newFlagSource(socketPaths []string, logger *slog.Logger) *flagSource {
	source := &flagSource{logger: logger}
	for _, path := range socketPaths {
		source.clients = append(source.clients, ipc.NewClient(path))
	}
	return source
}

func (s *flagSource) client(socketPath string) *ipc.Client {
	for _, client := range s.clients {
		if client.SocketPath() == socketPath {
			return client
		}
	}
	return ipc.NewClient(socketPath)
}

// listFlags collects every flag from every daemon that answers. It
// fails only when none does.
func (s *flagSource) listFlags(ctx context.Context) ([]flagRow, error) {
	var (
		rows      []flagRow
		errs      []error
		answering int
	)
	for _, client := range s.clients {
		snapshots, err := client.ListStorage(ctx, ipc.ListStorageRequest{All: true})
		if err != nil {
			s.logger.Debug("daemon did not list flags", "socket", client.SocketPath(), "error", err)
			errs = append(errs, socketError(client, err))
			continue
		}
		answering++
		for _, snapshot := range snapshots {
			row, err := newFlagRow(snapshot, client.SocketPath())
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
	}
	if answering == 0 && len(errs) > 0 {
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, errors.Join(errs...)
	}
	return rows, nil
}

// containers returns the distinct containers of rows in order of first
// appearance.
func containers(rows []flagRow) []string {
	seen := make(map[string]bool)
	var result []string
	for _, row := range rows {
		if !seen[row.Container] {
			seen[row.Container] = true
			result = append(result, row.Container)
		}
	}
	return result
}

// resolveFlag finds qualifiedName among the flags of every daemon.
func (s *flagSource) resolveFlag(ctx context.Context, qualifiedName string) (flagRow, error) {
	if _, _, err := ipc.SplitQualifiedName(qualifiedName); err != nil {
		return flagRow{}, err
	}
	rows, err := s.listFlags(ctx)
	if err != nil {
		return flagRow{}, err
	}
	row, found := findFlag(rows, qualifiedName)
	if !found {
		return flagRow{}, fmt.Errorf("no aconfig flag '%s'. Does the flag have an .aconfig definition?", qualifiedName)
	}
	return row, nil
}

// setFlag stores a local override of qualifiedName on the daemon that
// owns it. Read-only flags are refused before anything is sent.
func (s *flagSource) setFlag(ctx context.Context, qualifiedName, value string, immediate bool) error {
	row, err := s.resolveFlag(ctx, qualifiedName)
	if err != nil {
		return err
	}
	if row.Permission != permissionReadWrite {
		return fmt.Errorf("could not write flag '%s', it is read-only for the current release configuration.", qualifiedName)
	}

	overrideType := storage.LocalOnReboot
	if immediate {
		overrideType = storage.LocalImmediate
	}
	err = s.client(row.socket).OverrideFlag(ctx, ipc.OverrideFlagRequest{
		Package:      row.Package,
		Flag:         row.Name,
		Value:        value,
		OverrideType: string(overrideType),
	})
	if err != nil {
		return fmt.Errorf("overriding %s: %w", qualifiedName, err)
	}
	s.logger.Debug("flag overridden", "flag", qualifiedName, "value", value, "immediate", immediate, "socket", row.socket)
	return nil
}

// unsetFlag removes the local override of qualifiedName.
func (s *flagSource) unsetFlag(ctx context.Context, qualifiedName string, immediate bool) error {
	row, err := s.resolveFlag(ctx, qualifiedName)
	if err != nil {
		return err
	}
	removeType := ipc.RemoveLocalOnReboot
	if immediate {
		removeType = ipc.RemoveLocalImmediate
	}
	err = s.client(row.socket).RemoveLocalOverride(ctx, ipc.RemoveLocalOverrideRequest{
		Package:    row.Package,
		Flag:       row.Name,
		RemoveType: removeType,
	})
	if err != nil {
		return fmt.Errorf("unsetting %s: %w", qualifiedName, err)
	}
	return nil
}

// queryFlag returns the snapshot of qualifiedName from the first daemon
// that knows it.
func (s *flagSource) queryFlag(ctx context.Context, qualifiedName string) (*ipc.FlagSnapshot, string, error) {
	packageName, flagName, err := ipc.SplitQualifiedName(qualifiedName)
	if err != nil {
		return nil, "", err
	}
	var errs []error
	for _, client := range s.clients {
		snapshot, err := client.QueryFlag(ctx, packageName, flagName)
		if err == nil {
			return snapshot, client.SocketPath(), nil
		}
		errs = append(errs, socketError(client, err))
	}
	return nil, "", fmt.Errorf("querying %s: %w", qualifiedName, errors.Join(errs...))
}

// resetAll drops every override on every daemon that answers.
func (s *flagSource) resetAll(ctx context.Context) error {
	var errs []error
	reset := 0
	for _, client := range s.clients {
		if err := client.ResetStorage(ctx); err != nil {
			errs = append(errs, socketError(client, err))
			continue
		}
		reset++
	}
	if reset == 0 {
		return fmt.Errorf("resetting storage: %w", errors.Join(errs...))
	}
	for _, err := range errs {
		s.logger.Warn("daemon not reset", "error", err)
	}
	return nil
}

// stageOTA sends staged OTA overrides to the first socket, which is the
// system daemon that applies them during platform-init.
func (s *flagSource) stageOTA(ctx context.Context, request ipc.StageOTARequest) error {
	if len(s.clients) == 0 {
		return errors.New("no socket configured")
	}
	client := s.clients[0]
	if err := client.StageOTA(ctx, request); err != nil {
		if diagnosed := command.DiagnoseSocketError(err, client.SocketPath()); diagnosed != nil {
			return diagnosed
		}
		return fmt.Errorf("staging OTA flags on %s: %w", client.SocketPath(), err)
	}
	return nil
}

// socketError labels err with the daemon's socket, replacing permission
// failures with a hint about privileges.
func socketError(client *ipc.Client, err error) error {
	if diagnosed := command.DiagnoseSocketError(err, client.SocketPath()); diagnosed != nil {
		return diagnosed
	}
	return fmt.Errorf("%s: %w", client.SocketPath(), err)
}
