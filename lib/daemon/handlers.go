// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/aconfigd/lib/codec"
	"github.com/bureau-foundation/aconfigd/lib/ipc"
	"github.com/bureau-foundation/aconfigd/lib/service"
	"github.com/bureau-foundation/aconfigd/lib/storage"
	"github.com/bureau-foundation/aconfigd/lib/version"
)

// Register installs the control socket actions on server.
func (d *Daemon) Register(server *service.SocketServer) {
	server.Handle(ipc.ActionNewStorage, d.handleNewStorage)
	server.Handle(ipc.ActionOverrideFlag, d.handleOverrideFlag)
	server.Handle(ipc.ActionStageOTA, d.handleStageOTA)
	server.Handle(ipc.ActionQueryFlag, d.handleQueryFlag)
	server.Handle(ipc.ActionRemoveLocalOverride, d.handleRemoveLocalOverride)
	server.Handle(ipc.ActionResetStorage, d.handleResetStorage)
	server.Handle(ipc.ActionListStorage, d.handleListStorage)
	server.Handle(ipc.ActionStatus, d.handleStatus)
}

func decodeRequest(raw []byte, request any) error {
	if err := codec.Unmarshal(raw, request); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func (d *Daemon) handleNewStorage(ctx context.Context, raw []byte) (any, error) {
	var request ipc.NewStorageRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.addOrUpdate(request.Container, defaultFiles{
		packageMap: request.PackageMap,
		flagMap:    request.FlagMap,
		flagVal:    request.FlagVal,
		flagInfo:   request.FlagInfo,
	})
	if err != nil {
		return nil, err
	}
	if err := d.manager.ApplyAllStagedOverrides(request.Container); err != nil {
		return nil, err
	}
	d.logger.Info("registered container storage", "container", request.Container)
	return nil, nil
}

func (d *Daemon) handleOverrideFlag(ctx context.Context, raw []byte) (any, error) {
	var request ipc.OverrideFlagRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	overrideType, err := storage.ParseOverrideType(request.OverrideType)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.manager.OverrideFlagValue(request.Package, request.Flag, request.Value, overrideType); err != nil {
		return nil, err
	}
	d.logger.Info("flag overridden",
		"flag", ipc.QualifiedName(request.Package, request.Flag),
		"value", request.Value,
		"override_type", overrideType,
	)
	return nil, nil
}

func (d *Daemon) handleStageOTA(ctx context.Context, raw []byte) (any, error) {
	var request ipc.StageOTARequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.manager.StageOTAFlags(storage.OTAStaging{BuildID: request.BuildID, Overrides: request.Overrides}); err != nil {
		return nil, err
	}
	d.logger.Info("staged OTA flags", "build", request.BuildID, "count", len(request.Overrides))
	return nil, nil
}

func (d *Daemon) handleQueryFlag(ctx context.Context, raw []byte) (any, error) {
	var request ipc.QueryFlagRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	snapshot, err := d.manager.FlagSnapshot(request.Package, request.Flag)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, &storage.Error{
			Kind:    storage.ErrFlagNotFound,
			Subject: ipc.QualifiedName(request.Package, request.Flag),
		}
	}
	return snapshot, nil
}

func (d *Daemon) handleRemoveLocalOverride(ctx context.Context, raw []byte) (any, error) {
	var request ipc.RemoveLocalOverrideRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	immediate, err := request.Immediate()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if request.RemoveAll {
		return nil, d.manager.RemoveAllLocalOverrides(immediate)
	}
	return nil, d.manager.RemoveLocalOverride(request.Package, request.Flag, immediate)
}

func (d *Daemon) handleResetStorage(ctx context.Context, raw []byte) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.manager.ResetAllStorage(); err != nil {
		return nil, err
	}
	d.logger.Info("reset all storage")
	return nil, nil
}

func (d *Daemon) handleListStorage(ctx context.Context, raw []byte) (any, error) {
	var request ipc.ListStorageRequest
	if err := decodeRequest(raw, &request); err != nil {
		return nil, err
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	var flags []storage.FlagSnapshot
	var err error
	switch {
	case request.All:
		flags, err = d.manager.ListAllFlags()
	case request.Container != "":
		flags, err = d.manager.ListFlagsInContainer(request.Container)
	default:
		flags, err = d.manager.ListFlagsInPackage(request.Package)
	}
	if err != nil {
		return nil, err
	}
	if flags == nil {
		flags = []storage.FlagSnapshot{}
	}
	return ipc.ListStorageResponse{Flags: flags}, nil
}

func (d *Daemon) handleStatus(ctx context.Context, raw []byte) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return ipc.StatusResponse{
		Version:    version.Info(),
		RootDir:    d.manager.RootDir(),
		Containers: d.manager.Containers(),
	}, nil
}
