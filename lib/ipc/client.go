// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/aconfigd/lib/codec"
	"github.com/bureau-foundation/aconfigd/lib/service"
)

// Client sends typed requests to the aconfigd control socket.
type Client struct {
	service *service.ServiceClient
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{service: service.NewServiceClient(socketPath)}
}

// SocketPath returns the socket the client dials.
func (c *Client) SocketPath() string { return c.service.SocketPath() }

// NewStorage registers or updates a container's storage files.
func (c *Client) NewStorage(ctx context.Context, request NewStorageRequest) error {
	return c.service.Call(ctx, ActionNewStorage, request, nil)
}

// OverrideFlag overrides one flag.
func (c *Client) OverrideFlag(ctx context.Context, request OverrideFlagRequest) error {
	return c.service.Call(ctx, ActionOverrideFlag, request, nil)
}

// StageOTA stages overrides for the build named in request.
func (c *Client) StageOTA(ctx context.Context, request StageOTARequest) error {
	return c.service.Call(ctx, ActionStageOTA, request, nil)
}

// QueryFlag returns the snapshot of packageName.flagName.
func (c *Client) QueryFlag(ctx context.Context, packageName, flagName string) (*FlagSnapshot, error) {
	var snapshot FlagSnapshot
	if err := c.service.Call(ctx, ActionQueryFlag, QueryFlagRequest{Package: packageName, Flag: flagName}, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// RemoveLocalOverride removes one or every local override.
func (c *Client) RemoveLocalOverride(ctx context.Context, request RemoveLocalOverrideRequest) error {
	return c.service.Call(ctx, ActionRemoveLocalOverride, request, nil)
}

// ResetStorage drops every override of every container.
func (c *Client) ResetStorage(ctx context.Context) error {
	return c.service.Call(ctx, ActionResetStorage, nil, nil)
}

// ListStorage returns the flags selected by request.
func (c *Client) ListStorage(ctx context.Context, request ListStorageRequest) ([]FlagSnapshot, error) {
	var response ListStorageResponse
	if err := c.service.Call(ctx, ActionListStorage, request, &response); err != nil {
		return nil, err
	}
	return response.Flags, nil
}

// Status returns the daemon's status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var status StatusResponse
	if err := c.service.Call(ctx, ActionStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// BatchRequest is one request of a batch.
type BatchRequest struct {
	Action string
	Fields any
}

// BatchResult is the outcome of one request of a batch. Err is a
// *service.ServiceError when the daemon rejected the request.
type BatchResult struct {
	Err  error
	Data codec.RawMessage
}

// Decode unmarshals the result data into target.
func (r BatchResult) Decode(target any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Data) == 0 {
		return nil
	}
	return codec.Unmarshal(r.Data, target)
}

// Batch sends several requests over one connection. The daemon runs
// them in order; a failing request does not stop the ones after it.
// The returned error covers only the batch as a whole.
func (c *Client) Batch(ctx context.Context, requests []BatchRequest) ([]BatchResult, error) {
	encoded := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		fields, err := service.BuildRequest(request.Action, request.Fields)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, fields)
	}

	var responses []service.Response
	if err := c.service.Call(ctx, service.BatchAction, map[string]any{"requests": encoded}, &responses); err != nil {
		return nil, err
	}
	if len(responses) != len(requests) {
		return nil, fmt.Errorf("batch of %d requests returned %d responses", len(requests), len(responses))
	}

	results := make([]BatchResult, len(responses))
	for i, response := range responses {
		if !response.OK {
			results[i].Err = &service.ServiceError{Action: requests[i].Action, Message: response.Error}
			continue
		}
		results[i].Data = response.Data
	}
	return results, nil
}
