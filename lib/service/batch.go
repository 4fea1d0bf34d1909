// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/aconfigd/lib/codec"
)

// BatchAction is the built-in action that carries several requests in
// one connection.
const BatchAction = "batch"

// batchRequest is the wire form of a batch.
type batchRequest struct {
	Requests []codec.RawMessage `cbor:"requests"`
}

// handleBatch dispatches every request of a batch in order and returns
// one envelope per request. Nested batches are rejected per entry.
func (s *SocketServer) handleBatch(ctx context.Context, raw []byte) (any, error) {
	var batch batchRequest
	if err := codec.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("invalid batch request: %w", err)
	}
	if len(batch.Requests) == 0 {
		return nil, errors.New("batch request has no requests")
	}

	responses := make([]Response, 0, len(batch.Requests))
	for _, request := range batch.Requests {
		var header struct {
			Action string `cbor:"action"`
		}
		if err := codec.Unmarshal(request, &header); err == nil && header.Action == BatchAction {
			responses = append(responses, Response{Error: "nested batch requests are not allowed"})
			continue
		}
		responses = append(responses, s.dispatch(ctx, request))
	}
	return responses, nil
}
