// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/aconfigd/lib/codec"
)

// dialTimeout is the maximum time to wait for a connection to the
// socket. It covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the server to
// send a response after writing the request. Matched to the server's
// readTimeout + writeTimeout to account for handler execution time.
const responseReadTimeout = 45 * time.Second

// maxResponseSize is the maximum size of a single CBOR response. Flag
// listings of every container are the largest responses.
const maxResponseSize = 16 * 1024 * 1024

// ServiceError is returned by Call when the server responds with
// ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends CBOR requests to a socket served by SocketServer.
// Each Call opens a new connection, sends the request, reads the
// response, and closes the connection.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient creates a client for the socket at socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket the client dials.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends a request to the server and decodes the response.
//
// fields is nil, a map, or a struct with cbor tags holding the
// action-specific request fields; the client adds "action". On success,
// if result is non-nil and the response carries data, the data is
// decoded into result. On failure (ok=false) Call returns a
// *ServiceError. Connection and encoding errors are returned as plain
// errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields any, result any) error {
	request, err := BuildRequest(action, fields)
	if err != nil {
		return err
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// BuildRequest flattens fields into a request map and sets "action".
// A struct is round-tripped through CBOR so that its cbor tags become
// the map keys. An "action" key already present in fields is replaced.
func BuildRequest(action string, fields any) (map[string]any, error) {
	request := make(map[string]any)
	if fields != nil {
		data, err := codec.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encoding %q request fields: %w", action, err)
		}
		if err := codec.Unmarshal(data, &request); err != nil {
			return nil, fmt.Errorf("%q request fields must encode as a map: %w", action, err)
		}
	}
	request["action"] = action
	return request, nil
}

// send connects to the socket, writes the request, and reads the
// response. Each call creates a new connection.
func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	// Half-close the write side so the server's read side sees EOF.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	readDeadline := time.Now().Add(responseReadTimeout)
	if deadline, ok := ctx.Deadline(); ok && deadline.Before(readDeadline) {
		readDeadline = deadline
	}
	conn.SetReadDeadline(readDeadline)
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
