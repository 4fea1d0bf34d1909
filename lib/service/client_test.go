// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/aconfigd/lib/codec"
	"github.com/bureau-foundation/aconfigd/lib/testutil"
)

type echoFields struct {
	Package string `cbor:"package"`
	Flag    string `cbor:"flag"`
	Count   int    `cbor:"count,omitempty"`
}

func newEchoServer(t *testing.T) string {
	t.Helper()
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger())
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request map[string]any
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return request, nil
	})
	server.Handle("reject", func(ctx context.Context, raw []byte) (any, error) {
		return nil, errors.New("flag is read only")
	})
	startServer(t, server, socketPath)
	return socketPath
}

func TestClientCallWithStruct(t *testing.T) {
	client := NewServiceClient(newEchoServer(t))

	var echoed map[string]any
	err := client.Call(context.Background(), "echo", echoFields{Package: "com.example", Flag: "enabled"}, &echoed)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if echoed["action"] != "echo" {
		t.Errorf("action = %v", echoed["action"])
	}
	if echoed["package"] != "com.example" || echoed["flag"] != "enabled" {
		t.Errorf("echoed = %v", echoed)
	}
	if _, present := echoed["count"]; present {
		t.Error("omitempty field was sent")
	}
}

func TestClientCallWithMapAndNilFields(t *testing.T) {
	client := NewServiceClient(newEchoServer(t))

	var echoed map[string]any
	if err := client.Call(context.Background(), "echo", map[string]any{"action": "spoofed", "value": true}, &echoed); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if echoed["action"] != "echo" {
		t.Errorf("action = %v, want the called action to win", echoed["action"])
	}
	if echoed["value"] != true {
		t.Errorf("value = %v", echoed["value"])
	}

	echoed = nil
	if err := client.Call(context.Background(), "echo", nil, &echoed); err != nil {
		t.Fatalf("Call with nil fields: %v", err)
	}
	if len(echoed) != 1 {
		t.Errorf("echoed = %v, want only the action", echoed)
	}
}

func TestClientServiceError(t *testing.T) {
	client := NewServiceClient(newEchoServer(t))

	err := client.Call(context.Background(), "reject", nil, nil)
	var serviceError *ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceError.Action != "reject" || serviceError.Message != "flag is read only" {
		t.Errorf("ServiceError = %+v", serviceError)
	}
	if serviceError.Error() != `service error on "reject": flag is read only` {
		t.Errorf("Error() = %q", serviceError.Error())
	}
}

func TestClientConnectionRefused(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")
	client := NewServiceClient(socketPath)
	if client.SocketPath() != socketPath {
		t.Errorf("SocketPath() = %q", client.SocketPath())
	}

	err := client.Call(context.Background(), "echo", nil, nil)
	if err == nil {
		t.Fatal("expected an error for a missing socket")
	}
	var serviceError *ServiceError
	if errors.As(err, &serviceError) {
		t.Errorf("connection failure reported as a service error: %v", err)
	}
}

func TestClientCancelledContext(t *testing.T) {
	client := NewServiceClient(newEchoServer(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Call(ctx, "echo", nil, nil); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestClientConcurrentCalls(t *testing.T) {
	client := NewServiceClient(newEchoServer(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			flag := fmt.Sprintf("flag_%d", i)
			var echoed echoFields
			if err := client.Call(ctx, "echo", echoFields{Package: "p", Flag: flag, Count: i + 1}, &echoed); err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if echoed.Flag != flag || echoed.Count != i+1 {
				t.Errorf("call %d: echoed %+v", i, echoed)
			}
		}()
	}
	wg.Wait()
}

func TestBuildRequest(t *testing.T) {
	request, err := BuildRequest("override", echoFields{Package: "p", Flag: "f"})
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	want := map[string]any{"action": "override", "package": "p", "flag": "f"}
	if len(request) != len(want) {
		t.Fatalf("request = %v, want %v", request, want)
	}
	for key, value := range want {
		if request[key] != value {
			t.Errorf("request[%q] = %v, want %v", key, request[key], value)
		}
	}

	if _, err := BuildRequest("override", []string{"not", "a", "map"}); err == nil {
		t.Error("expected an error for non-map fields")
	}
}
