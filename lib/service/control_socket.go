// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ControlSocketEnvPrefix prefixes the environment variable through
// which init passes a pre-created socket descriptor.
const ControlSocketEnvPrefix = "ANDROID_SOCKET_"

// controlSocketBacklog is the listen(2) backlog for the control socket.
const controlSocketBacklog = 8

// ControlSocketListener returns a listener for the socket descriptor
// that init created for name. The descriptor is put into the listening
// state before it is wrapped.
func ControlSocketListener(name string) (net.Listener, error) {
	variable := ControlSocketEnvPrefix + name
	value, ok := os.LookupEnv(variable)
	if !ok {
		return nil, fmt.Errorf("control socket %q: %s is not set", name, variable)
	}
	fd, err := strconv.Atoi(value)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("control socket %q: %s=%q is not a file descriptor", name, variable, value)
	}
	if err := unix.Listen(fd, controlSocketBacklog); err != nil {
		return nil, fmt.Errorf("control socket %q: listen on fd %d: %w", name, fd, err)
	}

	file := os.NewFile(uintptr(fd), "socket:"+name)
	if file == nil {
		return nil, fmt.Errorf("control socket %q: invalid file descriptor %d", name, fd)
	}
	// FileListener duplicates the descriptor.
	defer file.Close()

	listener, err := net.FileListener(file)
	if err != nil {
		return nil, fmt.Errorf("control socket %q: %w", name, err)
	}
	return listener, nil
}
