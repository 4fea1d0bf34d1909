// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the CBOR request-response socket protocol
// spoken between aconfigd and its clients.
//
// Each connection carries exactly one request and one response. The
// client writes a single CBOR map whose "action" field names the
// handler; the server replies with a [Response] envelope {ok, error,
// data} and closes the connection. CBOR is self-delimiting, so no
// length prefix is needed.
//
// The "batch" action is built in: its "requests" field holds an array
// of complete requests, each dispatched in order, and the response data
// is an array of envelopes, one per request. A failing request does not
// stop the batch.
//
// A [SocketServer] either binds a Unix socket path itself or serves a
// listener handed to it. [ControlSocketListener] recovers the socket
// that init created for the daemon from the ANDROID_SOCKET_<name>
// environment variable.
//
// Access control is the socket's filesystem permissions. Requests carry
// no caller identity.
package service
