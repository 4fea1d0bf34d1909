// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the CBOR-encoded message types of the aconfigd
// control socket. cmd/aconfigd serves them through lib/daemon and
// cmd/aflags sends them through [Client], so the wire types are
// defined once rather than mirrored.
//
// Every request is a CBOR map carrying an "action" field (see the
// Action constants) plus the fields of the matching request struct.
// Responses use the lib/service envelope; the Data of a successful
// response decodes into the matching response type, or is absent for
// actions that only report success.
package ipc
