// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by the
// aconfigd daemon, its clients, and its on-disk state files.
//
// Two serialization boundaries exist in this repository:
//
//   - CBOR for everything the daemon owns: the control socket protocol,
//     the persist storage records file, per-container local override
//     files, and the staged OTA flag file.
//   - JSON for human-facing output (aflags --json) and JSONC for
//     hand-written input (flag declarations, OTA staging input).
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same records therefore always produce identical bytes on disk, which
// keeps the records file stable across daemon restarts when nothing
// changed.
//
// Buffer-oriented use (state files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Stream-oriented use (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// A `cbor` tag marks a type that is only ever CBOR (state files, socket
// envelopes). A `json` tag marks a type that is serialized as both JSON
// and CBOR; fxamacker/cbor falls back to `json` tags when `cbor` tags are
// absent. Flag snapshots use `json` tags because aflags prints them with
// --json. Never put both tags on one field.
package codec
