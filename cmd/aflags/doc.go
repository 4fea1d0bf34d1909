// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aflags reads and writes aconfig flags on a device by talking to the
// aconfigd control sockets.
//
// Rows printed by "aflags list" have the columns
//
//	package.flag value staged_value provenance permission container
//
// where value is the flag's current boot value (enabled or disabled);
// staged_value is "-" when the next boot keeps the current value, or
// "(->enabled)" / "(->disabled)" when it will flip; provenance says
// where the current value came from (default, server, or local); and
// permission is read-write or read-only.
//
// Both the system and the mainline daemons are asked by default
// (--socket, repeatable). A daemon that is not running is skipped;
// a listing fails only when no socket answers. Writes go to the socket
// whose daemon owns the flag.
package main
