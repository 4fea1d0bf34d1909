// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aconfigd manages the aconfig flag storage files of a device.
//
// init runs it once per boot stage and once as a long-lived service:
//
//	aconfigd platform-init    # system role: rebuild boot files of the platform partitions
//	aconfigd bootstrap-init   # mainline role: containers under /bootstrap-apex
//	aconfigd init             # mainline role: containers under /apex
//	aconfigd start-socket     # serve flag overrides on the control socket
//
// Configuration comes from the YAML file named by --config or the
// ACONFIGD_CONFIG environment variable, merged over built-in defaults;
// see lib/config. The config's role decides the socket name and the
// records file, so the system and mainline instances can share one
// file.
//
// Logs are structured (log/slog) on stderr, JSON by default.
package main
