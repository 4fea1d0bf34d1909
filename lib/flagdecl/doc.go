// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package flagdecl parses the hand-written inputs of the aconfig tools:
// flag declaration files, from which aconfig-storage builds a
// container's storage files, and OTA staging files, which aflags sends
// to the daemon.
//
// Both are authored as JSONC (JSON with // and /* */ comments and
// trailing commas). A declaration file looks like:
//
//	{
//	    "container": "system",
//	    "version": 1,
//	    "flags": [
//	        // Shipped enabled, adjustable by the server.
//	        {"package": "com.android.aconfig.test", "name": "enabled_rw",
//	         "permission": "read-write", "state": "enabled"},
//	    ],
//	}
//
// The typical flow is ReadFile, Validate (structural issues as
// human-readable strings), then StorageDeclarations to hand the flags
// to storagefile.Build.
package flagdecl
