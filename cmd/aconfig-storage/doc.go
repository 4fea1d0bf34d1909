// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// aconfig-storage builds and inspects aconfig storage files.
//
//	aconfig-storage create --declarations system.jsonc --out out/etc/aconfig
//	aconfig-storage dump out/etc/aconfig/flag.map
//
// create turns a JSONC flag declaration file (see lib/flagdecl) into
// the package.map, flag.map, flag.val, and flag.info files that a
// partition or apex ships under etc/aconfig. dump prints the header
// and every entry of one storage file, as text or with --json.
package main
