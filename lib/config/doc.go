// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for aconfigd.
//
// Configuration is loaded from a single file named by either the
// ACONFIGD_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]), merged over [Default]. There is no file search.
// When neither is given [Load] returns the defaults, which match the
// paths init uses on a device.
//
// The file may carry role sections (system, mainline) that override
// base values when [Config].Role matches. The role also derives the
// socket name (aconfigd_<role>) and the records file name when those
// are not set explicitly.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${ACONFIGD_ROOT}, and ${VAR:-default} patterns are expanded.
//
// This package depends on no other aconfigd packages.
package config
