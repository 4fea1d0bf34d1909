// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildprop reads Android build property files (build.prop).
//
// A property file holds one "name=value" assignment per line. Blank
// lines and lines starting with '#' are ignored, as are "import"
// directives. A later assignment of the same name wins.
package buildprop
