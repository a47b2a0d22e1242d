// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the bridge.
//
// Configuration is loaded from a single file specified by either the
// SOMEIP2VAL_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). With neither, [Default] applies. There is no
// automatic file search.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches.
//
// ${VAR} and ${VAR:-default} patterns are expanded in the bus URL and
// metrics address after loading. No other environment variables
// override config values, except that an empty log.level falls back
// to the numeric SOMEIP_CLI_DEBUG verbosity ([Verbosity], [DebugLevel]).
package config
