// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the bridge
// binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X, for example:
//
//	go build -ldflags "-X github.com/SoftwareDefinedVehicle/kuksa.val.feeders.fork/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not injected, [Commit] falls back to the VCS stamp in
// the binary's build info.
package version
