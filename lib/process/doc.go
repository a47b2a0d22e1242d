// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the bridge binary:
// reporting a fatal error to stderr before or after the structured
// logger exists, and exiting with a status that tells the service
// manager whether a restart can help.
package process
