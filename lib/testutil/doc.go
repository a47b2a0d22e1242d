// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the timeout safety valves shared by the
// bridge's concurrency tests. [RequireReceive] and [RequireClosed] wrap
// the select-with-deadline pattern so a hung worker fails the test
// with a message instead of stalling the suite. They are the only
// place tests touch the wall clock; everything else runs on
// clock.Fake.
package testutil
