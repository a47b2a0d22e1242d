// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts the handful of time operations the bridge
// depends on: reading the current time for frame timestamps, waiting
// out the publisher's retry backoff, and pacing the dummy feeder.
//
// Production code is handed Real(). Tests hand in Fake(), whose time
// stands still until Advance is called:
//
//	fakeClock := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go publisher.Run(ctx)
//	fakeClock.WaitForTimers(1)         // publisher entered backoff
//	fakeClock.Advance(1 * time.Second) // retry fires deterministically
package clock
