// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge connects a SOME/IP event stream to the VSS publisher.
//
// [Handler] is the per-event pipeline. It runs on the protocol client's
// receive goroutine: it checks the event's (service, instance, event)
// triple against the one [Binding] the bridge is wired for, decodes the
// payload into a record, maps the record onto registered signal paths
// with [vss.Map], and hands the batch to the publisher. Foreign events
// and undecodable payloads are dropped with a diagnostic; neither
// affects later events.
//
// [Bridge] owns the two worker goroutines, listener and publisher,
// and their lifecycle:
//
//	Created --Start--> Running --Shutdown--> ShuttingDown --> Stopped
//	Created --Shutdown--> Stopped
//
// Shutdown runs its body once no matter how many goroutines call it.
// The listener is stopped and joined before the publisher is told to
// drain, so nothing is enqueued after draining starts. Shutdown called
// from the listener's own goroutine (a Listener decides the process
// should stop) cannot join itself: the bridge marks the listener's
// context, and Shutdown seeing that mark skips the join with a warning.
//
// When the protocol client cannot be built (vsomeip environment missing,
// configuration unreadable) the bridge runs publisher-only: Start
// succeeds, the publisher runs, and no listener exists.
//
// [Bridge.FeedDummyData] publishes a synthetic wiper position ramp for
// manual smoke tests. It does not arbitrate with live updates.
package bridge
