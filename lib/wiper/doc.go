// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wiper describes the front windshield wiper service: the
// SOME/IP identifiers of its status event, the binary layout of that
// event's payload, and the VSS signals the event feeds.
//
// The status event is a fixed 20-byte big-endian record:
//
//	offset  size  field
//	0       1     SequenceCounter
//	1       4     ActualPosition     (float32, degrees)
//	5       4     DriveCurrent       (float32, amperes)
//	9       1     TempGear
//	10      1     IsWiping           (0/1)
//	11      1     IsEndingWipeCycle  (0/1)
//	12      1     IsWiperError       (0/1)
//	13      1     IsPositionReached  (0/1)
//	14      1     IsBlocked          (0/1)
//	15      1     IsOverheated       (0/1)
//	16      1     ECUTemp
//	17      1     LINError
//	18      1     IsOvervoltage      (0/1)
//	19      1     IsUndervoltage     (0/1)
//
// Bytes past offset 19 are ignored so newer service versions can
// append fields.
package wiper
