// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package halo models the software side of the HALO seizure detection
// pipeline: synthetic neural signal generation, the chunked wire format
// streamed into the FPGA datapath, the detection event stream it returns,
// and a software NEO detector used to cross-check the hardware.
package halo

import "errors"

const (
	// NumChannels is the number of recording channels handled by the datapath.
	NumChannels = 32
	// SamplesPerChunk is the number of samples per channel in one chunk.
	SamplesPerChunk = 128
	// WordBytes is the size of a single encoded word on the wire.
	WordBytes = 4
	// ChunkBytes is the size of a single encoded chunk (16384 bytes).
	ChunkBytes = NumChannels * SamplesPerChunk * WordBytes
	// PipeAlignment is the block size required by the pipe transport.
	PipeAlignment = 16

	// ADCZeroCode is the ADC code representing 0 µV.
	ADCZeroCode = 32768
	// ADCMicrovoltsPerLSB is the ADC scale factor.
	ADCMicrovoltsPerLSB = 0.195

	// DefaultSampleRate is the default sampling rate in Hz.
	DefaultSampleRate = 1000.0
	// DefaultThreshold is the default NEO detection threshold.
	DefaultThreshold = 120000
)

var (
	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrUnknownRevision is returned for an unsupported event protocol revision.
	ErrUnknownRevision = errors.New("unknown protocol revision")
	// ErrTransport is returned when the device rejects a pipe or wire transfer.
	ErrTransport = errors.New("transport error")
)

// Channel identifies a recording channel in [0, NumChannels).
type Channel = int

// EventKind is the kind of a detection event reported by the datapath.
type EventKind uint8

const (
	EventIdle EventKind = iota
	EventStart
	EventEnd
	// EventUnknown is the reserved Revision B code 3.
	EventUnknown
)

func (k EventKind) String() string {
	switch k {
	case EventIdle:
		return "IDLE"
	case EventStart:
		return "START"
	case EventEnd:
		return "END"
	default:
		return "UNKNOWN"
	}
}

// DetectionEvent is a single decoded word from the output event stream.
type DetectionEvent struct {
	Kind      EventKind // Event kind
	Channel   Channel   // Channel the event belongs to
	Timestamp uint32    // Truncated datapath timestamp
	Raw       uint32    // Raw word as received
}

// SeizureInterval is a start/end pair for a single channel. End is nil
// when the seizure had not ended by the end of the observed stream.
type SeizureInterval struct {
	Channel Channel
	Start   uint32
	End     *uint32
}

// Open reports whether the interval has no observed end.
func (si SeizureInterval) Open() bool {
	return si.End == nil
}
