// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package halo

import (
	"context"
	"fmt"
)

// Endpoint addresses of the datapath.
const (
	WireInControl         uint8 = 0x00 // bit 31 holds the datapath in reset
	WireInTimestampLow    uint8 = 0x01
	WireInTimestampHigh   uint8 = 0x02
	WireInThreshold       uint8 = 0x03
	WireInWindowTimeout   uint8 = 0x04
	WireInTransitionCount uint8 = 0x05
	WireOutTimestampLow   uint8 = 0x20
	WireOutTimestampHigh  uint8 = 0x21
	PipeIn                uint8 = 0x80
	PipeOut               uint8 = 0xA0

	ControlReset uint32 = 1 << 31
)

// Device is the transport to the FPGA datapath. Wire-ins are staged with
// SetWireIn and latched together by UpdateWireIns. Pipe transfers block
// until they complete or fail.
type Device interface {
	SetWireIn(addr uint8, value uint32) error
	UpdateWireIns() error
	UpdateWireOuts() error
	WireOut(addr uint8) (uint32, error)
	WriteToPipeIn(ctx context.Context, addr uint8, data []byte) (int, error)
	ReadFromPipeOut(ctx context.Context, addr uint8, buf []byte) (int, error)
}

// ChunkWriteError reports a failed pipe write. It matches ErrTransport.
type ChunkWriteError struct {
	Chunk int // Index of the chunk that failed
	Err   error
}

func (e *ChunkWriteError) Error() string {
	return fmt.Sprintf("error writing chunk %d: %v", e.Chunk, e.Err)
}

func (e *ChunkWriteError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}
