// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package halo_test

import (
	"context"
	"testing"

	"github.com/OpenPSG/halo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// releasedEmulator returns an emulator configured with the test boundary
// parameters and out of reset.
func releasedEmulator(t *testing.T, rev halo.Revision) *halo.Emulator {
	t.Helper()

	emu, err := halo.NewEmulator(halo.EmulatorOptions{Revision: rev}, discardLogger())
	require.NoError(t, err)

	require.NoError(t, emu.SetWireIn(halo.WireInThreshold, halo.DefaultThreshold))
	require.NoError(t, emu.SetWireIn(halo.WireInWindowTimeout, uint32(testBoundaryParams.WindowTimeout)))
	require.NoError(t, emu.SetWireIn(halo.WireInTransitionCount, testBoundaryParams.TransitionCount))
	require.NoError(t, emu.SetWireIn(halo.WireInTimestampLow, 1000))
	require.NoError(t, emu.SetWireIn(halo.WireInControl, 0))
	require.NoError(t, emu.UpdateWireIns())

	return emu
}

func TestNewEmulatorUnknownRevision(t *testing.T) {
	_, err := halo.NewEmulator(halo.EmulatorOptions{Revision: "Z"}, nil)
	require.ErrorIs(t, err, halo.ErrUnknownRevision)
}

func TestEmulatorEndpoints(t *testing.T) {
	emu := releasedEmulator(t, halo.RevisionB)
	ctx := context.Background()

	assert.Error(t, emu.SetWireIn(halo.WireOutTimestampLow, 1))

	_, err := emu.WireOut(halo.WireInControl)
	assert.Error(t, err)

	_, err = emu.WriteToPipeIn(ctx, halo.PipeOut, make([]byte, 16))
	assert.Error(t, err)

	_, err = emu.ReadFromPipeOut(ctx, halo.PipeIn, make([]byte, 16))
	assert.Error(t, err)

	// Pipe transfers must be whole blocks.
	_, err = emu.WriteToPipeIn(ctx, halo.PipeIn, make([]byte, 20))
	assert.Error(t, err)
}

func TestEmulatorRejectsWritesInReset(t *testing.T) {
	emu, err := halo.NewEmulator(halo.EmulatorOptions{Revision: halo.RevisionA}, discardLogger())
	require.NoError(t, err)

	_, err = emu.WriteToPipeIn(context.Background(), halo.PipeIn, make([]byte, 16))
	require.Error(t, err)

	require.NoError(t, emu.SetWireIn(halo.WireInTransitionCount, 1))
	require.NoError(t, emu.UpdateWireIns())

	n, err := emu.WriteToPipeIn(context.Background(), halo.PipeIn, make([]byte, 16))
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestEmulatorSplitWrites(t *testing.T) {
	data := testData()
	chunks := halo.EncodeChunks(data, 1024, 2, halo.ChunkCount(1024))
	ctx := context.Background()

	whole := releasedEmulator(t, halo.RevisionB)
	for _, chunk := range chunks {
		_, err := whole.WriteToPipeIn(ctx, halo.PipeIn, chunk)
		require.NoError(t, err)
	}

	// Detector state carries across writes.
	split := releasedEmulator(t, halo.RevisionB)
	for _, chunk := range chunks {
		for off := 0; off < len(chunk); off += 48 {
			n := min(48, len(chunk)-off)
			_, err := split.WriteToPipeIn(ctx, halo.PipeIn, chunk[off:off+n])
			require.NoError(t, err)
		}
	}

	a := make([]byte, 64)
	na, err := whole.ReadFromPipeOut(ctx, halo.PipeOut, a)
	require.NoError(t, err)

	b := make([]byte, 64)
	nb, err := split.ReadFromPipeOut(ctx, halo.PipeOut, b)
	require.NoError(t, err)

	require.Equal(t, 8, na)
	assert.Equal(t, a[:na], b[:nb])

	events, err := halo.DecodeEvents(a[:na], halo.RevisionB)
	require.NoError(t, err)
	assert.Equal(t, []halo.DetectionEvent{
		{Kind: halo.EventStart, Channel: 0, Timestamp: 1054, Raw: 1<<30 | 1054},
		{Kind: halo.EventEnd, Channel: 0, Timestamp: 1169, Raw: 2<<30 | 1169},
	}, events)

	// Events are drained once read.
	nb, err = split.ReadFromPipeOut(ctx, halo.PipeOut, b)
	require.NoError(t, err)
	assert.Zero(t, nb)
}

func TestEmulatorResetClearsState(t *testing.T) {
	emu := releasedEmulator(t, halo.RevisionB)
	ctx := context.Background()

	for _, chunk := range halo.EncodeChunks(testData(), 1024, 2, 2) {
		_, err := emu.WriteToPipeIn(ctx, halo.PipeIn, chunk)
		require.NoError(t, err)
	}

	require.NoError(t, emu.SetWireIn(halo.WireInControl, halo.ControlReset))
	require.NoError(t, emu.UpdateWireIns())

	buf := make([]byte, 64)
	n, err := emu.ReadFromPipeOut(ctx, halo.PipeOut, buf)
	require.NoError(t, err)
	assert.Zero(t, n)

	// The timestamp written before release is latched for readback.
	require.NoError(t, emu.SetWireIn(halo.WireInTimestampHigh, 3))
	require.NoError(t, emu.SetWireIn(halo.WireInControl, 0))
	require.NoError(t, emu.UpdateWireIns())
	require.NoError(t, emu.UpdateWireOuts())

	lo, err := emu.WireOut(halo.WireOutTimestampLow)
	require.NoError(t, err)
	hi, err := emu.WireOut(halo.WireOutTimestampHigh)
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), lo)
	assert.Equal(t, uint32(3), hi)
}
