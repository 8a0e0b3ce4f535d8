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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenPSG/halo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLogLine(t *testing.T) {
	ev, err := halo.DecodeEvent(1<<30|4<<25|1234, halo.RevisionB)
	require.NoError(t, err)

	assert.Equal(t, "1 | 00001234 | 0x480004D2", halo.EventLogLine(halo.RevisionB, ev))
}

func TestEventLogLineUsesWireCode(t *testing.T) {
	tests := []struct {
		rev  halo.Revision
		word uint32
		want string
	}{
		{halo.RevisionA, 1<<31 | 3<<26 | 77, "1 | 00000077 | 0x8C00004D"},
		{halo.RevisionA, 3<<26 | 78, "0 | 00000078 | 0x0C00004E"},
		{halo.RevisionB, 2<<30 | 3<<25 | 79, "2 | 00000079 | 0x8600004F"},
		{halo.RevisionB, 3<<30 | 3<<25 | 80, "3 | 00000080 | 0xC6000050"},
	}

	for _, tt := range tests {
		ev, err := halo.DecodeEvent(tt.word, tt.rev)
		require.NoError(t, err)
		assert.Equal(t, tt.want, halo.EventLogLine(tt.rev, ev))

		w, err := halo.EncodeEvent(tt.rev, ev.Kind, ev.Channel, ev.Timestamp)
		require.NoError(t, err)
		assert.Equal(t, tt.word, w)
	}
}

func TestWriteEventLogs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "events")

	events := []halo.DetectionEvent{
		{Kind: halo.EventStart, Channel: 2, Timestamp: 10, Raw: 0x4400000A},
		{Kind: halo.EventStart, Channel: 17, Timestamp: 11, Raw: 0x6200000B},
		{Kind: halo.EventEnd, Channel: 2, Timestamp: 90, Raw: 0x8400005A},
	}
	require.NoError(t, halo.WriteEventLogs(dir, "run-1", halo.RevisionB, events))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"channel_02.txt", "channel_17.txt"}, names)

	b, err := os.ReadFile(filepath.Join(dir, "channel_02.txt"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	assert.Equal(t, []string{
		"# run run-1 channel 2 revision B",
		"# event_code | timestamp | raw_word",
		"1 | 00000010 | 0x4400000A",
		"2 | 00000090 | 0x8400005A",
	}, lines)
}
