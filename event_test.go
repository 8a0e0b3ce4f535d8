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
	"encoding/binary"
	"testing"

	"github.com/OpenPSG/halo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEventRevisionA(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		want halo.DetectionEvent
	}{
		{
			name: "start",
			word: 1<<31 | 7<<26 | 0x0123456,
			want: halo.DetectionEvent{Kind: halo.EventStart, Channel: 7, Timestamp: 0x0123456},
		},
		{
			name: "end",
			word: 31<<26 | 0x3FFFFFF,
			want: halo.DetectionEvent{Kind: halo.EventEnd, Channel: 31, Timestamp: 0x3FFFFFF},
		},
		{
			name: "zero word is an end on channel 0",
			word: 0,
			want: halo.DetectionEvent{Kind: halo.EventEnd},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := halo.DecodeEvent(tt.word, halo.RevisionA)
			require.NoError(t, err)

			tt.want.Raw = tt.word
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeEventRevisionB(t *testing.T) {
	tests := []struct {
		name string
		word uint32
		want halo.DetectionEvent
	}{
		{
			name: "idle",
			word: 0,
			want: halo.DetectionEvent{Kind: halo.EventIdle},
		},
		{
			name: "start",
			word: 1<<30 | 12<<25 | 0x1ABCDEF,
			want: halo.DetectionEvent{Kind: halo.EventStart, Channel: 12, Timestamp: 0x1ABCDEF},
		},
		{
			name: "end",
			word: 2<<30 | 31<<25 | 0x0000042,
			want: halo.DetectionEvent{Kind: halo.EventEnd, Channel: 31, Timestamp: 0x42},
		},
		{
			name: "reserved code",
			word: 3<<30 | 1<<25 | 9,
			want: halo.DetectionEvent{Kind: halo.EventUnknown, Channel: 1, Timestamp: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := halo.DecodeEvent(tt.word, halo.RevisionB)
			require.NoError(t, err)

			tt.want.Raw = tt.word
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestRevisionsDisagree(t *testing.T) {
	// The same word means different things in each revision.
	const word = 1<<31 | 3<<26 | 100

	a, err := halo.DecodeEvent(word, halo.RevisionA)
	require.NoError(t, err)
	b, err := halo.DecodeEvent(word, halo.RevisionB)
	require.NoError(t, err)

	assert.Equal(t, halo.EventStart, a.Kind)
	assert.Equal(t, 3, a.Channel)
	assert.Equal(t, halo.EventEnd, b.Kind)
	assert.Equal(t, 6, b.Channel)
}

func TestDecodeEventsDropsPartialWord(t *testing.T) {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, 1<<30|2<<25|10)
	buf = binary.LittleEndian.AppendUint32(buf, 2<<30|2<<25|20)
	buf = append(buf, 0x01, 0x02, 0x03)

	events, err := halo.DecodeEvents(buf, halo.RevisionB)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, uint32(10), events[0].Timestamp)
	assert.Equal(t, uint32(20), events[1].Timestamp)

	events, err = halo.DecodeEvents(buf[:3], halo.RevisionB)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDecodeEventsUnknownRevision(t *testing.T) {
	_, err := halo.DecodeEvents(make([]byte, 8), halo.Revision("C"))
	require.ErrorIs(t, err, halo.ErrUnknownRevision)

	_, err = halo.DecodeEvent(0, halo.Revision(""))
	require.ErrorIs(t, err, halo.ErrUnknownRevision)
}

func TestParseRevision(t *testing.T) {
	rev, err := halo.ParseRevision("a")
	require.NoError(t, err)
	assert.Equal(t, halo.RevisionA, rev)

	rev, err = halo.ParseRevision(" B ")
	require.NoError(t, err)
	assert.Equal(t, halo.RevisionB, rev)

	_, err = halo.ParseRevision("rev2")
	require.ErrorIs(t, err, halo.ErrUnknownRevision)
}

func TestEncodeEventRoundTrip(t *testing.T) {
	for _, rev := range []halo.Revision{halo.RevisionA, halo.RevisionB} {
		t.Run(string(rev), func(t *testing.T) {
			for _, kind := range []halo.EventKind{halo.EventStart, halo.EventEnd} {
				for ch := 0; ch < halo.NumChannels; ch++ {
					ts := uint32(0xFFFFFFFF - ch*12345)

					w, err := halo.EncodeEvent(rev, kind, ch, ts)
					require.NoError(t, err)

					ev, err := halo.DecodeEvent(w, rev)
					require.NoError(t, err)
					require.Equal(t, kind, ev.Kind)
					require.Equal(t, ch, ev.Channel)
					require.Equal(t, ts&rev.TimestampMask(), ev.Timestamp)
				}
			}
		})
	}

	_, err := halo.EncodeEvent(halo.RevisionA, halo.EventIdle, 0, 0)
	require.Error(t, err)
}

func TestTimestampWidths(t *testing.T) {
	assert.Equal(t, 26, halo.RevisionA.TimestampBits())
	assert.Equal(t, uint32(0x03FFFFFF), halo.RevisionA.TimestampMask())
	assert.Equal(t, 25, halo.RevisionB.TimestampBits())
	assert.Equal(t, uint32(0x01FFFFFF), halo.RevisionB.TimestampMask())
}

func TestCountEvents(t *testing.T) {
	starts, ends := halo.CountEvents([]halo.DetectionEvent{
		{Kind: halo.EventStart},
		{Kind: halo.EventIdle},
		{Kind: halo.EventEnd},
		{Kind: halo.EventStart},
	})
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, ends)
}
