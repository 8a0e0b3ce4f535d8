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
	"testing"

	"github.com/OpenPSG/halo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNEO(t *testing.T) {
	neo := halo.ComputeNEO([]uint16{32768, 32868, 32768})
	assert.Equal(t, []uint64{0, 10000, 0}, neo)

	// Negative energy is reported as its magnitude.
	neo = halo.ComputeNEO([]uint16{32868, 32768, 32868})
	assert.Equal(t, []uint64{0, 10000, 0}, neo)

	// Full scale does not overflow.
	neo = halo.ComputeNEO([]uint16{0, 0xFFFF, 0xFFFF})
	assert.Equal(t, uint64(32767*32767+32768*32767), neo[1])

	assert.Empty(t, halo.ComputeNEO(nil))
	assert.Equal(t, []uint64{0}, halo.ComputeNEO([]uint16{40000}))
	assert.Equal(t, []uint64{0, 0}, halo.ComputeNEO([]uint16{40000, 20000}))
}

func TestDetect(t *testing.T) {
	neo := []uint64{0, 120000, 120001, 5, 999999, 0}
	assert.Equal(t, []int{2, 4}, halo.Detect(neo, 120000))
	assert.Empty(t, halo.Detect(neo, 1000000))
}

func TestNEOFilterMatchesBatch(t *testing.T) {
	opts := smallGenerateOptions()
	data, err := halo.Generate(opts)
	require.NoError(t, err)

	codes := halo.ChannelSamples(data, opts.SamplesPerChannel, 1)
	want := halo.ComputeNEO(codes)

	var f halo.NEOFilter
	for i, code := range codes {
		neo, ok := f.Push(code)
		if i < 2 {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		require.Equal(t, want[i-1], neo, "sample %d", i-1)
	}

	f.Reset()
	_, ok := f.Push(codes[0])
	assert.False(t, ok)
}

func TestAnalyzeNEO(t *testing.T) {
	codes := []uint16{32768, 32868, 32768, 32768, 32768, 32868, 32768}
	stats := halo.AnalyzeNEO(codes, 5000)

	assert.Equal(t, 7, stats.Samples)
	assert.Equal(t, uint64(10000), stats.Max)
	assert.InDelta(t, 20000.0/7.0, stats.Mean, 1e-9)
	assert.Equal(t, 2, stats.Detections)
	assert.Equal(t, 1, stats.First)
	assert.Equal(t, 5, stats.Last)
	assert.Equal(t, 4.0, stats.MeanGap)
	assert.Equal(t, 4, stats.MaxGap)

	empty := halo.AnalyzeNEO(nil, 5000)
	assert.Equal(t, -1, empty.First)
	assert.Equal(t, -1, empty.Last)
	assert.Zero(t, empty.Detections)
}
