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

// rampData returns a channel-major buffer whose codes encode their own
// channel and sample index.
func rampData(channels, samplesPerChannel int) []uint16 {
	data := make([]uint16, channels*samplesPerChannel)
	for ch := 0; ch < channels; ch++ {
		for s := 0; s < samplesPerChannel; s++ {
			data[ch*samplesPerChannel+s] = uint16(ch<<11 | s&0x7FF)
		}
	}
	return data
}

func TestEncodeChunkLayout(t *testing.T) {
	const spc = 300
	data := rampData(halo.NumChannels, spc)

	chunk := halo.EncodeChunk(data, spc, halo.NumChannels, 1)
	require.Len(t, chunk, halo.ChunkBytes)
	require.Equal(t, 16384, len(chunk))

	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(chunk[i*4:])
	}

	// Words 0..127 belong to channel 0, 128..255 to channel 1.
	assert.Equal(t, uint32(0)<<16|uint32(data[128]), word(0))
	assert.Equal(t, uint32(0)<<16|uint32(data[255]), word(127))
	assert.Equal(t, uint32(1)<<16|uint32(data[spc+128]), word(128))
	assert.Equal(t, uint32(31)<<16|uint32(data[31*spc+255]), word(halo.NumChannels*halo.SamplesPerChunk-1))

	// Reserved bits are zero.
	for i := 0; i < halo.NumChannels*halo.SamplesPerChunk; i++ {
		require.Zero(t, word(i)>>22)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	const spc = 512
	data := rampData(halo.NumChannels, spc)

	chunks := halo.EncodeChunks(data, spc, halo.NumChannels, halo.ChunkCount(spc))
	require.Len(t, chunks, 4)

	for c, chunk := range chunks {
		words := halo.DecodeChunk(chunk)
		require.Len(t, words, halo.NumChannels*halo.SamplesPerChunk)

		for i, w := range words {
			ch := i / halo.SamplesPerChunk
			s := c*halo.SamplesPerChunk + i%halo.SamplesPerChunk
			require.Equal(t, ch, w.Channel)
			require.Equal(t, data[ch*spc+s], w.Code)
		}
	}

	require.NoError(t, halo.VerifyChunks(data, spc, halo.NumChannels, chunks))
}

func TestEncodeChunkPadsPastEndOfData(t *testing.T) {
	const spc = 200
	data := rampData(2, spc)

	chunk := halo.EncodeChunk(data, spc, 2, 1)
	words := halo.DecodeChunk(chunk)

	// Channel 1 runs out of data after 72 samples of the second chunk.
	for s := 0; s < halo.SamplesPerChunk; s++ {
		w := words[halo.SamplesPerChunk+s]
		require.Equal(t, 1, w.Channel)
		if s < spc-halo.SamplesPerChunk {
			require.Equal(t, data[spc+halo.SamplesPerChunk+s], w.Code)
		} else {
			require.Equal(t, uint16(halo.ADCZeroCode), w.Code)
		}
	}
}

func TestPadTo16(t *testing.T) {
	for n := 0; n <= 40; n++ {
		b := make([]byte, n)
		for i := range b {
			b[i] = 0xAB
		}

		padded := halo.PadTo16(b)
		require.Zero(t, len(padded)%16)
		require.GreaterOrEqual(t, len(padded), n)
		require.Less(t, len(padded)-n, 16)

		// Existing bytes are untouched and padding is zero.
		require.Equal(t, b, padded[:n])
		for _, v := range padded[n:] {
			require.Zero(t, v)
		}
	}

	chunk := halo.EncodeChunk(rampData(3, 128), 128, 3, 0)
	require.Equal(t, chunk, halo.PadTo16(chunk))
}

func TestDecodeChunkIgnoresPartialWord(t *testing.T) {
	b := binary.LittleEndian.AppendUint32(nil, halo.EncodeWord(5, 0x1234))
	b = append(b, 0xFF, 0xFF)

	words := halo.DecodeChunk(b)
	require.Len(t, words, 1)
	assert.Equal(t, halo.Word{Channel: 5, Code: 0x1234}, words[0])
}

func TestEncodeWord(t *testing.T) {
	assert.Equal(t, uint32(0x001F8000), halo.EncodeWord(31, 0x8000))
	assert.Equal(t, uint32(0x003FFFFF), halo.EncodeWord(63, 0xFFFF))
	assert.Equal(t, halo.Word{Channel: 63, Code: 0xFFFF}, halo.DecodeWord(0xFFFFFFFF))
}

func TestVerifyChunksDetectsCorruption(t *testing.T) {
	const spc = 256
	data := rampData(4, spc)
	chunks := halo.EncodeChunks(data, spc, 4, 2)

	// Swap the channel tag of one word.
	binary.LittleEndian.PutUint32(chunks[1][200*4:], halo.EncodeWord(0, data[spc+128+72]))
	require.ErrorContains(t, halo.VerifyChunks(data, spc, 4, chunks), "chunk 1 word 200")

	chunks = halo.EncodeChunks(data, spc, 4, 2)
	binary.LittleEndian.PutUint32(chunks[0][4:], halo.EncodeWord(0, 0xBEEF))
	require.ErrorContains(t, halo.VerifyChunks(data, spc, 4, chunks), "code 0xBEEF")
}
