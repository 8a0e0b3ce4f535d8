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
	"encoding/binary"
	"fmt"
)

const (
	channelShift = 16
	channelMask  = 0x3F
	sampleMask   = 0xFFFF
)

// Word is a single decoded input word.
type Word struct {
	Channel Channel
	Code    uint16
}

// EncodeWord packs a channel id and ADC code into an input word:
// [31:22] reserved, [21:16] channel, [15:0] sample.
func EncodeWord(ch Channel, code uint16) uint32 {
	return uint32(ch&channelMask)<<channelShift | uint32(code)
}

// DecodeWord unpacks an input word.
func DecodeWord(w uint32) Word {
	return Word{
		Channel: Channel((w >> channelShift) & channelMask),
		Code:    uint16(w & sampleMask),
	}
}

// chunkCode returns the code sent for sample s of channel ch in chunk
// chunkIndex. The index is taken over the whole buffer, so past the end of
// a channel it runs into the next one; only past the end of the buffer is
// the mid-scale code used.
func chunkCode(data []uint16, samplesPerChannel int, ch Channel, chunkIndex, s int) uint16 {
	idx := ch*samplesPerChannel + chunkIndex*SamplesPerChunk + s
	if idx < len(data) {
		return data[idx]
	}
	return ADCZeroCode
}

// EncodeChunk encodes chunk chunkIndex of a channel-major sample buffer.
// Words are channel-major within the chunk: the first SamplesPerChunk words
// belong to channel 0, the next to channel 1, and so on. Samples past the
// end of the buffer are sent as the mid-scale code.
func EncodeChunk(data []uint16, samplesPerChannel, numChannels, chunkIndex int) []byte {
	b := make([]byte, numChannels*SamplesPerChunk*WordBytes)

	off := 0
	for ch := 0; ch < numChannels; ch++ {
		for s := 0; s < SamplesPerChunk; s++ {
			code := chunkCode(data, samplesPerChannel, ch, chunkIndex, s)
			binary.LittleEndian.PutUint32(b[off:], EncodeWord(ch, code))
			off += WordBytes
		}
	}

	return b
}

// EncodeChunks encodes the first numChunks chunks of a sample buffer.
func EncodeChunks(data []uint16, samplesPerChannel, numChannels, numChunks int) [][]byte {
	chunks := make([][]byte, numChunks)
	for c := range chunks {
		chunks[c] = EncodeChunk(data, samplesPerChannel, numChannels, c)
	}
	return chunks
}

// ChunkCount returns the number of chunks needed to cover samplesPerChannel.
func ChunkCount(samplesPerChannel int) int {
	return (samplesPerChannel + SamplesPerChunk - 1) / SamplesPerChunk
}

// PadTo16 pads b with trailing zero bytes to a multiple of PipeAlignment.
func PadTo16(b []byte) []byte {
	rem := len(b) % PipeAlignment
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, PipeAlignment-rem)...)
}

// DecodeChunk splits an encoded chunk into words. A trailing partial word
// is ignored.
func DecodeChunk(b []byte) []Word {
	words := make([]Word, 0, len(b)/WordBytes)
	for off := 0; off+WordBytes <= len(b); off += WordBytes {
		words = append(words, DecodeWord(binary.LittleEndian.Uint32(b[off:])))
	}
	return words
}

// VerifyChunks re-decodes every chunk and checks each word carries the
// expected channel tag and sample code.
func VerifyChunks(data []uint16, samplesPerChannel, numChannels int, chunks [][]byte) error {
	for c, chunk := range chunks {
		words := DecodeChunk(chunk)
		if len(words) < numChannels*SamplesPerChunk {
			return fmt.Errorf("chunk %d: expected %d words, got %d", c, numChannels*SamplesPerChunk, len(words))
		}

		for i := 0; i < numChannels*SamplesPerChunk; i++ {
			ch := i / SamplesPerChunk
			expected := chunkCode(data, samplesPerChannel, ch, c, i%SamplesPerChunk)

			if words[i].Channel != ch {
				return fmt.Errorf("chunk %d word %d: channel %d, expected %d", c, i, words[i].Channel, ch)
			}
			if words[i].Code != expected {
				return fmt.Errorf("chunk %d word %d: code 0x%04X, expected 0x%04X", c, i, words[i].Code, expected)
			}
		}
	}

	return nil
}
