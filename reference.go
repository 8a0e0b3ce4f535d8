// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package halo

import "log/slog"

// StreamedSamples returns the codes of channel ch exactly as they are sent
// in the first numChunks chunks, including end-of-data padding.
func StreamedSamples(data []uint16, samplesPerChannel int, ch Channel, numChunks int) []uint16 {
	out := make([]uint16, numChunks*SamplesPerChunk)
	for i := range out {
		out[i] = chunkCode(data, samplesPerChannel, ch, i/SamplesPerChunk, i%SamplesPerChunk)
	}
	return out
}

// ReferenceEvents computes in software the detection events the datapath
// should report for a run, grouped by channel rather than in stream order.
func ReferenceEvents(data []uint16, cfg Config) []DetectionEvent {
	params := BoundaryParams{
		Threshold:       uint64(cfg.Threshold),
		WindowTimeout:   uint64(cfg.WindowTimeout),
		TransitionCount: cfg.TransitionCount,
	}
	mask := cfg.Revision.TimestampMask()

	var events []DetectionEvent
	for ch := 0; ch < cfg.Channels; ch++ {
		samples := StreamedSamples(data, cfg.SamplesPerChannel, ch, cfg.ChunkCount())
		for _, b := range DetectBoundaries(samples, params) {
			events = append(events, DetectionEvent{
				Kind:      b.Kind,
				Channel:   ch,
				Timestamp: uint32(cfg.Timestamp+b.Sample) & mask,
			})
		}
	}
	return events
}

// ReferenceIntervals aggregates ReferenceEvents into seizure intervals.
func ReferenceIntervals(data []uint16, cfg Config, logger *slog.Logger) map[Channel][]SeizureInterval {
	return Aggregate(ReferenceEvents(data, cfg), logger)
}

// EqualIntervals reports whether two interval sets are identical.
func EqualIntervals(a, b map[Channel][]SeizureInterval) bool {
	if len(a) != len(b) {
		return false
	}
	for ch, as := range a {
		bs, ok := b[ch]
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i].Channel != bs[i].Channel || as[i].Start != bs[i].Start || as[i].Open() != bs[i].Open() {
				return false
			}
			if !as[i].Open() && *as[i].End != *bs[i].End {
				return false
			}
		}
	}
	return true
}
