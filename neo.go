// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package halo

import "math"

// neoAt returns |x1^2 - x0*x2| for centered samples.
func neoAt(x0, x1, x2 int64) uint64 {
	v := x1*x1 - x0*x2
	if v < 0 {
		v = -v
	}
	return uint64(v)
}

func center(code uint16) int64 {
	return int64(code) - ADCZeroCode
}

// ComputeNEO computes the absolute nonlinear energy operator of a run of
// ADC codes. The first and last values are always zero.
func ComputeNEO(codes []uint16) []uint64 {
	neo := make([]uint64, len(codes))
	for i := 1; i < len(codes)-1; i++ {
		neo[i] = neoAt(center(codes[i-1]), center(codes[i]), center(codes[i+1]))
	}
	return neo
}

// Detect returns the indices where neo exceeds threshold.
func Detect(neo []uint64, threshold uint64) []int {
	var idx []int
	for i, v := range neo {
		if v > threshold {
			idx = append(idx, i)
		}
	}
	return idx
}

// NEOStats summarises the NEO of a channel against a threshold.
type NEOStats struct {
	Samples    int
	Max        uint64
	Mean       float64
	Std        float64
	Detections int
	First      int // Index of the first detection, -1 if none
	Last       int // Index of the last detection, -1 if none
	MeanGap    float64
	MaxGap     int
}

// AnalyzeNEO computes the NEO of codes and summarises it.
func AnalyzeNEO(codes []uint16, threshold uint64) NEOStats {
	neo := ComputeNEO(codes)
	stats := NEOStats{Samples: len(neo), First: -1, Last: -1}
	if len(neo) == 0 {
		return stats
	}

	var sum float64
	for _, v := range neo {
		sum += float64(v)
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = sum / float64(len(neo))

	var sq float64
	for _, v := range neo {
		d := float64(v) - stats.Mean
		sq += d * d
	}
	stats.Std = math.Sqrt(sq / float64(len(neo)))

	det := Detect(neo, threshold)
	stats.Detections = len(det)
	if len(det) > 0 {
		stats.First = det[0]
		stats.Last = det[len(det)-1]
	}
	if len(det) > 1 {
		var gaps int
		for i := 1; i < len(det); i++ {
			gap := det[i] - det[i-1]
			gaps += gap
			if gap > stats.MaxGap {
				stats.MaxGap = gap
			}
		}
		stats.MeanGap = float64(gaps) / float64(len(det)-1)
	}

	return stats
}

// NEOFilter computes the NEO of a stream one sample at a time. It carries
// the previous two samples across calls so chunk boundaries do not reset it.
type NEOFilter struct {
	prev [2]int64
	n    int
}

// Push adds the next sample. Once at least three samples have been seen it
// returns the NEO of the previous sample and true.
func (f *NEOFilter) Push(code uint16) (uint64, bool) {
	x := center(code)

	var neo uint64
	ready := f.n >= 2
	if ready {
		neo = neoAt(f.prev[0], f.prev[1], x)
	}

	f.prev[0], f.prev[1] = f.prev[1], x
	f.n++

	return neo, ready
}

// Reset clears the filter history.
func (f *NEOFilter) Reset() {
	*f = NEOFilter{}
}
