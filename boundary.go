// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package halo

// BoundaryParams are the datapath parameters that turn NEO threshold
// crossings into seizure boundaries.
type BoundaryParams struct {
	Threshold       uint64 // NEO detection threshold
	WindowTimeout   uint64 // Window length in samples
	TransitionCount uint32 // Crossings within a window that start a seizure
}

// Boundary is a seizure start or end at a sample index.
type Boundary struct {
	Kind   EventKind
	Sample uint64
}

// BoundaryDetector models the per-channel seizure boundary logic of the
// datapath. A seizure starts once TransitionCount crossings fall within
// WindowTimeout samples of the first one, and ends once WindowTimeout
// samples pass without a crossing.
type BoundaryDetector struct {
	params        BoundaryParams
	neo           NEOFilter
	samples       uint64
	active        bool
	count         uint32
	windowStart   uint64
	lastDetection uint64
}

// NewBoundaryDetector creates a detector in the idle state.
func NewBoundaryDetector(params BoundaryParams) *BoundaryDetector {
	return &BoundaryDetector{params: params}
}

// Push adds the next sample. It reports a boundary when one is found; the
// boundary is placed on the sample whose NEO triggered it, one sample
// behind the sample just pushed.
func (d *BoundaryDetector) Push(code uint16) (Boundary, bool) {
	neo, ok := d.neo.Push(code)
	d.samples++
	if !ok {
		return Boundary{}, false
	}

	idx := d.samples - 2
	crossed := neo > d.params.Threshold

	if d.active {
		if crossed {
			d.lastDetection = idx
			return Boundary{}, false
		}
		if idx-d.lastDetection > d.params.WindowTimeout {
			d.active = false
			d.count = 0
			return Boundary{Kind: EventEnd, Sample: idx}, true
		}
		return Boundary{}, false
	}

	if !crossed {
		return Boundary{}, false
	}

	if d.count == 0 || idx-d.windowStart > d.params.WindowTimeout {
		d.windowStart = idx
		d.count = 0
	}
	d.count++

	if d.count >= d.params.TransitionCount {
		d.active = true
		d.lastDetection = idx
		return Boundary{Kind: EventStart, Sample: idx}, true
	}

	return Boundary{}, false
}

// Active reports whether the detector is inside a seizure.
func (d *BoundaryDetector) Active() bool {
	return d.active
}

// Reset returns the detector to the idle state.
func (d *BoundaryDetector) Reset() {
	*d = BoundaryDetector{params: d.params}
}

// DetectBoundaries runs a fresh detector over a single channel of codes.
func DetectBoundaries(codes []uint16, params BoundaryParams) []Boundary {
	d := NewBoundaryDetector(params)

	var boundaries []Boundary
	for _, code := range codes {
		if b, ok := d.Push(code); ok {
			boundaries = append(boundaries, b)
		}
	}
	return boundaries
}
