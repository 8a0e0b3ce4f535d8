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
	"strings"
)

// Revision selects the layout of the output event word. The two layouts
// are incompatible and are never inferred from the data.
type Revision string

const (
	// RevisionA: [31] 1=start 0=end, [30:26] channel, [25:0] timestamp.
	RevisionA Revision = "A"
	// RevisionB: [31:30] 0=idle 1=start 2=end, [29:25] channel, [24:0] timestamp.
	RevisionB Revision = "B"
)

// ParseRevision parses a protocol revision name.
func ParseRevision(s string) (Revision, error) {
	rev := Revision(strings.ToUpper(strings.TrimSpace(s)))
	if err := rev.Validate(); err != nil {
		return "", err
	}
	return rev, nil
}

// Validate returns ErrUnknownRevision for anything but A or B.
func (r Revision) Validate() error {
	switch r {
	case RevisionA, RevisionB:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRevision, string(r))
	}
}

// TimestampBits returns the width of the truncated timestamp.
func (r Revision) TimestampBits() int {
	if r == RevisionA {
		return 26
	}
	return 25
}

// TimestampMask returns the mask applied to timestamps in this revision.
func (r Revision) TimestampMask() uint32 {
	return 1<<r.TimestampBits() - 1
}

// DecodeEvent decodes a single output word.
func DecodeEvent(w uint32, rev Revision) (DetectionEvent, error) {
	ev := DetectionEvent{Raw: w}

	switch rev {
	case RevisionA:
		if w>>31 == 1 {
			ev.Kind = EventStart
		} else {
			ev.Kind = EventEnd
		}
		ev.Channel = Channel((w >> 26) & 0x1F)
		ev.Timestamp = w & rev.TimestampMask()
	case RevisionB:
		switch w >> 30 {
		case 0:
			ev.Kind = EventIdle
		case 1:
			ev.Kind = EventStart
		case 2:
			ev.Kind = EventEnd
		default:
			ev.Kind = EventUnknown
		}
		ev.Channel = Channel((w >> 25) & 0x1F)
		ev.Timestamp = w & rev.TimestampMask()
	default:
		return ev, fmt.Errorf("%w: %q", ErrUnknownRevision, string(rev))
	}

	return ev, nil
}

// DecodeEvents splits buf into little-endian words and decodes each one.
// A trailing partial word is dropped.
func DecodeEvents(buf []byte, rev Revision) ([]DetectionEvent, error) {
	if err := rev.Validate(); err != nil {
		return nil, err
	}

	events := make([]DetectionEvent, 0, len(buf)/WordBytes)
	for off := 0; off+WordBytes <= len(buf); off += WordBytes {
		ev, err := DecodeEvent(binary.LittleEndian.Uint32(buf[off:]), rev)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}

// EncodeEvent packs an event into an output word. The timestamp is
// truncated to the revision's width.
func EncodeEvent(rev Revision, kind EventKind, ch Channel, ts uint32) (uint32, error) {
	switch rev {
	case RevisionA:
		var bit uint32
		switch kind {
		case EventStart:
			bit = 1
		case EventEnd:
		default:
			return 0, fmt.Errorf("revision A cannot encode %s events", kind)
		}
		return bit<<31 | uint32(ch&0x1F)<<26 | ts&rev.TimestampMask(), nil
	case RevisionB:
		if kind > EventUnknown {
			return 0, fmt.Errorf("invalid event kind %d", kind)
		}
		return uint32(kind)<<30 | uint32(ch&0x1F)<<25 | ts&rev.TimestampMask(), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRevision, string(rev))
	}
}

// AppendEvent appends the little-endian encoding of an event to b.
func AppendEvent(b []byte, rev Revision, ev DetectionEvent) ([]byte, error) {
	w, err := EncodeEvent(rev, ev.Kind, ev.Channel, ev.Timestamp)
	if err != nil {
		return b, err
	}
	return binary.LittleEndian.AppendUint32(b, w), nil
}

// CountEvents returns the number of start and end events.
func CountEvents(events []DetectionEvent) (starts, ends int) {
	for _, ev := range events {
		switch ev.Kind {
		case EventStart:
			starts++
		case EventEnd:
			ends++
		}
	}
	return starts, ends
}
