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
	"log/slog"
	"sort"
)

// Aggregator groups detection events into per-channel seizure intervals.
//
// Each channel has at most one open interval. A start while an interval is
// already open is logged and ignored, so the first start time is kept. An
// end with no open interval is logged and discarded.
type Aggregator struct {
	logger    *slog.Logger
	open      map[Channel]uint32
	intervals map[Channel][]SeizureInterval
	// Counts of inconsistent events seen so far.
	DuplicateStarts int
	OrphanEnds      int
}

// NewAggregator creates an empty aggregator. A nil logger uses slog.Default.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		logger:    logger,
		open:      make(map[Channel]uint32),
		intervals: make(map[Channel][]SeizureInterval),
	}
}

// Add processes a single event. Idle and unknown events are ignored.
func (a *Aggregator) Add(ev DetectionEvent) {
	switch ev.Kind {
	case EventStart:
		if start, ok := a.open[ev.Channel]; ok {
			a.DuplicateStarts++
			a.logger.Warn("Ignoring duplicate seizure start",
				slog.Int("channel", ev.Channel),
				slog.Uint64("openStart", uint64(start)),
				slog.Uint64("timestamp", uint64(ev.Timestamp)))
			return
		}
		a.open[ev.Channel] = ev.Timestamp
	case EventEnd:
		start, ok := a.open[ev.Channel]
		if !ok {
			a.OrphanEnds++
			a.logger.Warn("Discarding seizure end without start",
				slog.Int("channel", ev.Channel),
				slog.Uint64("timestamp", uint64(ev.Timestamp)))
			return
		}
		end := ev.Timestamp
		a.intervals[ev.Channel] = append(a.intervals[ev.Channel], SeizureInterval{
			Channel: ev.Channel,
			Start:   start,
			End:     &end,
		})
		delete(a.open, ev.Channel)
	}
}

// Finish returns the intervals of every channel that saw a seizure, keyed by
// channel. Channels with an open interval get a trailing entry with a nil
// End. The aggregator can not be used after Finish.
func (a *Aggregator) Finish() map[Channel][]SeizureInterval {
	for ch, start := range a.open {
		a.intervals[ch] = append(a.intervals[ch], SeizureInterval{
			Channel: ch,
			Start:   start,
		})
	}
	a.open = nil

	result := a.intervals
	a.intervals = nil
	return result
}

// Aggregate runs all events through a new aggregator.
func Aggregate(events []DetectionEvent, logger *slog.Logger) map[Channel][]SeizureInterval {
	a := NewAggregator(logger)
	for _, ev := range events {
		a.Add(ev)
	}
	return a.Finish()
}

// SortedChannels returns the channels of an interval map in ascending order.
func SortedChannels(intervals map[Channel][]SeizureInterval) []Channel {
	channels := make([]Channel, 0, len(intervals))
	for ch := range intervals {
		channels = append(channels, ch)
	}
	sort.Ints(channels)
	return channels
}

// IntervalEvents converts intervals back into start and end events, in
// channel order. Open intervals produce only a start event.
func IntervalEvents(intervals map[Channel][]SeizureInterval) []DetectionEvent {
	var events []DetectionEvent
	for _, ch := range SortedChannels(intervals) {
		for _, si := range intervals[ch] {
			events = append(events, DetectionEvent{Kind: EventStart, Channel: ch, Timestamp: si.Start})
			if si.End != nil {
				events = append(events, DetectionEvent{Kind: EventEnd, Channel: ch, Timestamp: *si.End})
			}
		}
	}
	return events
}
