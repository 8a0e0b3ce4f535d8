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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WireCode returns the event code as carried on the wire in revision rev:
// the start bit for revision A (1=start 0=end), the two bit code for B.
func WireCode(rev Revision, kind EventKind) uint8 {
	if rev == RevisionA {
		if kind == EventStart {
			return 1
		}
		return 0
	}
	return uint8(kind)
}

// EventLogLine formats a decoded event as "code | timestamp | raw", with
// the code as sent on the wire.
func EventLogLine(rev Revision, ev DetectionEvent) string {
	return fmt.Sprintf("%d | %08d | 0x%08X", WireCode(rev, ev.Kind), ev.Timestamp, ev.Raw)
}

// WriteChannelLog writes the events of a single channel, in stream order.
func WriteChannelLog(w io.Writer, runID string, rev Revision, ch Channel, events []DetectionEvent) error {
	writer := bufio.NewWriter(w)

	fmt.Fprintf(writer, "# run %s channel %d revision %s\n", runID, ch, rev)
	fmt.Fprintln(writer, "# event_code | timestamp | raw_word")
	for _, ev := range events {
		if ev.Channel != ch {
			continue
		}
		fmt.Fprintln(writer, EventLogLine(rev, ev))
	}

	return writer.Flush()
}

// WriteEventLogs writes one log file per channel into dir, named
// channel_NN.txt. Only channels with at least one event get a file.
func WriteEventLogs(dir, runID string, rev Revision, events []DetectionEvent) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating log directory: %w", err)
	}

	seen := make(map[Channel]bool)
	for _, ev := range events {
		if seen[ev.Channel] {
			continue
		}
		seen[ev.Channel] = true

		if err := writeChannelLogFile(filepath.Join(dir, fmt.Sprintf("channel_%02d.txt", ev.Channel)), runID, rev, ev.Channel, events); err != nil {
			return err
		}
	}

	return nil
}

func writeChannelLogFile(path, runID string, rev Revision, ch Channel, events []DetectionEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating event log: %w", err)
	}

	if err := WriteChannelLog(f, runID, rev, ch, events); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing event log: %w", err)
	}

	return f.Close()
}
