// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	if len(hdr.Signals) != hdr.SignalCount {
		return nil, fmt.Errorf("signal count %d does not match %d signal headers", hdr.SignalCount, len(hdr.Signals))
	}
	if hdr.RecordBytes() > MaxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", hdr.RecordBytes(), MaxRecordBytes)
	}

	hdr.DataRecords = -1 // Unknown number of data records (at this time).

	ew := &Writer{w: w, hdr: &hdr}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	// Leave the file positioned after the last record.
	_, err := ew.w.Seek(0, io.SeekEnd)
	return err
}

// WriteRecord writes a single data record of digital samples, one slice
// per signal.
func (ew *Writer) WriteRecord(signals [][]int16) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}
	for i, samples := range signals {
		if len(samples) != ew.hdr.Signals[i].SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, ew.hdr.Signals[i].SamplesPerRecord, len(samples))
		}
	}

	offset := int64(ew.hdr.HeaderBytes) + int64(ew.dataRecords)*int64(ew.hdr.RecordBytes())
	if _, err := ew.w.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to record: %w", err)
	}

	writer := bufio.NewWriter(ew.w)
	for _, samples := range signals {
		if err := binary.Write(writer, binary.LittleEndian, samples); err != nil {
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// writeHeader rewrites the header at the start of the file.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	hdr := ew.hdr
	hdr.HeaderBytes = headerSize + hdr.SignalCount*signalHeaderSize

	writer := bufio.NewWriter(ew.w)
	field := func(width int, s string) {
		// bufio.Writer errors are sticky and reported by Flush.
		_, _ = writer.WriteString(fmt.Sprintf("%-*s", width, s))
	}

	field(8, string(hdr.Version))
	field(80, hdr.PatientID)
	field(80, hdr.RecordingID)
	field(8, hdr.StartTime.Format("02.01.06"))
	field(8, hdr.StartTime.Format("15.04.05"))
	field(8, strconv.Itoa(hdr.HeaderBytes))
	field(44, "")
	field(8, strconv.Itoa(hdr.DataRecords))
	field(8, formatNumber(hdr.DataRecordDuration.Seconds()))
	field(4, strconv.Itoa(hdr.SignalCount))

	// Signal headers are stored field by field across all signals.
	columns := []struct {
		width int
		value func(Signal) string
	}{
		{16, func(s Signal) string { return s.Label }},
		{80, func(s Signal) string { return s.TransducerType }},
		{8, func(s Signal) string { return s.PhysicalDimension }},
		{8, func(s Signal) string { return formatNumber(s.PhysicalMin) }},
		{8, func(s Signal) string { return formatNumber(s.PhysicalMax) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMin) }},
		{8, func(s Signal) string { return strconv.Itoa(s.DigitalMax) }},
		{80, func(s Signal) string { return s.Prefiltering }},
		{8, func(s Signal) string { return strconv.Itoa(s.SamplesPerRecord) }},
		{32, func(s Signal) string { return s.Reserved }},
	}
	for _, col := range columns {
		for _, sig := range hdr.Signals {
			field(col.width, col.value(sig))
		}
	}

	return writer.Flush()
}

// formatNumber formats a value to fit an 8 character header field.
func formatNumber(val float64) string {
	for prec := 6; prec >= 0; prec-- {
		s := strconv.FormatFloat(val, 'f', prec, 64)
		if len(s) <= 8 {
			return s
		}
	}
	return strconv.FormatFloat(val, 'f', 0, 64)
}
