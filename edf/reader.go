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
	"strings"
	"time"
)

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}
	reader := bufio.NewReader(r)

	b := make([]byte, headerSize)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	hdr := &Header{}
	hdr.Version = Version(trimmed(b[0:8]))
	hdr.PatientID = trimmed(b[8:88])
	hdr.RecordingID = trimmed(b[88:168])

	startDate, err := time.Parse("02.01.06", trimmed(b[168:176]))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", trimmed(b[176:184]))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(trimmed(b[184:192])); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(trimmed(b[236:244])); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	if hdr.DataRecordDuration, err = time.ParseDuration(trimmed(b[244:252]) + "s"); err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	if hdr.SignalCount, err = strconv.Atoi(trimmed(b[252:256])); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count %d", hdr.SignalCount)
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)

	// Signal headers are stored field by field across all signals.
	columns := []struct {
		width int
		parse func(*Signal, string)
	}{
		{16, func(s *Signal, v string) { s.Label = v }},
		{80, func(s *Signal, v string) { s.TransducerType = v }},
		{8, func(s *Signal, v string) { s.PhysicalDimension = v }},
		{8, func(s *Signal, v string) { s.PhysicalMin = parseFloat(v) }},
		{8, func(s *Signal, v string) { s.PhysicalMax = parseFloat(v) }},
		{8, func(s *Signal, v string) { s.DigitalMin = parseInt(v) }},
		{8, func(s *Signal, v string) { s.DigitalMax = parseInt(v) }},
		{80, func(s *Signal, v string) { s.Prefiltering = v }},
		{8, func(s *Signal, v string) { s.SamplesPerRecord = parseInt(v) }},
		{32, func(s *Signal, v string) { s.Reserved = v }},
	}
	for _, col := range columns {
		b := make([]byte, col.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, b); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			col.parse(&hdr.Signals[i], trimmed(b))
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() Header {
	return *er.hdr
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r             io.ReadSeeker
	hdr           *Header
	signal        Signal
	currentRecord int // Current record being processed
	currentSample int // Current sample in the record
	recordSize    int // Total size of one data record
	signalOffset  int // Byte offset of the signal in a record
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index %d out of range", signalIndex)
	}

	signalOffset := 0
	for _, sig := range er.hdr.Signals[:signalIndex] {
		signalOffset += sig.SamplesPerRecord * 2
	}

	return &SignalReader{
		r:            er.r,
		hdr:          er.hdr,
		signal:       er.hdr.Signals[signalIndex],
		recordSize:   er.hdr.RecordBytes(),
		signalOffset: signalOffset,
	}, nil
}

// ReadDigital fills data with raw digital samples. It returns io.EOF once
// all data records have been read.
func (sr *SignalReader) ReadDigital(data []int16) (int, error) {
	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords || sr.signal.SamplesPerRecord == 0 {
			return n, io.EOF
		}

		// Read the rest of this record's run of samples in one go.
		count := sr.signal.SamplesPerRecord - sr.currentSample
		if count > len(data)-n {
			count = len(data) - n
		}

		pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset) + int64(sr.currentSample*2)
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return n, fmt.Errorf("error seeking to position: %w", err)
		}
		if err := binary.Read(sr.r, binary.LittleEndian, data[n:n+count]); err != nil {
			return n, fmt.Errorf("error reading sample data: %w", err)
		}

		n += count
		sr.currentSample += count
		if sr.currentSample >= sr.signal.SamplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	digital := make([]int16, len(data))
	n, err := sr.ReadDigital(digital)
	for i := 0; i < n; i++ {
		data[i] = sr.signal.Physical(digital[i])
	}
	return n, err
}

func trimmed(b []byte) string {
	return strings.TrimSpace(string(b))
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
