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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/halo/edf"
)

// CaptureInfo describes a persisted multi-channel recording.
type CaptureInfo struct {
	Channels          int
	SamplesPerChannel int
	SampleRate        float64
	RecordingID       string
	StartTime         time.Time
}

// WriteCapture persists a channel-major buffer of ADC codes as an EDF file
// with one signal per channel and one data record per chunk. The final
// record is padded with mid-scale codes. The exact sample count and rate
// are kept in the reserved field of each signal, since the record duration
// field only holds 8 characters.
func WriteCapture(w io.WriteSeeker, data []uint16, info CaptureInfo) error {
	if info.Channels < 1 || info.SamplesPerChannel < 1 || info.SampleRate <= 0 {
		return fmt.Errorf("%w: capture of %d channels, %d samples at %v Hz",
			ErrInvalidConfig, info.Channels, info.SamplesPerChannel, info.SampleRate)
	}
	if len(data) < info.Channels*info.SamplesPerChannel {
		return fmt.Errorf("%w: buffer holds %d samples, expected %d",
			ErrInvalidConfig, len(data), info.Channels*info.SamplesPerChannel)
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        info.RecordingID,
		StartTime:          info.StartTime,
		DataRecordDuration: time.Duration(float64(SamplesPerChunk) / info.SampleRate * float64(time.Second)),
		SignalCount:        info.Channels,
	}
	for ch := 0; ch < info.Channels; ch++ {
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             fmt.Sprintf("CH%02d", ch),
			TransducerType:    "Microelectrode",
			PhysicalDimension: "uV",
			PhysicalMin:       CodeToVoltage(0),
			PhysicalMax:       CodeToVoltage(0xFFFF),
			DigitalMin:        -ADCZeroCode,
			DigitalMax:        ADCZeroCode - 1,
			SamplesPerRecord:  SamplesPerChunk,
			Reserved:          captureReserved(info.SamplesPerChannel, info.SampleRate),
		})
	}

	ew, err := edf.Create(w, hdr)
	if err != nil {
		return fmt.Errorf("error creating capture: %w", err)
	}

	record := make([][]int16, info.Channels)
	for ch := range record {
		record[ch] = make([]int16, SamplesPerChunk)
	}

	for rec := 0; rec < ChunkCount(info.SamplesPerChannel); rec++ {
		for ch := range record {
			for s := range record[ch] {
				idx := rec*SamplesPerChunk + s
				code := uint16(ADCZeroCode)
				if idx < info.SamplesPerChannel {
					code = data[ch*info.SamplesPerChannel+idx]
				}
				record[ch][s] = int16(int32(code) - ADCZeroCode)
			}
		}

		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing record %d: %w", rec, err)
		}
	}

	return ew.Close()
}

// ReadCapture reads a capture written by WriteCapture back into a
// channel-major buffer of ADC codes.
func ReadCapture(r io.ReadSeeker) ([]uint16, CaptureInfo, error) {
	er, err := edf.Open(r)
	if err != nil {
		return nil, CaptureInfo{}, fmt.Errorf("error opening capture: %w", err)
	}
	hdr := er.Header()

	if hdr.SignalCount < 1 || hdr.SignalCount > NumChannels {
		return nil, CaptureInfo{}, fmt.Errorf("%w: capture has %d signals", ErrInvalidConfig, hdr.SignalCount)
	}
	if hdr.DataRecords < 0 {
		return nil, CaptureInfo{}, fmt.Errorf("%w: capture has an unknown number of data records, it was not closed", ErrInvalidConfig)
	}

	perRecord := hdr.Signals[0].SamplesPerRecord
	if perRecord <= 0 {
		return nil, CaptureInfo{}, fmt.Errorf("%w: capture has %d samples per record", ErrInvalidConfig, perRecord)
	}
	for _, sig := range hdr.Signals {
		if sig.SamplesPerRecord != perRecord {
			return nil, CaptureInfo{}, fmt.Errorf("%w: signals have mixed sample rates", ErrInvalidConfig)
		}
	}

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, CaptureInfo{}, fmt.Errorf("error finding capture size: %w", err)
	}
	if records := (size - int64(hdr.HeaderBytes)) / int64(hdr.RecordBytes()); int64(hdr.DataRecords) > records {
		return nil, CaptureInfo{}, fmt.Errorf("%w: header declares %d data records, file holds %d",
			ErrInvalidConfig, hdr.DataRecords, max(records, 0))
	}

	info := CaptureInfo{
		Channels:          hdr.SignalCount,
		SamplesPerChannel: hdr.DataRecords * perRecord,
		RecordingID:       hdr.RecordingID,
		StartTime:         hdr.StartTime,
	}
	if hdr.DataRecordDuration > 0 {
		info.SampleRate = float64(perRecord) / hdr.DataRecordDuration.Seconds()
	}
	n, rate := parseCaptureReserved(hdr.Signals[0].Reserved)
	if n > 0 && n < info.SamplesPerChannel {
		info.SamplesPerChannel = n
	}
	if rate > 0 {
		info.SampleRate = rate
	}

	data := make([]uint16, info.Channels*info.SamplesPerChannel)
	digital := make([]int16, info.SamplesPerChannel)
	for ch := 0; ch < info.Channels; ch++ {
		sr, err := er.Signal(ch)
		if err != nil {
			return nil, CaptureInfo{}, err
		}

		n, err := sr.ReadDigital(digital)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, CaptureInfo{}, fmt.Errorf("error reading channel %d: %w", ch, err)
		}
		if n != info.SamplesPerChannel {
			return nil, CaptureInfo{}, fmt.Errorf("channel %d: read %d of %d samples", ch, n, info.SamplesPerChannel)
		}

		out := data[ch*info.SamplesPerChannel:]
		for i, d := range digital {
			out[i] = uint16(int32(d) + ADCZeroCode)
		}
	}

	return data, info, nil
}

// captureReserved formats the signal reserved field as
// "<samples per channel> <sample rate>".
func captureReserved(samplesPerChannel int, sampleRate float64) string {
	return strconv.Itoa(samplesPerChannel) + " " + strconv.FormatFloat(sampleRate, 'g', -1, 64)
}

// parseCaptureReserved parses the reserved field written by
// captureReserved. Missing or malformed values are returned as zero.
func parseCaptureReserved(s string) (samplesPerChannel int, sampleRate float64) {
	fields := strings.Fields(s)
	if len(fields) > 0 {
		samplesPerChannel, _ = strconv.Atoi(fields[0])
	}
	if len(fields) > 1 {
		sampleRate, _ = strconv.ParseFloat(fields[1], 64)
	}
	return samplesPerChannel, sampleRate
}

// WriteRawCodes writes ADC codes as a flat little-endian uint16 array.
func WriteRawCodes(w io.Writer, data []uint16) error {
	return binary.Write(w, binary.LittleEndian, data)
}

// ReadRawCodes reads a flat little-endian uint16 array. A trailing odd
// byte is ignored.
func ReadRawCodes(r io.Reader) ([]uint16, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	data := make([]uint16, len(b)/2)
	for i := range data {
		data[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return data, nil
}

// WriteHexDataset writes the first numChunks chunks as one 4 digit hex code
// per line, in the order they are streamed: chunk by chunk, and within a
// chunk channel by channel. This is the dataset loaded by the datapath
// testbench.
func WriteHexDataset(w io.Writer, data []uint16, samplesPerChannel, numChannels, numChunks int) error {
	writer := bufio.NewWriter(w)

	for c := 0; c < numChunks; c++ {
		for ch := 0; ch < numChannels; ch++ {
			for s := 0; s < SamplesPerChunk; s++ {
				fmt.Fprintf(writer, "%04x\n", chunkCode(data, samplesPerChannel, ch, c, s))
			}
		}
	}

	return writer.Flush()
}

// WriteChunkTask writes an encoded chunk as a SystemVerilog task that loads
// it byte by byte into the testbench input_data array.
func WriteChunkTask(w io.Writer, chunkIndex int, chunk []byte) error {
	writer := bufio.NewWriter(w)

	words := len(chunk) / WordBytes
	fmt.Fprintf(writer, "// Test data chunk %d\n", chunkIndex)
	fmt.Fprintf(writer, "// Covers words %d to %d\n", chunkIndex*words, (chunkIndex+1)*words)
	fmt.Fprintln(writer, "task load_test_data;")
	fmt.Fprintln(writer, "begin")
	for i, b := range chunk {
		fmt.Fprintf(writer, "    input_data[%d] = 8'd%d;\n", i, b)
	}
	fmt.Fprintln(writer, "end")
	fmt.Fprintln(writer, "endtask")

	return writer.Flush()
}
