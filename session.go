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
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const progressInterval = 50

// Result is the outcome of a detection run.
type Result struct {
	RunID            uuid.UUID
	ChunksSent       int
	BytesSent        int
	Raw              []byte // Raw bytes read from the event pipe
	Events           []DetectionEvent
	Intervals        map[Channel][]SeizureInterval
	Starts           int
	Ends             int
	DuplicateStarts  int
	OrphanEnds       int
	LatchedTimestamp uint64
}

// Session streams sample data through a device and collects its
// detection events.
type Session struct {
	dev    Device
	cfg    Config
	logger *slog.Logger
	runID  uuid.UUID
}

// NewSession validates cfg and creates a session. A nil logger uses
// slog.Default.
func NewSession(dev Device, cfg Config, logger *slog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	runID := uuid.New()
	return &Session{
		dev:    dev,
		cfg:    cfg,
		logger: logger.With(slog.String("run", runID.String())),
		runID:  runID,
	}, nil
}

// RunID returns the unique identifier of the session.
func (s *Session) RunID() uuid.UUID {
	return s.runID
}

// Configure writes the timestamp and detection parameters, then pulses the
// datapath reset.
func (s *Session) Configure() error {
	writes := []struct {
		addr  uint8
		value uint32
	}{
		{WireInTimestampLow, uint32(s.cfg.Timestamp)},
		{WireInTimestampHigh, uint32(s.cfg.Timestamp >> 32)},
		{WireInThreshold, s.cfg.Threshold},
		{WireInWindowTimeout, s.cfg.WindowTimeout},
		{WireInTransitionCount, s.cfg.TransitionCount},
		{WireInControl, ControlReset},
	}

	for _, w := range writes {
		if err := s.dev.SetWireIn(w.addr, w.value); err != nil {
			return fmt.Errorf("%w: error setting wire 0x%02X: %w", ErrTransport, w.addr, err)
		}
	}
	if err := s.dev.UpdateWireIns(); err != nil {
		return fmt.Errorf("%w: error asserting reset: %w", ErrTransport, err)
	}
	s.logger.Info("Reset asserted", slog.String("timestamp", fmt.Sprintf("0x%016X", s.cfg.Timestamp)))

	if err := s.dev.SetWireIn(WireInControl, 0); err != nil {
		return fmt.Errorf("%w: error setting control wire: %w", ErrTransport, err)
	}
	if err := s.dev.UpdateWireIns(); err != nil {
		return fmt.Errorf("%w: error releasing reset: %w", ErrTransport, err)
	}
	s.logger.Info("Reset released")

	return nil
}

// Run configures the device, streams data as chunks, then reads back and
// aggregates the detection events. Any failed transfer aborts the run.
func (s *Session) Run(ctx context.Context, data []uint16) (*Result, error) {
	if err := s.Configure(); err != nil {
		return nil, err
	}

	res := &Result{RunID: s.runID}

	numChunks := s.cfg.ChunkCount()
	s.logger.Info("Sending chunks",
		slog.Int("chunks", numChunks),
		slog.Int("chunkBytes", s.cfg.Channels*SamplesPerChunk*WordBytes))

	for c := 0; c < numChunks; c++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk := PadTo16(EncodeChunk(data, s.cfg.SamplesPerChannel, s.cfg.Channels, c))
		n, err := s.dev.WriteToPipeIn(ctx, PipeIn, chunk)
		if err == nil && n != len(chunk) {
			err = fmt.Errorf("short write: %d of %d bytes", n, len(chunk))
		}
		if err != nil {
			s.logger.Error("Pipe write failed", slog.Int("chunk", c), slog.Any("error", err))
			return nil, &ChunkWriteError{Chunk: c, Err: err}
		}

		res.ChunksSent++
		res.BytesSent += n

		if res.ChunksSent%progressInterval == 0 {
			s.logger.Info("Progress", slog.Int("sent", res.ChunksSent), slog.Int("bytes", res.BytesSent))
		}
	}

	buf := make([]byte, s.cfg.MaxEvents*WordBytes)
	n, err := s.dev.ReadFromPipeOut(ctx, PipeOut, buf)
	if err != nil {
		s.logger.Error("Pipe read failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error reading events: %w", ErrTransport, err)
	}
	res.Raw = buf[:n]

	if err := s.dev.UpdateWireOuts(); err != nil {
		return nil, fmt.Errorf("%w: error updating wire outs: %w", ErrTransport, err)
	}
	lo, err := s.dev.WireOut(WireOutTimestampLow)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading timestamp: %w", ErrTransport, err)
	}
	hi, err := s.dev.WireOut(WireOutTimestampHigh)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading timestamp: %w", ErrTransport, err)
	}
	res.LatchedTimestamp = uint64(hi)<<32 | uint64(lo)

	res.Events, err = DecodeEvents(res.Raw, s.cfg.Revision)
	if err != nil {
		return nil, err
	}
	res.Starts, res.Ends = CountEvents(res.Events)

	agg := NewAggregator(s.logger)
	for _, ev := range res.Events {
		agg.Add(ev)
	}
	res.DuplicateStarts = agg.DuplicateStarts
	res.OrphanEnds = agg.OrphanEnds
	res.Intervals = agg.Finish()

	s.logger.Info("Run complete",
		slog.Int("bytesRead", n),
		slog.Int("events", len(res.Events)),
		slog.Int("starts", res.Starts),
		slog.Int("ends", res.Ends),
		slog.String("latchedTimestamp", fmt.Sprintf("0x%016X", res.LatchedTimestamp)))

	if len(res.Events) == 0 {
		s.logger.Warn("No detection events received")
	}

	return res, nil
}
