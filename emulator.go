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
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	errInvalidEndpoint = errors.New("invalid endpoint")
	errInReset         = errors.New("datapath held in reset")
	errInjected        = errors.New("injected write failure")
)

// EmulatorOptions configures an Emulator.
type EmulatorOptions struct {
	Revision Revision // Layout of the emitted event words
	// FailWrite makes the n-th pipe write (1-based) fail. Zero never fails.
	FailWrite int
}

// Emulator is a software model of the datapath implementing Device. Each
// channel runs a BoundaryDetector over the samples routed to it by their
// channel tag, and emits events stamped with the configured base timestamp
// plus the sample index.
type Emulator struct {
	mu        sync.Mutex
	opts      EmulatorOptions
	logger    *slog.Logger
	staged    map[uint8]uint32
	wireIns   map[uint8]uint32
	wireOuts  map[uint8]uint32
	latched   map[uint8]uint32
	inReset   bool
	base      uint64
	detectors []*BoundaryDetector
	pending   []byte
	out       []byte
	writes    int
}

// NewEmulator creates an emulator. It starts held in reset until the first
// UpdateWireIns releases it.
func NewEmulator(opts EmulatorOptions, logger *slog.Logger) (*Emulator, error) {
	if err := opts.Revision.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Emulator{
		opts:     opts,
		logger:   logger,
		staged:   make(map[uint8]uint32),
		wireIns:  make(map[uint8]uint32),
		wireOuts: make(map[uint8]uint32),
		latched:  make(map[uint8]uint32),
		inReset:  true,
	}, nil
}

func (e *Emulator) SetWireIn(addr uint8, value uint32) error {
	if addr >= WireOutTimestampLow {
		return fmt.Errorf("%w: wire-in 0x%02X", errInvalidEndpoint, addr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.staged[addr] = value
	return nil
}

func (e *Emulator) UpdateWireIns() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for addr, value := range e.staged {
		e.wireIns[addr] = value
	}

	reset := e.wireIns[WireInControl]&ControlReset != 0
	if reset {
		e.inReset = true
		e.detectors = nil
		e.pending = nil
		e.out = nil
		return nil
	}

	if e.inReset {
		e.inReset = false
		e.base = uint64(e.wireIns[WireInTimestampHigh])<<32 | uint64(e.wireIns[WireInTimestampLow])
		e.wireOuts[WireOutTimestampLow] = e.wireIns[WireInTimestampLow]
		e.wireOuts[WireOutTimestampHigh] = e.wireIns[WireInTimestampHigh]

		params := BoundaryParams{
			Threshold:       uint64(e.wireIns[WireInThreshold]),
			WindowTimeout:   uint64(e.wireIns[WireInWindowTimeout]),
			TransitionCount: e.wireIns[WireInTransitionCount],
		}
		e.detectors = make([]*BoundaryDetector, NumChannels)
		for ch := range e.detectors {
			e.detectors[ch] = NewBoundaryDetector(params)
		}

		e.logger.Debug("Datapath released from reset",
			slog.Uint64("threshold", params.Threshold),
			slog.Uint64("windowTimeout", params.WindowTimeout),
			slog.Uint64("transitionCount", uint64(params.TransitionCount)))
	}

	return nil
}

func (e *Emulator) UpdateWireOuts() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for addr, value := range e.wireOuts {
		e.latched[addr] = value
	}
	return nil
}

func (e *Emulator) WireOut(addr uint8) (uint32, error) {
	if addr < WireOutTimestampLow || addr >= PipeIn {
		return 0, fmt.Errorf("%w: wire-out 0x%02X", errInvalidEndpoint, addr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.latched[addr], nil
}

func (e *Emulator) WriteToPipeIn(ctx context.Context, addr uint8, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if addr != PipeIn {
		return 0, fmt.Errorf("%w: pipe-in 0x%02X", errInvalidEndpoint, addr)
	}
	if len(data)%PipeAlignment != 0 {
		return 0, fmt.Errorf("invalid block size %d", len(data))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.writes++
	if e.opts.FailWrite > 0 && e.writes == e.opts.FailWrite {
		return 0, errInjected
	}
	if e.inReset {
		return 0, errInReset
	}

	e.pending = append(e.pending, data...)

	var off int
	for ; off+WordBytes <= len(e.pending); off += WordBytes {
		w := DecodeWord(binary.LittleEndian.Uint32(e.pending[off:]))
		if w.Channel >= len(e.detectors) {
			continue
		}

		b, ok := e.detectors[w.Channel].Push(w.Code)
		if !ok {
			continue
		}

		var err error
		e.out, err = AppendEvent(e.out, e.opts.Revision, DetectionEvent{
			Kind:      b.Kind,
			Channel:   w.Channel,
			Timestamp: uint32(e.base + b.Sample),
		})
		if err != nil {
			return 0, err
		}

		e.logger.Debug("Seizure boundary",
			slog.String("kind", b.Kind.String()),
			slog.Int("channel", w.Channel),
			slog.Uint64("sample", b.Sample))
	}
	e.pending = e.pending[off:]

	return len(data), nil
}

func (e *Emulator) ReadFromPipeOut(ctx context.Context, addr uint8, buf []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if addr != PipeOut {
		return 0, fmt.Errorf("%w: pipe-out 0x%02X", errInvalidEndpoint, addr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := copy(buf, e.out)
	e.out = e.out[n:]
	return n, nil
}
