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
	"fmt"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
)

// GenerateOptions configures multi-channel signal generation.
type GenerateOptions struct {
	Channels          int     // Number of channels, 1..NumChannels
	SamplesPerChannel int     // Samples generated for each channel
	SampleRate        float64 // Sampling rate (Hz)
	EnableSeizures    bool
	Units             int    // Spiking units per channel
	Seed              uint64 // Seed for the per-channel random streams
	Workers           int    // Channels generated concurrently, <= 1 is sequential
}

// DefaultGenerateOptions returns one minute of 32 channel data at 1 kHz.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Channels:          NumChannels,
		SamplesPerChannel: 60000,
		SampleRate:        DefaultSampleRate,
		EnableSeizures:    true,
		Units:             2,
	}
}

// Validate checks the options are within range.
func (o GenerateOptions) Validate() error {
	if o.Channels < 1 || o.Channels > NumChannels {
		return fmt.Errorf("%w: channel count %d must be between 1 and %d", ErrInvalidConfig, o.Channels, NumChannels)
	}
	if o.SamplesPerChannel <= 0 {
		return fmt.Errorf("%w: samples per channel must be positive, got %d", ErrInvalidConfig, o.SamplesPerChannel)
	}
	if o.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidConfig, o.SampleRate)
	}
	if o.Units < 0 || o.Units > MaxUnits {
		return fmt.Errorf("%w: %d spiking units, max is %d", ErrInvalidConfig, o.Units, MaxUnits)
	}
	return nil
}

// ChannelRand returns the random source used for a channel. Each channel
// has its own stream so generation order does not affect the output.
func ChannelRand(seed uint64, ch Channel) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(ch)))
}

// Generate synthesizes ADC codes for all channels. The returned buffer is
// channel-major: all samples of channel 0, then channel 1, and so on.
func Generate(opts GenerateOptions) ([]uint16, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	synthOpts := SynthOptions{Units: opts.Units, EnableSeizures: opts.EnableSeizures}
	data := make([]uint16, opts.Channels*opts.SamplesPerChannel)

	var g errgroup.Group
	if opts.Workers > 1 {
		g.SetLimit(opts.Workers)
	} else {
		g.SetLimit(1)
	}

	for ch := 0; ch < opts.Channels; ch++ {
		out := data[ch*opts.SamplesPerChannel : (ch+1)*opts.SamplesPerChannel]
		g.Go(func() error {
			synth, err := NewSynthesizer(opts.SampleRate, synthOpts, ChannelRand(opts.Seed, ch))
			if err != nil {
				return fmt.Errorf("error creating synthesizer for channel %d: %w", ch, err)
			}

			for i := range out {
				out[i] = VoltageToCode(synth.NextSample())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return data, nil
}

// ChannelSamples returns the samples of a single channel from a
// channel-major buffer.
func ChannelSamples(data []uint16, samplesPerChannel int, ch Channel) []uint16 {
	start := ch * samplesPerChannel
	if start >= len(data) {
		return nil
	}
	end := start + samplesPerChannel
	if end > len(data) {
		end = len(data)
	}
	return data[start:end]
}
