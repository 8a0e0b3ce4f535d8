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
	"math"
	"math/rand/v2"
)

// MaxUnits is the maximum number of spiking units per synthesizer.
const MaxUnits = 8

const (
	gaussianDraws       = 6
	gaussianScaleFactor = 0.7071067811865476 // sqrt(3) / sqrt(6)
)

// UnitParams describes a single spiking unit.
type UnitParams struct {
	AmplitudeUV float64 // Peak amplitude, negative going (µV)
	DurationMs  float64 // Duration of the spike waveform (ms)
	RateHz      float64 // Mean firing rate (Hz)
}

// SynthParams holds the immutable parameters of a synthesizer. Unit
// parameters are drawn once at construction.
type SynthParams struct {
	SampleRate         float64 // Sampling rate (Hz)
	StepMs             float64 // Time advanced per sample (ms)
	NoiseRMS           float64 // Background noise level (µV)
	RefractoryMs       float64 // Refractory period after each spike (ms)
	LFPFrequencyHz     float64 // LFP carrier frequency (Hz)
	LFPModulationHz    float64 // LFP amplitude modulation frequency (Hz)
	EnableSeizures     bool
	SeizureDurationMs  float64 // Length of a seizure burst (ms)
	SeizureFrequencyHz float64 // Seizure oscillation frequency (Hz)
	SeizureAmplitudeUV float64 // Seizure oscillation amplitude (µV)
	SeizureProbability float64 // Chance of seizure onset per second
	NumUnits           int
	Units              [MaxUnits]UnitParams
}

// UnitState is the mutable state of a single spiking unit.
type UnitState struct {
	Firing  bool
	PhaseMs float64 // Time since the unit started firing (ms)
}

// SynthState is the mutable state of a synthesizer. It is a plain value:
// copying it never aliases another synthesizer's state.
type SynthState struct {
	TimeMs         float64
	Units          [MaxUnits]UnitState
	SeizureActive  bool
	SeizureStartMs float64
}

// SynthOptions configures a new synthesizer.
type SynthOptions struct {
	Units          int  // Number of spiking units, at most MaxUnits
	EnableSeizures bool // Whether seizure bursts are generated
}

// DefaultSynthOptions returns two spiking units with seizures enabled.
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{Units: 2, EnableSeizures: true}
}

// NewSynthParams draws a fresh set of synthesizer parameters from rng.
func NewSynthParams(sampleRate float64, opts SynthOptions, rng *rand.Rand) (SynthParams, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return SynthParams{}, fmt.Errorf("%w: sample rate %v", ErrInvalidConfig, sampleRate)
	}
	if opts.Units < 0 || opts.Units > MaxUnits {
		return SynthParams{}, fmt.Errorf("%w: %d spiking units, max is %d", ErrInvalidConfig, opts.Units, MaxUnits)
	}

	p := SynthParams{
		SampleRate:         sampleRate,
		StepMs:             1000.0 / sampleRate,
		NoiseRMS:           5.0,
		RefractoryMs:       5.0,
		LFPFrequencyHz:     2.3,
		LFPModulationHz:    0.5,
		EnableSeizures:     opts.EnableSeizures,
		SeizureDurationMs:  6000.0,
		SeizureFrequencyHz: 2.5,
		SeizureAmplitudeUV: 500.0,
		SeizureProbability: 0.01,
		NumUnits:           opts.Units,
	}

	for i := 0; i < p.NumUnits; i++ {
		p.Units[i] = UnitParams{
			AmplitudeUV: uniform(rng, -500.0, -200.0),
			DurationMs:  uniform(rng, 0.3, 1.7),
			RateHz:      logUniform(rng, 0.1, 50.0),
		}
	}

	return p, nil
}

// Step advances the synthesizer by one sample. It returns the new state and
// the voltage (µV) of the sample taken at the old state's time.
func Step(p *SynthParams, s SynthState, rng *rand.Rand) (SynthState, float64) {
	v := p.NoiseRMS * gaussianNoise(rng)

	for i := 0; i < p.NumUnits; i++ {
		unit := &s.Units[i]
		up := &p.Units[i]

		if unit.Firing {
			switch {
			case unit.PhaseMs < up.DurationMs:
				amplitude := up.AmplitudeUV * math.Exp(-2.0*unit.PhaseMs)
				v += amplitude * math.Sin(2.0*math.Pi*unit.PhaseMs/up.DurationMs)
				unit.PhaseMs += p.StepMs
			case unit.PhaseMs < up.DurationMs+p.RefractoryMs:
				unit.PhaseMs += p.StepMs
			default:
				unit.Firing = false
				unit.PhaseMs = 0
			}
			continue
		}

		// The firing probability decays across each one second epoch.
		modulation := (1000.0 - math.Mod(s.TimeMs, 1000.0)) / 1000.0
		if rng.Float64() < modulation*up.RateHz*p.StepMs/1000.0 {
			unit.Firing = true
		}
	}

	ts := s.TimeMs / 1000.0
	amplitude := 100.0 + 80.0*math.Sin(2.0*math.Pi*ts*p.LFPModulationHz)
	v += amplitude * math.Sin(2.0*math.Pi*ts*p.LFPFrequencyHz)

	if p.EnableSeizures {
		if !s.SeizureActive {
			if rng.Float64() < p.SeizureProbability*p.StepMs/1000.0 {
				s.SeizureActive = true
				s.SeizureStartMs = s.TimeMs
			}
		} else {
			elapsed := s.TimeMs - s.SeizureStartMs
			if elapsed < p.SeizureDurationMs {
				v += p.SeizureAmplitudeUV * math.Sin(2.0*math.Pi*p.SeizureFrequencyHz*elapsed/1000.0)
			} else {
				s.SeizureActive = false
				s.SeizureStartMs = 0
			}
		}
	}

	s.TimeMs += p.StepMs

	return s, v
}

// Synthesizer generates a single channel of synthetic neural signal.
type Synthesizer struct {
	params SynthParams
	state  SynthState
	rng    *rand.Rand
}

// NewSynthesizer creates a synthesizer drawing its parameters and all
// subsequent randomness from rng. The synthesizer takes ownership of rng.
func NewSynthesizer(sampleRate float64, opts SynthOptions, rng *rand.Rand) (*Synthesizer, error) {
	params, err := NewSynthParams(sampleRate, opts, rng)
	if err != nil {
		return nil, err
	}

	return &Synthesizer{params: params, rng: rng}, nil
}

// NextSample returns the next sample in µV and advances time by one step.
func (s *Synthesizer) NextSample() float64 {
	var v float64
	s.state, v = Step(&s.params, s.state, s.rng)
	return v
}

// Reset returns to t=0 with no active spikes or seizure. Unit parameters
// are kept.
func (s *Synthesizer) Reset() {
	s.state = SynthState{}
}

// Params returns the synthesizer parameters.
func (s *Synthesizer) Params() SynthParams {
	return s.params
}

// State returns a copy of the current state.
func (s *Synthesizer) State() SynthState {
	return s.state
}

// gaussianNoise approximates a unit normal variate with the Irwin-Hall sum
// of uniform draws.
func gaussianNoise(rng *rand.Rand) float64 {
	var r float64
	for i := 0; i < gaussianDraws; i++ {
		r += uniform(rng, -1.0, 1.0)
	}
	return r * gaussianScaleFactor
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Exp(uniform(rng, math.Log(lo), math.Log(hi)))
}
