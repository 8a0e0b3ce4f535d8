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
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters of a detection run.
type Config struct {
	Channels          int      `yaml:"channels"`          // Number of channels streamed
	SamplesPerChannel int      `yaml:"samplesPerChannel"` // Samples generated per channel
	SampleRate        float64  `yaml:"sampleRate"`        // Sampling rate (Hz)
	Chunks            int      `yaml:"chunks"`            // Chunks sent, 0 to cover all samples
	EnableSeizures    bool     `yaml:"enableSeizures"`    // Generate seizure bursts
	Units             int      `yaml:"units"`             // Spiking units per channel
	Seed              uint64   `yaml:"seed"`              // Random seed
	Workers           int      `yaml:"workers"`           // Parallel channel generation
	Revision          Revision `yaml:"revision"`          // Output event protocol revision
	Threshold         uint32   `yaml:"threshold"`         // NEO detection threshold
	WindowTimeout     uint32   `yaml:"windowTimeout"`     // Window timeout in samples
	TransitionCount   uint32   `yaml:"transitionCount"`   // Detections needed to declare a boundary
	Timestamp         uint64   `yaml:"timestamp"`         // Initial datapath timestamp, 0 to derive one
	MaxEvents         int      `yaml:"maxEvents"`         // Size of the event read buffer in words
}

// DefaultConfig returns the configuration used by the bench tests: one
// minute of 32 channel data at 1 kHz sent as 450 chunks.
func DefaultConfig() Config {
	return Config{
		Channels:          NumChannels,
		SamplesPerChannel: 60000,
		SampleRate:        DefaultSampleRate,
		Chunks:            450,
		EnableSeizures:    true,
		Units:             2,
		Revision:          RevisionB,
		Threshold:         DefaultThreshold,
		WindowTimeout:     200,
		TransitionCount:   10,
		MaxEvents:         10000,
	}
}

// LoadConfig reads a YAML configuration file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("error opening config: %w", err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig decodes and validates a YAML configuration.
func ParseConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration before any device I/O takes place.
func (c *Config) Validate() error {
	if err := c.GenerateOptions().Validate(); err != nil {
		return err
	}
	if err := c.Revision.Validate(); err != nil {
		return err
	}
	if c.Chunks < 0 {
		return fmt.Errorf("%w: chunk count must not be negative, got %d", ErrInvalidConfig, c.Chunks)
	}
	if c.TransitionCount == 0 {
		return fmt.Errorf("%w: transition count must be at least 1", ErrInvalidConfig)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("%w: max events must be positive, got %d", ErrInvalidConfig, c.MaxEvents)
	}
	return nil
}

// GenerateOptions returns the signal generation options of the run.
func (c *Config) GenerateOptions() GenerateOptions {
	return GenerateOptions{
		Channels:          c.Channels,
		SamplesPerChannel: c.SamplesPerChannel,
		SampleRate:        c.SampleRate,
		EnableSeizures:    c.EnableSeizures,
		Units:             c.Units,
		Seed:              c.Seed,
		Workers:           c.Workers,
	}
}

// ChunkCount returns the number of chunks sent in the run.
func (c *Config) ChunkCount() int {
	if c.Chunks > 0 {
		return c.Chunks
	}
	return ChunkCount(c.SamplesPerChannel)
}

// ResolveTimestamp fills in the initial datapath timestamp when none is
// configured: the seed of a seeded run, otherwise 64 random bits.
func (c *Config) ResolveTimestamp() {
	if c.Timestamp != 0 {
		return
	}
	if c.Seed != 0 {
		c.Timestamp = c.Seed
		return
	}
	c.Timestamp = rand.Uint64()
}
