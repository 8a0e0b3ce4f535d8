// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// halo generates synthetic neural recordings, streams them through the
// seizure detection datapath and reports the detected seizures.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/OpenPSG/halo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	configPath string
	logPath    string
	debug      bool
	cfg        = halo.DefaultConfig()
)

var rootCmd = &cobra.Command{
	Use:   "halo",
	Short: "Synthetic neural data and seizure detection datapath tools",
	Long: `halo synthesizes multi-channel neural recordings, streams them through the
seizure detection datapath as channel tagged chunks and decodes the returned
detection events into per-channel seizure intervals.

Commands:
  generate   Synthesize a recording and save it as EDF and/or raw codes
  run        Stream a recording through the datapath and report seizures
  neo        Compute software NEO detections for a recording
  verify     Check the chunk encoding of a recording`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logPath, "log", "", "log file (overwritten each run)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")

	pf.IntVar(&cfg.Channels, "channels", cfg.Channels, "number of channels")
	pf.IntVarP(&cfg.SamplesPerChannel, "samples", "n", cfg.SamplesPerChannel, "samples per channel")
	pf.Float64Var(&cfg.SampleRate, "rate", cfg.SampleRate, "sample rate in Hz")
	pf.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	pf.BoolVar(&cfg.EnableSeizures, "seizures", cfg.EnableSeizures, "generate seizure bursts")
	pf.IntVar(&cfg.Units, "units", cfg.Units, "spiking units per channel")
	pf.IntVar(&cfg.Workers, "workers", cfg.Workers, "channels generated in parallel")
	pf.Uint32Var(&cfg.Threshold, "threshold", cfg.Threshold, "NEO detection threshold")

	rootCmd.AddCommand(generateCmd, runCmd, neoCmd, verifyCmd)
}

// loadConfig applies the configuration file, then any flags set explicitly
// on the command line.
func loadConfig(cmd *cobra.Command) error {
	if configPath != "" {
		fileCfg, err := halo.LoadConfig(configPath)
		if err != nil {
			return err
		}

		flags := cfg
		cfg = fileCfg
		cmd.Flags().Visit(func(f *pflag.Flag) {
			overrideFlag(&cfg, &flags, f.Name)
		})
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	cfg.ResolveTimestamp()
	return nil
}

// newLogger builds a text logger writing to stderr and, if set, the log file.
func newLogger() (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
