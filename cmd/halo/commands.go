// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/OpenPSG/halo"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	inputPath  string
	edfPath    string
	rawPath    string
	hexPath    string
	svDir      string
	eventsDir  string
	crossCheck bool
	neoChannel int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Synthesize a recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if edfPath == "" && rawPath == "" && hexPath == "" && svDir == "" {
			return fmt.Errorf("at least one of --edf, --raw, --hex or --sv-dir is required")
		}

		logger, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		data, err := loadSamples(logger)
		if err != nil {
			return err
		}

		if edfPath != "" {
			if err := writeCaptureFile(edfPath, data); err != nil {
				return err
			}
			logger.Info("Wrote capture", slog.String("path", edfPath))
		}

		if rawPath != "" {
			f, err := os.Create(rawPath)
			if err != nil {
				return fmt.Errorf("error creating raw file: %w", err)
			}
			if err := halo.WriteRawCodes(f, data); err != nil {
				_ = f.Close()
				return fmt.Errorf("error writing raw file: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("Wrote raw codes", slog.String("path", rawPath), slog.Int("samples", len(data)))
		}

		if hexPath != "" {
			if err := writeHexFile(hexPath, data); err != nil {
				return err
			}
			logger.Info("Wrote hex dataset", slog.String("path", hexPath), slog.Int("chunks", cfg.ChunkCount()))
		}

		if svDir != "" {
			if err := writeChunkTasks(svDir, data); err != nil {
				return err
			}
			logger.Info("Wrote testbench tasks", slog.String("dir", svDir), slog.Int("chunks", cfg.ChunkCount()))
		}

		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Stream a recording through the datapath and report seizures",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		data, err := loadSamples(logger)
		if err != nil {
			return err
		}

		dev, err := halo.NewEmulator(halo.EmulatorOptions{Revision: cfg.Revision}, logger)
		if err != nil {
			return err
		}

		sess, err := halo.NewSession(dev, cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		res, err := sess.Run(ctx, data)
		if err != nil {
			return err
		}

		if eventsDir != "" {
			if err := halo.WriteEventLogs(eventsDir, res.RunID.String(), cfg.Revision, res.Events); err != nil {
				return err
			}
		}

		fmt.Printf("Run %s: sent %d chunks (%d bytes), received %d events (%d starts, %d ends)\n",
			res.RunID, res.ChunksSent, res.BytesSent, len(res.Events), res.Starts, res.Ends)
		printIntervals(res.Intervals)

		if crossCheck {
			ref := halo.ReferenceIntervals(data, cfg, logger)
			if halo.EqualIntervals(ref, res.Intervals) {
				fmt.Println("Software reference agrees with datapath")
			} else {
				fmt.Println("Software reference DISAGREES with datapath:")
				printIntervals(ref)
			}
		}

		return nil
	},
}

var neoCmd = &cobra.Command{
	Use:   "neo",
	Short: "Compute software NEO detections for a recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		data, err := loadSamples(logger)
		if err != nil {
			return err
		}

		for ch := 0; ch < cfg.Channels; ch++ {
			if neoChannel >= 0 && ch != neoChannel {
				continue
			}

			stats := halo.AnalyzeNEO(halo.ChannelSamples(data, cfg.SamplesPerChannel, ch), uint64(cfg.Threshold))
			fmt.Printf("Channel %d: %d samples with NEO > %d (%.2f%%)\n",
				ch, stats.Detections, cfg.Threshold, 100*float64(stats.Detections)/float64(stats.Samples))
			fmt.Printf("  Max NEO: %d\n  Mean NEO: %.0f\n  Std NEO: %.0f\n", stats.Max, stats.Mean, stats.Std)
			if stats.Detections > 0 {
				fmt.Printf("  First detection at: %d\n  Last detection at: %d\n", stats.First, stats.Last)
			}
			if stats.Detections > 1 {
				fmt.Printf("  Average gap between detections: %.1f\n  Max gap: %d\n", stats.MeanGap, stats.MaxGap)
			}
		}

		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the chunk encoding of a recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		data, err := loadSamples(logger)
		if err != nil {
			return err
		}

		chunks := halo.EncodeChunks(data, cfg.SamplesPerChannel, cfg.Channels, cfg.ChunkCount())
		if err := halo.VerifyChunks(data, cfg.SamplesPerChannel, cfg.Channels, chunks); err != nil {
			return err
		}

		fmt.Printf("Verified %d chunks of %d channels\n", len(chunks), cfg.Channels)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&inputPath, "input", "i", "", "read samples from an EDF capture instead of synthesizing")

	generateCmd.Flags().StringVar(&edfPath, "edf", "", "write the recording as an EDF capture")
	generateCmd.Flags().StringVar(&rawPath, "raw", "", "write the recording as raw little-endian codes")
	generateCmd.Flags().StringVar(&hexPath, "hex", "", "write the streamed chunks as a testbench hex dataset")
	generateCmd.Flags().StringVar(&svDir, "sv-dir", "", "write one SystemVerilog task file per chunk to this directory")
	generateCmd.Flags().IntVar(&cfg.Chunks, "chunks", cfg.Chunks, "chunks to export, 0 to cover all samples")

	f := runCmd.Flags()
	f.Var(&revisionValue{&cfg.Revision}, "revision", "event protocol revision (A or B)")
	f.IntVar(&cfg.Chunks, "chunks", cfg.Chunks, "chunks to send, 0 to cover all samples")
	f.Uint32Var(&cfg.WindowTimeout, "window-timeout", cfg.WindowTimeout, "window timeout in samples")
	f.Uint32Var(&cfg.TransitionCount, "transitions", cfg.TransitionCount, "threshold crossings needed to start a seizure")
	f.Uint64Var(&cfg.Timestamp, "timestamp", cfg.Timestamp, "initial datapath timestamp")
	f.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "size of the event read buffer in words")
	f.StringVar(&eventsDir, "events-dir", "", "write per-channel event logs to this directory")
	f.BoolVar(&crossCheck, "cross-check", false, "compare datapath seizures with the software reference")

	neoCmd.Flags().IntVar(&neoChannel, "channel", -1, "only analyse this channel")
}

// loadSamples reads the input capture if one was given, otherwise it
// synthesizes a recording from the configuration.
func loadSamples(logger *slog.Logger) ([]uint16, error) {
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("error opening input: %w", err)
		}
		defer f.Close()

		data, info, err := halo.ReadCapture(f)
		if err != nil {
			return nil, err
		}

		cfg.Channels = info.Channels
		cfg.SamplesPerChannel = info.SamplesPerChannel
		cfg.SampleRate = info.SampleRate
		logger.Info("Loaded capture",
			slog.String("path", inputPath),
			slog.String("recording", info.RecordingID),
			slog.Int("channels", info.Channels),
			slog.Int("samplesPerChannel", info.SamplesPerChannel))

		return data, cfg.Validate()
	}

	start := time.Now()
	data, err := halo.Generate(cfg.GenerateOptions())
	if err != nil {
		return nil, err
	}

	logger.Info("Generated synthetic data",
		slog.Int("channels", cfg.Channels),
		slog.Int("samplesPerChannel", cfg.SamplesPerChannel),
		slog.Float64("sampleRate", cfg.SampleRate),
		slog.Uint64("seed", cfg.Seed),
		slog.Duration("elapsed", time.Since(start)))

	return data, nil
}

func writeCaptureFile(path string, data []uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating capture: %w", err)
	}

	err = halo.WriteCapture(f, data, halo.CaptureInfo{
		Channels:          cfg.Channels,
		SamplesPerChannel: cfg.SamplesPerChannel,
		SampleRate:        cfg.SampleRate,
		RecordingID:       fmt.Sprintf("HALO synthetic %s seed=%d", uuid.NewString(), cfg.Seed),
		StartTime:         time.Now(),
	})
	if err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}

func writeHexFile(path string, data []uint16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating hex dataset: %w", err)
	}

	if err := halo.WriteHexDataset(f, data, cfg.SamplesPerChannel, cfg.Channels, cfg.ChunkCount()); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing hex dataset: %w", err)
	}

	return f.Close()
}

func writeChunkTasks(dir string, data []uint16) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating task directory: %w", err)
	}

	for c := 0; c < cfg.ChunkCount(); c++ {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("test_data_%03d.sv", c)))
		if err != nil {
			return fmt.Errorf("error creating task file: %w", err)
		}

		chunk := halo.EncodeChunk(data, cfg.SamplesPerChannel, cfg.Channels, c)
		if err := halo.WriteChunkTask(f, c, chunk); err != nil {
			_ = f.Close()
			return fmt.Errorf("error writing chunk %d task: %w", c, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	return nil
}

func printIntervals(intervals map[halo.Channel][]halo.SeizureInterval) {
	for _, ch := range halo.SortedChannels(intervals) {
		for _, si := range intervals[ch] {
			if si.Open() {
				fmt.Printf("  CH%02d start=%d end=ongoing\n", ch, si.Start)
				continue
			}
			fmt.Printf("  CH%02d start=%d end=%d\n", ch, si.Start, *si.End)
		}
	}
}
