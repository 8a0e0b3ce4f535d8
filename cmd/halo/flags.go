// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import "github.com/OpenPSG/halo"

// revisionValue adapts a halo.Revision to a pflag.Value.
type revisionValue struct {
	r *halo.Revision
}

func (v *revisionValue) String() string {
	if v.r == nil {
		return ""
	}
	return string(*v.r)
}

func (v *revisionValue) Set(s string) error {
	rev, err := halo.ParseRevision(s)
	if err != nil {
		return err
	}
	*v.r = rev
	return nil
}

func (v *revisionValue) Type() string {
	return "revision"
}

// overrideFlag copies the field bound to the named flag from src to dst.
func overrideFlag(dst, src *halo.Config, name string) {
	switch name {
	case "channels":
		dst.Channels = src.Channels
	case "samples":
		dst.SamplesPerChannel = src.SamplesPerChannel
	case "rate":
		dst.SampleRate = src.SampleRate
	case "seed":
		dst.Seed = src.Seed
	case "seizures":
		dst.EnableSeizures = src.EnableSeizures
	case "units":
		dst.Units = src.Units
	case "workers":
		dst.Workers = src.Workers
	case "threshold":
		dst.Threshold = src.Threshold
	case "revision":
		dst.Revision = src.Revision
	case "chunks":
		dst.Chunks = src.Chunks
	case "window-timeout":
		dst.WindowTimeout = src.WindowTimeout
	case "transitions":
		dst.TransitionCount = src.TransitionCount
	case "timestamp":
		dst.Timestamp = src.Timestamp
	case "max-events":
		dst.MaxEvents = src.MaxEvents
	}
}
