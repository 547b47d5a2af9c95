// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim

import (
	"fmt"
	"math"

	"github.com/OpenPSG/stim/schema"
)

// Unit is the physical unit of a stimulation waveform.
type Unit string

const (
	UnitAmp  Unit = "amp"
	UnitVolt Unit = "volt"
)

// Valid reports whether u is one of the supported stimulation units.
func (u Unit) Valid() bool {
	return u == UnitAmp || u == UnitVolt
}

// SeriesConfig describes a stimulation series to construct.
type SeriesConfig struct {
	Name         string           // Name of the series, required
	Data         *Waveform        // Waveform samples, (T,) or (T, C); optional
	Unit         Unit             // "amp" (default) or "volt"
	Electrodes   *ElectrodeRegion // Electrodes corresponding to each waveform
	Metadata     string           // JSON serialized run metadata; optional
	Timestamps   []float64        // Sample times in seconds, mutually exclusive with Rate
	StartingTime float64          // Time of the first sample in seconds when Rate is set
	Rate         float64          // Sampling rate in Hz, mutually exclusive with Timestamps
	Description  string
	Comments     string
	Conversion   float64 // Scalar to multiply data by to reach Unit, 1.0 if zero
	Resolution   float64 // Smallest meaningful difference in Unit, -1.0 (unknown) if zero
	ObjectID     string  // Generated when empty
}

// StimSeries is a time series of stimulation waveforms delivered through a region
// of the electrode table.
type StimSeries struct {
	Base
	Description string
	Comments    string
	Conversion  float64
	Resolution  float64

	data         *Waveform
	unit         Unit
	electrodes   *ElectrodeRegion
	metadata     string
	runs         RunMetadata
	timestamps   []float64
	startingTime float64
	rate         float64
}

// NewStimSeries validates cfg and returns the series. It checks, in order, the unit,
// the run metadata, the waveform count against the electrode region and the timing.
func NewStimSeries(cfg SeriesConfig) (*StimSeries, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("stimulation series must have a name")
	}

	unit := cfg.Unit
	if unit == "" {
		unit = UnitAmp
	}
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidUnit, unit)
	}

	var runs RunMetadata
	if cfg.Metadata != "" {
		var err error
		runs, err = ParseRunMetadata(cfg.Metadata)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Data != nil {
		if cfg.Data.Rank() == 0 {
			return nil, fmt.Errorf("%w: waveform has no dimensions", ErrRaggedData)
		}
		waveforms := cfg.Data.Channels()
		if waveforms != cfg.Electrodes.Len() {
			return nil, fmt.Errorf("%w: data passed contains %d waveforms but %d corresponding electrode pairs specified",
				ErrShapeMismatch, waveforms, cfg.Electrodes.Len())
		}
	}

	if err := checkTiming(cfg); err != nil {
		return nil, err
	}

	// An empty timestamp list still marks the series as irregularly sampled.
	var timestamps []float64
	if cfg.Timestamps != nil {
		timestamps = append(make([]float64, 0, len(cfg.Timestamps)), cfg.Timestamps...)
	}

	conversion := cfg.Conversion
	if conversion == 0 {
		conversion = 1.0
	}
	resolution := cfg.Resolution
	if resolution == 0 {
		resolution = -1.0
	}

	return &StimSeries{
		Base:         newBase(cfg.Name, cfg.ObjectID),
		Description:  cfg.Description,
		Comments:     cfg.Comments,
		Conversion:   conversion,
		Resolution:   resolution,
		data:         cfg.Data,
		unit:         unit,
		electrodes:   cfg.Electrodes,
		metadata:     cfg.Metadata,
		runs:         runs,
		timestamps:   timestamps,
		startingTime: cfg.StartingTime,
		rate:         cfg.Rate,
	}, nil
}

func checkTiming(cfg SeriesConfig) error {
	hasTimestamps := cfg.Timestamps != nil
	hasRate := cfg.Rate != 0

	if hasTimestamps && hasRate {
		return fmt.Errorf("%w: specify either timestamps or rate, not both", ErrInvalidTiming)
	}
	if hasRate && (cfg.Rate < 0 || math.IsNaN(cfg.Rate) || math.IsInf(cfg.Rate, 0)) {
		return fmt.Errorf("%w: rate must be positive, got %g", ErrInvalidTiming, cfg.Rate)
	}
	if cfg.Data != nil && !hasTimestamps && !hasRate {
		return fmt.Errorf("%w: data requires either timestamps or rate", ErrInvalidTiming)
	}
	if hasTimestamps {
		if cfg.Data != nil && len(cfg.Timestamps) != cfg.Data.Len() {
			return fmt.Errorf("%w: %d timestamps for %d samples", ErrInvalidTiming, len(cfg.Timestamps), cfg.Data.Len())
		}
		for i := 1; i < len(cfg.Timestamps); i++ {
			if cfg.Timestamps[i] < cfg.Timestamps[i-1] {
				return fmt.Errorf("%w: timestamps decrease at index %d", ErrInvalidTiming, i)
			}
		}
	}

	return nil
}

func (s *StimSeries) NeurodataType() string {
	return schema.TypeStimSeries
}

// Data returns the waveform samples, nil when the series has no data.
func (s *StimSeries) Data() *Waveform {
	return s.data
}

// Unit returns the physical unit of the waveform.
func (s *StimSeries) Unit() Unit {
	return s.unit
}

// Electrodes returns the electrode region the waveforms were delivered through.
func (s *StimSeries) Electrodes() *ElectrodeRegion {
	return s.electrodes
}

// Metadata returns the JSON serialized run metadata.
func (s *StimSeries) Metadata() string {
	return s.metadata
}

// Runs returns the parsed run metadata.
func (s *StimSeries) Runs() RunMetadata {
	return s.runs
}

// Timestamps returns the explicit sample times, nil for regularly sampled series.
func (s *StimSeries) Timestamps() []float64 {
	if s.timestamps == nil {
		return nil
	}
	return append(make([]float64, 0, len(s.timestamps)), s.timestamps...)
}

// StartingTime returns the time of the first sample of a regularly sampled series.
func (s *StimSeries) StartingTime() float64 {
	return s.startingTime
}

// Rate returns the sampling rate in Hz, 0 when the series uses timestamps.
func (s *StimSeries) Rate() float64 {
	return s.rate
}

// SampleTime returns the time in seconds of sample i.
func (s *StimSeries) SampleTime(i int) float64 {
	if s.timestamps != nil {
		return s.timestamps[i]
	}
	return s.startingTime + float64(i)/s.rate
}
