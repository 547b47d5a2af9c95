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
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/OpenPSG/stim/schema"
)

// RecordingConfig describes a recording to construct.
type RecordingConfig struct {
	Identifier         string    // Unique identifier of the recording, required
	SessionDescription string    // Description of the session, required
	SessionStartTime   time.Time // Start of the session
	Logger             *zap.Logger
	ObjectID           string // Generated when empty
	ElectrodesObjectID string // Object id of the electrode table, generated when empty
}

// Recording is the root container of a recording session. It owns the electrode
// table, the shared bipolar pair table, stimulation series and stimulation tables.
type Recording struct {
	Base
	Identifier         string
	SessionDescription string
	SessionStartTime   time.Time

	logger     *zap.Logger
	electrodes *ElectrodeTable
	pairs      *BipolarPairTable
	series     map[string]*StimSeries
	tables     map[string]*StimTable
}

// NewRecording returns an empty recording with an empty electrode table.
func NewRecording(cfg RecordingConfig) (*Recording, error) {
	if cfg.Identifier == "" {
		return nil, fmt.Errorf("recording must have an identifier")
	}
	if cfg.SessionDescription == "" {
		return nil, fmt.Errorf("recording must have a session description")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}

	rec := &Recording{
		Base:               newBase("root", cfg.ObjectID),
		Identifier:         cfg.Identifier,
		SessionDescription: cfg.SessionDescription,
		SessionStartTime:   cfg.SessionStartTime,
		logger:             logger.With(zap.String("recording", cfg.Identifier)),
		electrodes:         NewElectrodeTable(cfg.ElectrodesObjectID),
		series:             make(map[string]*StimSeries),
		tables:             make(map[string]*StimTable),
	}
	if err := rec.electrodes.setParent(rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (rec *Recording) NeurodataType() string {
	return schema.TypeNWBFile
}

// Electrodes returns the electrode table of the recording.
func (rec *Recording) Electrodes() *ElectrodeTable {
	return rec.electrodes
}

// AddElectrode appends an electrode to the electrode table and returns its row index.
func (rec *Recording) AddElectrode(e Electrode) int {
	return rec.electrodes.AddElectrode(e)
}

// CreateElectrodeRegion returns a region of the electrode table of the recording.
func (rec *Recording) CreateElectrodeRegion(indices []int, description string) (*ElectrodeRegion, error) {
	return NewElectrodeRegion(rec.electrodes, indices, description)
}

// SetBipolarPairs attaches the shared bipolar pair table. Stimulation tables
// already attached resolve it on their next access.
func (rec *Recording) SetBipolarPairs(pairs *BipolarPairTable) error {
	if pairs == nil {
		return fmt.Errorf("bipolar pair table must not be nil")
	}
	if rec.pairs != nil {
		return fmt.Errorf("%w: recording already has bipolar pair table %q", ErrDuplicateName, rec.pairs.Name())
	}
	if pairs.Electrodes() != rec.electrodes {
		return fmt.Errorf("bipolar pair table %q references another electrode table", pairs.Name())
	}
	if err := pairs.setParent(rec); err != nil {
		return err
	}

	rec.pairs = pairs
	rec.logger.Debug("Attached bipolar pair table", zap.String("pairs", pairs.Name()), zap.Int("rows", pairs.Len()))
	return nil
}

// BipolarPairs returns the shared bipolar pair table, nil if none is attached.
func (rec *Recording) BipolarPairs() *BipolarPairTable {
	return rec.pairs
}

// AddStimSeries attaches a stimulation series.
func (rec *Recording) AddStimSeries(s *StimSeries) error {
	if _, ok := rec.series[s.Name()]; ok {
		return fmt.Errorf("%w: stimulation series %q", ErrDuplicateName, s.Name())
	}
	if region := s.Electrodes(); region != nil && region.Table() != rec.electrodes {
		return fmt.Errorf("stimulation series %q references another electrode table", s.Name())
	}
	if err := s.setParent(rec); err != nil {
		return err
	}

	rec.series[s.Name()] = s
	rec.logger.Debug("Added stimulation series", zap.String("series", s.Name()), zap.String("unit", string(s.Unit())))
	return nil
}

// StimSeries returns the stimulation series with the given name.
func (rec *Recording) StimSeries(name string) (*StimSeries, error) {
	s, ok := rec.series[name]
	if !ok {
		return nil, fmt.Errorf("%w: stimulation series %q", ErrNotFound, name)
	}
	return s, nil
}

// StimSeriesNames returns the names of every stimulation series in sorted order.
func (rec *Recording) StimSeriesNames() []string {
	return sortedKeys(rec.series)
}

// AddStimTable attaches a stimulation table.
func (rec *Recording) AddStimTable(t *StimTable) error {
	if _, ok := rec.tables[t.Name()]; ok {
		return fmt.Errorf("%w: stimulation table %q", ErrDuplicateName, t.Name())
	}
	if t.pairs != nil && t.pairs.Electrodes() != rec.electrodes {
		return fmt.Errorf("stimulation table %q references another electrode table", t.Name())
	}
	if err := t.setParent(rec); err != nil {
		return err
	}

	rec.tables[t.Name()] = t
	rec.logger.Debug("Added stimulation table", zap.String("table", t.Name()), zap.Int("runs", t.Len()))
	return nil
}

// StimTable returns the stimulation table with the given name.
func (rec *Recording) StimTable(name string) (*StimTable, error) {
	t, ok := rec.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: stimulation table %q", ErrNotFound, name)
	}
	return t, nil
}

// StimTableNames returns the names of every stimulation table in sorted order.
func (rec *Recording) StimTableNames() []string {
	return sortedKeys(rec.tables)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
