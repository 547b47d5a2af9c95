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
	"slices"

	"go.uber.org/zap"

	"github.com/OpenPSG/stim/schema"
)

// StimTableName is the default name of a stimulation table.
const StimTableName = "stimulation"

// Columns of a stimulation table.
const (
	ColumnStartTime   = "start_time"
	ColumnStopTime    = "stop_time"
	ColumnFrequency   = "frequency"
	ColumnAmplitude   = "amplitude"
	ColumnPulseWidth  = "pulse_width"
	ColumnBipolarPair = "bipolar_pair"
)

var requiredColumns = []string{
	ColumnStartTime,
	ColumnStopTime,
	ColumnFrequency,
	ColumnAmplitude,
	ColumnPulseWidth,
	ColumnBipolarPair,
}

// Run is a single row of a stimulation table.
type Run struct {
	StartTime   float64 // Start of the run in seconds
	StopTime    float64 // End of the run in seconds
	Frequency   float64 // Pulse frequency in Hz
	Amplitude   float64 // Stimulation amplitude
	PulseWidth  float64 // Pulse width in seconds
	BipolarPair int     // Row index into the bipolar pair table
}

func (r Run) validate() error {
	for _, v := range []float64{r.StartTime, r.StopTime, r.Frequency, r.Amplitude, r.PulseWidth} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: run values must be finite", ErrInvalidParameter)
		}
	}
	if r.StopTime < r.StartTime {
		return fmt.Errorf("%w: stop_time %g is before start_time %g", ErrInvalidParameter, r.StopTime, r.StartTime)
	}
	if r.Frequency <= 0 {
		return fmt.Errorf("%w: frequency must be positive, got %g", ErrInvalidParameter, r.Frequency)
	}
	if r.PulseWidth <= 0 {
		return fmt.Errorf("%w: pulse_width must be positive, got %g", ErrInvalidParameter, r.PulseWidth)
	}
	if r.BipolarPair < 0 {
		return fmt.Errorf("%w: bipolar_pair must not be negative, got %d", ErrIndexOutOfRange, r.BipolarPair)
	}
	return nil
}

// TableConfig describes a stimulation table to construct.
type TableConfig struct {
	Name         string            // Defaults to "stimulation"
	Description  string            // Description of the stimulation protocol
	BipolarPairs *BipolarPairTable // Optional, otherwise resolved from an ancestor on first use
	Logger       *zap.Logger       // Defaults to the global zap logger
	ObjectID     string            // Generated when empty
}

// StimTable holds one row per stimulation run. Its bipolar_pair column references
// a shared bipolar pair table that may be attached after the table is created.
type StimTable struct {
	Base
	Description string

	logger *zap.Logger
	pairs  *BipolarPairTable
	runs   []Run
}

// NewStimTable returns an empty stimulation table.
func NewStimTable(cfg TableConfig) *StimTable {
	name := cfg.Name
	if name == "" {
		name = StimTableName
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &StimTable{
		Base:        newBase(name, cfg.ObjectID),
		Description: cfg.Description,
		logger:      logger.With(zap.String("table", name)),
		pairs:       cfg.BipolarPairs,
	}
}

func (t *StimTable) NeurodataType() string {
	return schema.TypeStimTable
}

// AddRun appends a run. If the bipolar pair table cannot be resolved yet the run is
// still appended and its reference stays unresolved.
func (t *StimTable) AddRun(r Run) error {
	if err := r.validate(); err != nil {
		return fmt.Errorf("run %d: %w", len(t.runs), err)
	}

	if pairs := t.resolve(); pairs != nil && r.BipolarPair >= pairs.Len() {
		return fmt.Errorf("run %d: %w: bipolar pair %d, table has %d rows",
			len(t.runs), ErrIndexOutOfRange, r.BipolarPair, pairs.Len())
	}

	t.runs = append(t.runs, r)
	return nil
}

// AddRow appends a run given as column values. Every required column must be
// present and numeric, unknown columns are rejected.
func (t *StimTable) AddRow(row map[string]any) error {
	values := make(map[string]float64, len(requiredColumns))
	for _, column := range requiredColumns {
		v, ok := row[column]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingColumn, column)
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("%w: column %q must be numeric, got %T", ErrInvalidParameter, column, v)
		}
		values[column] = f
	}

	var unknown []string
	for column := range row {
		if !slices.Contains(requiredColumns, column) {
			unknown = append(unknown, column)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("%w: %q", ErrUnknownColumn, unknown)
	}

	pair := values[ColumnBipolarPair]
	if pair != math.Trunc(pair) {
		return fmt.Errorf("%w: column %q must be an integer row index, got %g", ErrInvalidParameter, ColumnBipolarPair, pair)
	}

	return t.AddRun(Run{
		StartTime:   values[ColumnStartTime],
		StopTime:    values[ColumnStopTime],
		Frequency:   values[ColumnFrequency],
		Amplitude:   values[ColumnAmplitude],
		PulseWidth:  values[ColumnPulseWidth],
		BipolarPair: int(pair),
	})
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// resolve returns the bipolar pair table, looking it up on the ancestors of the
// table if it was not set explicitly. It logs a warning and returns nil when no
// table can be found.
func (t *StimTable) resolve() *BipolarPairTable {
	if t.pairs != nil {
		return t.pairs
	}

	pairs := findBipolarPairs(t)
	if pairs == nil {
		t.logger.Warn("Bipolar pair table not found, bipolar_pair column left unresolved",
			zap.Int("runs", len(t.runs)))
		return nil
	}

	if err := t.checkReferences(pairs); err != nil {
		t.logger.Warn("Bipolar pair table found on ancestor does not cover existing runs",
			zap.String("candidate", pairs.Name()), zap.Error(err))
		return nil
	}

	t.logger.Debug("Resolved bipolar pair table", zap.String("pairs", pairs.Name()))
	t.pairs = pairs
	return pairs
}

func (t *StimTable) checkReferences(pairs *BipolarPairTable) error {
	for i, r := range t.runs {
		if r.BipolarPair >= pairs.Len() {
			return fmt.Errorf("run %d: %w: bipolar pair %d, table has %d rows", i, ErrIndexOutOfRange, r.BipolarPair, pairs.Len())
		}
	}
	return nil
}

// SetBipolarPairs sets the bipolar pair table explicitly. Every existing run must
// reference a row of the new table.
func (t *StimTable) SetBipolarPairs(pairs *BipolarPairTable) error {
	if pairs == nil {
		return fmt.Errorf("bipolar pair table must not be nil")
	}
	if err := t.checkReferences(pairs); err != nil {
		return err
	}

	t.pairs = pairs
	return nil
}

// BipolarPairs returns the bipolar pair table, resolving it on first access.
// It returns nil, after logging a warning, when no table can be found.
func (t *StimTable) BipolarPairs() *BipolarPairTable {
	return t.resolve()
}

// Resolved reports whether the bipolar_pair column references a table, without
// attempting to resolve it.
func (t *StimTable) Resolved() bool {
	return t.pairs != nil
}

// Len returns the number of runs.
func (t *StimTable) Len() int {
	return len(t.runs)
}

// Run returns the run at row index i.
func (t *StimTable) Run(i int) (Run, error) {
	if i < 0 || i >= len(t.runs) {
		return Run{}, fmt.Errorf("%w: run %d, table has %d rows", ErrIndexOutOfRange, i, len(t.runs))
	}
	return t.runs[i], nil
}

// Runs returns a copy of every run.
func (t *StimTable) Runs() []Run {
	return append([]Run(nil), t.runs...)
}

// Pair returns the bipolar pair referenced by run i.
func (t *StimTable) Pair(i int) (BipolarPair, error) {
	r, err := t.Run(i)
	if err != nil {
		return BipolarPair{}, err
	}

	pairs := t.resolve()
	if pairs == nil {
		return BipolarPair{}, fmt.Errorf("%w: %q has no bipolar pair table", ErrUnresolvedReference, t.Name())
	}
	return pairs.Pair(r.BipolarPair)
}

// Column returns the values of a numeric column.
func (t *StimTable) Column(name string) ([]float64, error) {
	var get func(r Run) float64
	switch name {
	case ColumnStartTime:
		get = func(r Run) float64 { return r.StartTime }
	case ColumnStopTime:
		get = func(r Run) float64 { return r.StopTime }
	case ColumnFrequency:
		get = func(r Run) float64 { return r.Frequency }
	case ColumnAmplitude:
		get = func(r Run) float64 { return r.Amplitude }
	case ColumnPulseWidth:
		get = func(r Run) float64 { return r.PulseWidth }
	case ColumnBipolarPair:
		get = func(r Run) float64 { return float64(r.BipolarPair) }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}

	out := make([]float64, len(t.runs))
	for i, r := range t.runs {
		out[i] = get(r)
	}
	return out, nil
}
