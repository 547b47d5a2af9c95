// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/schema"
)

func run(pair int) stim.Run {
	return stim.Run{StartTime: 1, StopTime: 2, Frequency: 50, Amplitude: 1.5, PulseWidth: 2e-4, BipolarPair: pair}
}

func row(pair any) map[string]any {
	return map[string]any{
		stim.ColumnStartTime:   1.0,
		stim.ColumnStopTime:    2.0,
		stim.ColumnFrequency:   50,
		stim.ColumnAmplitude:   1.5,
		stim.ColumnPulseWidth:  2e-4,
		stim.ColumnBipolarPair: pair,
	}
}

func observedTable(level zapcore.Level) (*stim.StimTable, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return stim.NewStimTable(stim.TableConfig{Logger: zap.New(core)}), logs
}

func TestStimTableAddRun(t *testing.T) {
	rec := newRecording(t, 3)
	require.NoError(t, rec.SetBipolarPairs(newPairs(t, rec, 2)))

	table := stim.NewStimTable(stim.TableConfig{Description: "mapping", Logger: zap.NewNop()})
	require.Equal(t, schema.TypeStimTable, table.NeurodataType())
	require.NoError(t, rec.AddStimTable(table))

	require.NoError(t, table.AddRun(run(1)))
	require.Equal(t, 1, table.Len())
	require.True(t, table.Resolved())

	require.NoError(t, table.AddRow(row(0)))
	require.Equal(t, 2, table.Len())

	r, err := table.Run(1)
	require.NoError(t, err)
	require.Equal(t, run(0), r)

	p, err := table.Pair(0)
	require.NoError(t, err)
	require.Equal(t, []int{1}, p.Anodes)
	require.Equal(t, []int{2}, p.Cathodes)

	err = table.AddRun(run(2))
	require.ErrorIs(t, err, stim.ErrIndexOutOfRange)
	require.Equal(t, 2, table.Len())

	_, err = table.Run(2)
	require.ErrorIs(t, err, stim.ErrIndexOutOfRange)
}

func TestStimTableExplicitPairs(t *testing.T) {
	rec := newRecording(t, 3)
	pairs := newPairs(t, rec, 1)

	table := stim.NewStimTable(stim.TableConfig{BipolarPairs: pairs, Logger: zap.NewNop()})
	require.True(t, table.Resolved())
	require.Equal(t, pairs, table.BipolarPairs())

	require.NoError(t, table.AddRun(run(0)))
	require.ErrorIs(t, table.AddRun(run(1)), stim.ErrIndexOutOfRange)
}

func TestStimTableUnresolved(t *testing.T) {
	table, logs := observedTable(zapcore.WarnLevel)

	require.NoError(t, table.AddRun(run(3)))
	require.Equal(t, 1, table.Len())
	require.False(t, table.Resolved())

	warnings := logs.FilterMessageSnippet("not found").All()
	require.NotEmpty(t, warnings)
	require.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	require.Equal(t, stim.StimTableName, warnings[0].ContextMap()["table"])

	_, err := table.Pair(0)
	require.ErrorIs(t, err, stim.ErrUnresolvedReference)
	require.Nil(t, table.BipolarPairs())
}

func TestStimTableResolveFromAncestor(t *testing.T) {
	rec := newRecording(t, 5)
	table, logs := observedTable(zapcore.DebugLevel)
	require.NoError(t, rec.AddStimTable(table))

	require.NoError(t, table.AddRun(run(3)))
	require.False(t, table.Resolved())

	// Too few pairs to cover the existing run, the table stays unresolved.
	small := newPairs(t, rec, 2)
	require.NoError(t, rec.SetBipolarPairs(small))
	require.Nil(t, table.BipolarPairs())
	require.False(t, table.Resolved())
	require.NotEmpty(t, logs.FilterMessageSnippet("does not cover").All())

	// An explicit table covering every run resolves it.
	require.NoError(t, table.SetBipolarPairs(newPairs(t, rec, 4)))
	require.True(t, table.Resolved())

	p, err := table.Pair(0)
	require.NoError(t, err)
	require.Equal(t, []int{3}, p.Anodes)
}

func TestStimTableResolveAfterAttach(t *testing.T) {
	rec := newRecording(t, 3)
	table, logs := observedTable(zapcore.DebugLevel)

	require.NoError(t, table.AddRun(run(1)))
	require.False(t, table.Resolved())

	require.NoError(t, rec.AddStimTable(table))
	require.NoError(t, rec.SetBipolarPairs(newPairs(t, rec, 2)))

	require.Equal(t, rec.BipolarPairs(), table.BipolarPairs())
	require.True(t, table.Resolved())
	require.NotEmpty(t, logs.FilterMessage("Resolved bipolar pair table").All())
}

func TestStimTableSetBipolarPairs(t *testing.T) {
	rec := newRecording(t, 3)
	table := stim.NewStimTable(stim.TableConfig{Logger: zap.NewNop()})
	require.NoError(t, table.AddRun(run(1)))

	require.Error(t, table.SetBipolarPairs(nil))
	require.ErrorIs(t, table.SetBipolarPairs(newPairs(t, rec, 1)), stim.ErrIndexOutOfRange)
	require.False(t, table.Resolved())
}

func TestStimTableAddRowErrors(t *testing.T) {
	table := stim.NewStimTable(stim.TableConfig{Logger: zap.NewNop()})

	missing := row(0)
	delete(missing, stim.ColumnFrequency)
	require.ErrorIs(t, table.AddRow(missing), stim.ErrMissingColumn)

	unknown := row(0)
	unknown["location"] = "cortex"
	require.ErrorIs(t, table.AddRow(unknown), stim.ErrUnknownColumn)

	require.ErrorIs(t, table.AddRow(row("zero")), stim.ErrInvalidParameter)
	require.ErrorIs(t, table.AddRow(row(1.5)), stim.ErrInvalidParameter)
	require.ErrorIs(t, table.AddRow(row(-1)), stim.ErrIndexOutOfRange)

	require.Zero(t, table.Len())
}

func TestStimTableAddRunErrors(t *testing.T) {
	table := stim.NewStimTable(stim.TableConfig{Logger: zap.NewNop()})

	tests := map[string]func(r *stim.Run){
		"StopBeforeStart": func(r *stim.Run) { r.StopTime = 0 },
		"ZeroFrequency":   func(r *stim.Run) { r.Frequency = 0 },
		"ZeroPulseWidth":  func(r *stim.Run) { r.PulseWidth = 0 },
		"NaNAmplitude":    func(r *stim.Run) { r.Amplitude = math.NaN() },
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			r := run(0)
			modify(&r)
			require.Error(t, table.AddRun(r))
		})
	}
	require.Zero(t, table.Len())
}

func TestStimTableColumn(t *testing.T) {
	table := stim.NewStimTable(stim.TableConfig{Logger: zap.NewNop()})
	require.NoError(t, table.AddRun(run(0)))
	require.NoError(t, table.AddRun(run(2)))

	pairs, err := table.Column(stim.ColumnBipolarPair)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 2}, pairs)

	freq, err := table.Column(stim.ColumnFrequency)
	require.NoError(t, err)
	require.Equal(t, []float64{50, 50}, freq)

	_, err = table.Column("location")
	require.ErrorIs(t, err, stim.ErrUnknownColumn)
}
