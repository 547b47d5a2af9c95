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
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/edf"
)

func edfFile(t *testing.T) *os.File {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "stim.edf"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})
	return f
}

func biphasic(samples int, amplitude float64) []float64 {
	out := make([]float64, samples)
	for i := range out {
		switch i % 10 {
		case 0:
			out[i] = amplitude
		case 1:
			out[i] = -amplitude
		}
	}
	return out
}

func TestEDFRoundTrip(t *testing.T) {
	rec := newRecording(t, 3)
	pairs := newPairs(t, rec, 2)
	require.NoError(t, rec.SetBipolarPairs(pairs))

	electrodes, err := rec.CreateElectrodeRegion([]int{0, 2}, "stimulated electrodes")
	require.NoError(t, err)

	data, err := stim.NewWaveformFromChannels([][]float64{biphasic(2500, 1e-3), biphasic(2500, -5e-4)})
	require.NoError(t, err)

	series, err := stim.NewStimSeries(stim.SeriesConfig{
		Name:         "stim",
		Data:         data,
		Electrodes:   electrodes,
		Metadata:     `{"run1": {"amplitude": 0.001, "pulse_width": 0.0002, "frequency": 50}}`,
		StartingTime: 2.5,
		Rate:         1000,
	})
	require.NoError(t, err)
	require.NoError(t, rec.AddStimSeries(series))

	table := stim.NewStimTable(stim.TableConfig{Logger: zap.NewNop()})
	require.NoError(t, rec.AddStimTable(table))
	runs := []stim.Run{
		{StartTime: 2.5, StopTime: 3, Frequency: 50, Amplitude: 1e-3, PulseWidth: 2e-4, BipolarPair: 0},
		{StartTime: 3.25, StopTime: 4.75, Frequency: 130, Amplitude: 5e-4, PulseWidth: 6e-5, BipolarPair: 1},
	}
	for _, r := range runs {
		require.NoError(t, table.AddRun(r))
	}

	f := edfFile(t)
	require.NoError(t, stim.WriteEDF(f, series, table))

	t.Run("Header", func(t *testing.T) {
		_, err := f.Seek(0, io.SeekStart)
		require.NoError(t, err)

		er, err := edf.Open(f)
		require.NoError(t, err)

		hdr := er.Header()
		require.Equal(t, edf.ReservedContinuous, hdr.Reserved)
		require.Equal(t, "Startdate X X X test", hdr.RecordingID)
		require.Equal(t, 3, hdr.DataRecords)
		require.Equal(t, time.Second, hdr.DataRecordDuration)
		require.Len(t, hdr.Signals, 3)
		require.Equal(t, "STIM E0", hdr.Signals[0].Label)
		require.Equal(t, "STIM E2", hdr.Signals[1].Label)
		require.Equal(t, "mA", hdr.Signals[0].PhysicalDimension)
		require.Equal(t, 1000, hdr.Signals[0].SamplesPerRecord)
		require.True(t, hdr.Signals[2].IsAnnotation())
	})

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	es, err := stim.ReadEDF(f)
	require.NoError(t, err)

	require.Equal(t, "stim", es.Name)
	require.Equal(t, stim.UnitAmp, es.Unit)
	require.Equal(t, 1000.0, es.Rate)
	require.Equal(t, 2.5, es.StartingTime)
	require.Equal(t, []string{"STIM E0", "STIM E2"}, es.Labels)
	require.Equal(t, []int{2500, 2}, es.Data.Shape())
	require.InDeltaSlice(t, data.Values(), es.Data.Values(), 1e-7)
	require.Equal(t, stim.RunMetadata{"run1": {Amplitude: 0.001, PulseWidth: 0.0002, Frequency: 50}}, es.Metadata)
	require.Equal(t, runs, es.Runs)

	t.Run("StimSeries", func(t *testing.T) {
		s, err := es.StimSeries(electrodes)
		require.NoError(t, err)
		require.Equal(t, "stim", s.Name())
		require.Equal(t, 1000.0, s.Rate())
		require.Equal(t, []string{"run1"}, s.Runs().IDs())

		_, err = es.StimSeries(nil)
		require.ErrorIs(t, err, stim.ErrShapeMismatch)
	})

	t.Run("StimTable", func(t *testing.T) {
		imported, err := es.StimTable(stim.TableConfig{Name: "imported", BipolarPairs: pairs, Logger: zap.NewNop()})
		require.NoError(t, err)
		require.Equal(t, runs, imported.Runs())
		require.True(t, imported.Resolved())

		_, err = es.StimTable(stim.TableConfig{BipolarPairs: newPairs(t, rec, 1), Logger: zap.NewNop()})
		require.ErrorIs(t, err, stim.ErrIndexOutOfRange)
	})
}

func TestWriteEDFTimestamps(t *testing.T) {
	rec := newRecording(t, 1)

	series := func(timestamps []float64) *stim.StimSeries {
		s, err := stim.NewStimSeries(stim.SeriesConfig{
			Name:       "stim",
			Data:       stim.NewWaveform(make([]float64, len(timestamps))),
			Unit:       stim.UnitVolt,
			Electrodes: region(t, rec, 1),
			Timestamps: timestamps,
		})
		require.NoError(t, err)
		return s
	}

	t.Run("Regular", func(t *testing.T) {
		f := edfFile(t)
		require.NoError(t, stim.WriteEDF(f, series([]float64{0.5, 0.75, 1, 1.25}), nil))

		_, err := f.Seek(0, io.SeekStart)
		require.NoError(t, err)

		es, err := stim.ReadEDF(f)
		require.NoError(t, err)
		require.Equal(t, stim.UnitVolt, es.Unit)
		require.Equal(t, 4.0, es.Rate)
		require.Equal(t, 0.5, es.StartingTime)
		require.Equal(t, []int{4}, es.Data.Shape())
		require.Nil(t, es.Runs)
	})

	t.Run("Irregular", func(t *testing.T) {
		err := stim.WriteEDF(edfFile(t), series([]float64{0, 0.1, 0.3}), nil)
		require.ErrorIs(t, err, stim.ErrInvalidTiming)
	})

	t.Run("FractionalRate", func(t *testing.T) {
		err := stim.WriteEDF(edfFile(t), series([]float64{0, 0.4, 0.8}), nil)
		require.ErrorIs(t, err, stim.ErrInvalidTiming)
	})
}

func TestWriteEDFNoData(t *testing.T) {
	s, err := stim.NewStimSeries(stim.SeriesConfig{Name: "empty"})
	require.NoError(t, err)

	require.Error(t, stim.WriteEDF(edfFile(t), s, nil))
}

func TestReadEDFPlain(t *testing.T) {
	f := edfFile(t)

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		PatientID:          "X",
		RecordingID:        "bench",
		StartTime:          time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{{
			Label:             "STIM",
			PhysicalDimension: "uV",
			PhysicalMin:       -500,
			PhysicalMax:       500,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  4,
		}},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{100, -100, 0, 0}}))
	require.NoError(t, ew.WriteRecord([][]float64{{50, -50, 0, 0}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	es, err := stim.ReadEDF(f)
	require.NoError(t, err)
	require.Equal(t, "bench", es.Name)
	require.Equal(t, stim.UnitVolt, es.Unit)
	require.Equal(t, 4.0, es.Rate)
	require.Equal(t, []string{"STIM"}, es.Labels)
	require.InDeltaSlice(t, []float64{1e-4, -1e-4, 0, 0, 5e-5, -5e-5, 0, 0}, es.Data.Values(), 2e-8)
	require.Nil(t, es.Metadata)
}

func TestReadEDFUnknownRecordCount(t *testing.T) {
	f := edfFile(t)

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		RecordingID:        "unfinished",
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{{
			Label:             "STIM",
			PhysicalDimension: "uA",
			PhysicalMin:       -500,
			PhysicalMax:       500,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  4,
		}},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{100, -100, 0, 0}}))

	// Not closed, so the header still holds -1 data records.
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	_, err = stim.ReadEDF(f)
	require.ErrorContains(t, err, "unknown number of data records")
}

func TestReadEDFUnsupportedDimension(t *testing.T) {
	f := edfFile(t)

	ew, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals: []edf.Signal{{
			Label:             "TEMP",
			PhysicalDimension: "degC",
			PhysicalMin:       0,
			PhysicalMax:       50,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  1,
		}},
	})
	require.NoError(t, err)
	require.NoError(t, ew.WriteRecord([][]float64{{36.6}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	_, err = stim.ReadEDF(f)
	require.ErrorIs(t, err, stim.ErrInvalidUnit)
}
