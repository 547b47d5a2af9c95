// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/OpenPSG/stim/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	f := createFile(t)

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate X X X X",
		StartTime:          time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		DataRecordDuration: 500 * time.Millisecond,
		Signals: []edf.Signal{
			{Label: "STIM 0", PhysicalDimension: "mA", PhysicalMin: -2, PhysicalMax: 2, DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 4},
			{Label: "STIM 1", PhysicalDimension: "mA", PhysicalMin: -4, PhysicalMax: 4, DigitalMin: -32768, DigitalMax: 32767, SamplesPerRecord: 4},
		},
	}

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)

	require.NoError(t, ew.WriteRecord([][]float64{{0, 0.5, 1, 1.5}, {0, -1, -2, -3}}))
	require.NoError(t, ew.WriteRecord([][]float64{{-0.5, -1, -1.5, -2}, {1, 2, 3, 4}}))
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)

	got := er.Header()
	assert.Equal(t, hdr.StartTime, got.StartTime)
	assert.Equal(t, "X X X X", got.PatientID)
	assert.Equal(t, 500*time.Millisecond, got.DataRecordDuration)
	assert.Equal(t, 2, got.DataRecords)
	assert.Equal(t, 256*3, got.HeaderBytes)
	require.Len(t, got.Signals, 2)
	assert.Equal(t, "STIM 1", got.Signals[1].Label)
	assert.Equal(t, "mA", got.Signals[1].PhysicalDimension)
	assert.InDelta(t, 4.0, got.Signals[1].PhysicalMax, 1e-9)

	// Read the second signal in chunks that straddle record boundaries.
	sr, err := er.Signal(1)
	require.NoError(t, err)

	samples := make([]float64, 3)
	n, err := sr.Read(samples)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.InDeltaSlice(t, []float64{0, -1, -2}, samples, 0.001)

	n, err = sr.Read(samples)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.InDeltaSlice(t, []float64{-3, 1, 2}, samples, 0.001)

	n, err = sr.Read(samples)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 2, n)
	assert.InDeltaSlice(t, []float64{3, 4}, samples[:n], 0.001)

	sr, err = er.Signal(0)
	require.NoError(t, err)

	all := make([]float64, 8)
	n, err = sr.Read(all)
	require.NoError(t, err)
	require.Equal(t, 8, n)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 1.5, -0.5, -1, -1.5, -2}, all, 0.001)

	// A plain EDF file has no annotations.
	annotations, err := er.Annotations()
	require.NoError(t, err)
	assert.Empty(t, annotations)
}

func TestReaderErrors(t *testing.T) {
	_, err := edf.Open(bytes.NewReader([]byte("0       short")))
	require.Error(t, err)

	f := createFile(t)
	ew, err := edf.Create(f, stimHeader(0))
	require.NoError(t, err)
	require.NoError(t, ew.Close())

	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	er, err := edf.Open(f)
	require.NoError(t, err)

	_, err = er.Signal(-1)
	require.Error(t, err)
	_, err = er.Signal(1)
	require.Error(t, err)

	// No data records were written.
	sr, err := er.Signal(0)
	require.NoError(t, err)
	_, err = sr.Read(make([]float64, 1))
	require.Equal(t, io.EOF, err)
}
