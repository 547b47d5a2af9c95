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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OpenPSG/stim"
)

func TestWaveform(t *testing.T) {
	t.Run("SingleChannel", func(t *testing.T) {
		w := stim.NewWaveform([]float64{0, -2, 3})
		require.Equal(t, []int{3}, w.Shape())
		require.Equal(t, 1, w.Rank())
		require.Equal(t, 3, w.Len())
		require.Equal(t, 1, w.Channels())
		require.Equal(t, 3.0, w.At(2, 0))
		require.Equal(t, -2.0, w.Min())
		require.Equal(t, 3.0, w.Max())
	})

	t.Run("MultiChannel", func(t *testing.T) {
		w, err := stim.NewMultiChannelWaveform([][]float64{{1, 2}, {3, 4}, {5, 6}})
		require.NoError(t, err)
		require.Equal(t, []int{3, 2}, w.Shape())
		require.Equal(t, 2, w.Rank())
		require.Equal(t, 3, w.Len())
		require.Equal(t, 2, w.Channels())
		require.Equal(t, 4.0, w.At(1, 1))
		require.Equal(t, []float64{2, 4, 6}, w.Channel(1))
		require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, w.Values())
	})

	t.Run("FromChannels", func(t *testing.T) {
		w, err := stim.NewWaveformFromChannels([][]float64{{1, 3, 5}, {2, 4, 6}})
		require.NoError(t, err)
		require.Equal(t, []int{3, 2}, w.Shape())
		require.Equal(t, []float64{1, 2, 3, 4, 5, 6}, w.Values())

		empty, err := stim.NewWaveformFromChannels([][]float64{{}, {}})
		require.NoError(t, err)
		require.Equal(t, []int{0, 2}, empty.Shape())
		require.Equal(t, 2, empty.Channels())
		require.Zero(t, empty.Min())
	})

	t.Run("FromShape", func(t *testing.T) {
		w, err := stim.NewWaveformFromShape([]int{2, 2}, []float64{1, 2, 3, 4})
		require.NoError(t, err)
		require.Equal(t, 3.0, w.At(1, 0))

		_, err = stim.NewWaveformFromShape([]int{2, 2}, []float64{1, 2, 3})
		require.ErrorIs(t, err, stim.ErrRaggedData)

		_, err = stim.NewWaveformFromShape([]int{1, 1, 1}, []float64{1})
		require.ErrorIs(t, err, stim.ErrRaggedData)

		_, err = stim.NewWaveformFromShape([]int{-1, -1}, []float64{1})
		require.ErrorIs(t, err, stim.ErrRaggedData)
		require.ErrorContains(t, err, "negative dimension")
	})

	t.Run("ZeroValue", func(t *testing.T) {
		var w stim.Waveform
		require.Zero(t, w.Rank())
		require.Zero(t, w.Len())
		require.Zero(t, w.Channels())
		require.Empty(t, w.Values())
	})

	t.Run("Ragged", func(t *testing.T) {
		_, err := stim.NewMultiChannelWaveform([][]float64{{1, 2}, {3}})
		require.ErrorIs(t, err, stim.ErrRaggedData)

		_, err = stim.NewWaveformFromChannels([][]float64{{1, 2}, {3}})
		require.ErrorIs(t, err, stim.ErrRaggedData)
	})

	t.Run("Copies", func(t *testing.T) {
		samples := []float64{1, 2}
		w := stim.NewWaveform(samples)
		samples[0] = 100
		w.Values()[1] = 100
		require.Equal(t, []float64{1, 2}, w.Values())
	})
}
