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
)

// Waveform holds stimulation samples, either a single channel of shape (T,)
// or several channels of shape (T, C) stored row-major.
type Waveform struct {
	shape  []int
	values []float64
}

// NewWaveform returns a single channel waveform.
func NewWaveform(samples []float64) *Waveform {
	return &Waveform{
		shape:  []int{len(samples)},
		values: append([]float64(nil), samples...),
	}
}

// NewMultiChannelWaveform returns a waveform of shape (len(rows), len(rows[0])).
// Each row holds one time point across all channels.
func NewMultiChannelWaveform(rows [][]float64) (*Waveform, error) {
	channels := 0
	if len(rows) > 0 {
		channels = len(rows[0])
	}

	values := make([]float64, 0, len(rows)*channels)
	for t, row := range rows {
		if len(row) != channels {
			return nil, fmt.Errorf("%w: row %d has %d channels, expected %d", ErrRaggedData, t, len(row), channels)
		}
		values = append(values, row...)
	}

	return &Waveform{
		shape:  []int{len(rows), channels},
		values: values,
	}, nil
}

// NewWaveformFromChannels builds a (T, C) waveform from per-channel sample slices.
func NewWaveformFromChannels(channels [][]float64) (*Waveform, error) {
	if len(channels) == 0 {
		return &Waveform{shape: []int{0, 0}}, nil
	}

	samples := len(channels[0])
	if samples == 0 {
		for c, channel := range channels {
			if len(channel) != 0 {
				return nil, fmt.Errorf("%w: channel %d has %d samples, expected 0", ErrRaggedData, c, len(channel))
			}
		}
		return &Waveform{shape: []int{0, len(channels)}}, nil
	}

	rows := make([][]float64, samples)
	for t := range rows {
		rows[t] = make([]float64, len(channels))
	}
	for c, channel := range channels {
		if len(channel) != samples {
			return nil, fmt.Errorf("%w: channel %d has %d samples, expected %d", ErrRaggedData, c, len(channel), samples)
		}
		for t, v := range channel {
			rows[t][c] = v
		}
	}

	return NewMultiChannelWaveform(rows)
}

// Shape returns the dimensions of the waveform.
func (w *Waveform) Shape() []int {
	return append([]int(nil), w.shape...)
}

// Rank returns the number of dimensions, 1 or 2.
func (w *Waveform) Rank() int {
	return len(w.shape)
}

// Len returns the number of time points.
func (w *Waveform) Len() int {
	if len(w.shape) == 0 {
		return 0
	}
	return w.shape[0]
}

// Channels returns the number of waveforms: 1 for single channel data,
// otherwise the size of the last axis.
func (w *Waveform) Channels() int {
	switch len(w.shape) {
	case 0:
		return 0
	case 1:
		return 1
	}
	return w.shape[len(w.shape)-1]
}

// At returns the sample of channel c at time point t.
func (w *Waveform) At(t, c int) float64 {
	return w.values[t*w.Channels()+c]
}

// Channel returns a copy of the samples of channel c.
func (w *Waveform) Channel(c int) []float64 {
	out := make([]float64, w.Len())
	for t := range out {
		out[t] = w.At(t, c)
	}
	return out
}

// Values returns a copy of the samples in row-major order.
func (w *Waveform) Values() []float64 {
	return append([]float64(nil), w.values...)
}

// Min returns the smallest sample, or 0 for an empty waveform.
func (w *Waveform) Min() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := math.Inf(1)
	for _, v := range w.values {
		m = math.Min(m, v)
	}
	return m
}

// Max returns the largest sample, or 0 for an empty waveform.
func (w *Waveform) Max() float64 {
	if len(w.values) == 0 {
		return 0
	}
	m := math.Inf(-1)
	for _, v := range w.values {
		m = math.Max(m, v)
	}
	return m
}

// NewWaveformFromShape rebuilds a waveform from its shape and row-major values.
func NewWaveformFromShape(shape []int, values []float64) (*Waveform, error) {
	if len(shape) != 1 && len(shape) != 2 {
		return nil, fmt.Errorf("%w: waveform must have 1 or 2 dimensions, got %d", ErrRaggedData, len(shape))
	}

	size := 1
	for _, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative dimension in shape %v", ErrRaggedData, shape)
		}
		size *= d
	}
	if size != len(values) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrRaggedData, shape, size, len(values))
	}

	return &Waveform{shape: append([]int(nil), shape...), values: append([]float64(nil), values...)}, nil
}
