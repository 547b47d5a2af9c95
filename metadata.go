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
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Required stimulation parameters of every run.
const (
	ParamAmplitude  = "amplitude"
	ParamPulseWidth = "pulse_width"
	ParamFrequency  = "frequency"
)

var requiredParameters = []string{ParamAmplitude, ParamPulseWidth, ParamFrequency}

// RunParameters are the stimulation settings of a single run.
type RunParameters struct {
	Amplitude  float64        // Stimulation amplitude, in the unit of the series
	PulseWidth float64        // Pulse width in seconds
	Frequency  float64        // Pulse frequency in Hz
	Extra      map[string]any // Any additional keys of the run record
}

// RunMetadata maps a run identifier to its stimulation parameters.
type RunMetadata map[string]RunParameters

// ParseRunMetadata decodes JSON run metadata of the form
//
//	{"run1": {"amplitude": 1.5, "pulse_width": 0.0002, "frequency": 50}, ...}
//
// Every run must define amplitude, pulse_width and frequency as numbers.
func ParseRunMetadata(s string) (RunMetadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object of runs", ErrInvalidMetadata)
	}

	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	md := make(RunMetadata, len(raw))
	for _, id := range ids {
		var record map[string]any
		if err := json.Unmarshal(raw[id], &record); err != nil || record == nil {
			return nil, fmt.Errorf("%w: run %q is not a JSON object", ErrInvalidMetadata, id)
		}

		values := make(map[string]float64, len(requiredParameters))
		for _, key := range requiredParameters {
			v, ok := record[key]
			if !ok {
				return nil, fmt.Errorf("%w: must define stimulation %s for %s metadata", ErrMissingParameter, key, id)
			}
			f, ok := v.(float64)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("%w: stimulation %s for %s metadata must be a number, got %v", ErrInvalidParameter, key, id, v)
			}
			values[key] = f
			delete(record, key)
		}

		params := RunParameters{
			Amplitude:  values[ParamAmplitude],
			PulseWidth: values[ParamPulseWidth],
			Frequency:  values[ParamFrequency],
		}
		if len(record) > 0 {
			params.Extra = record
		}
		md[id] = params
	}

	return md, nil
}

// IDs returns the run identifiers in sorted order.
func (md RunMetadata) IDs() []string {
	ids := make([]string, 0, len(md))
	for id := range md {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Encode returns the JSON form of the metadata.
func (md RunMetadata) Encode() (string, error) {
	out := make(map[string]map[string]any, len(md))
	for id, params := range md {
		record := make(map[string]any, len(params.Extra)+len(requiredParameters))
		for k, v := range params.Extra {
			record[k] = v
		}
		record[ParamAmplitude] = params.Amplitude
		record[ParamPulseWidth] = params.PulseWidth
		record[ParamFrequency] = params.Frequency
		out[id] = record
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("error encoding run metadata: %w", err)
	}
	return string(b), nil
}

// String formats the parameters as space separated key=value pairs.
func (p RunParameters) String() string {
	return fmt.Sprintf("%s=%g %s=%g %s=%g", ParamAmplitude, p.Amplitude, ParamPulseWidth, p.PulseWidth, ParamFrequency, p.Frequency)
}
