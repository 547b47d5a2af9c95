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

	"github.com/OpenPSG/stim/schema"
)

// ElectrodesName is the name of the electrode table of a recording.
const ElectrodesName = "electrodes"

// Electrode is a single row of the electrode table.
type Electrode struct {
	X         float64 // x coordinate, NaN if unknown
	Y         float64 // y coordinate, NaN if unknown
	Z         float64 // z coordinate, NaN if unknown
	Impedance float64 // Impedance in ohms, NaN if unknown
	Location  string  // Brain region
	Filtering string  // Description of hardware filtering
	Group     string  // Name of the electrode group
}

// ElectrodeTable lists every electrode of a recording.
type ElectrodeTable struct {
	Base
	rows []Electrode
}

// NewElectrodeTable returns an empty electrode table.
func NewElectrodeTable(objectID string) *ElectrodeTable {
	return &ElectrodeTable{Base: newBase(ElectrodesName, objectID)}
}

func (et *ElectrodeTable) NeurodataType() string {
	return schema.TypeDynamicTable
}

// AddElectrode appends an electrode and returns its row index.
func (et *ElectrodeTable) AddElectrode(e Electrode) int {
	et.rows = append(et.rows, e)
	return len(et.rows) - 1
}

// Len returns the number of electrodes.
func (et *ElectrodeTable) Len() int {
	return len(et.rows)
}

// Electrode returns the electrode at row index i.
func (et *ElectrodeTable) Electrode(i int) (Electrode, error) {
	if i < 0 || i >= len(et.rows) {
		return Electrode{}, fmt.Errorf("%w: electrode %d, table has %d rows", ErrIndexOutOfRange, i, len(et.rows))
	}
	return et.rows[i], nil
}

func (et *ElectrodeTable) checkIndices(indices []int) error {
	for _, i := range indices {
		if i < 0 || i >= len(et.rows) {
			return fmt.Errorf("%w: electrode %d, table has %d rows", ErrIndexOutOfRange, i, len(et.rows))
		}
	}
	return nil
}

// ElectrodeRegion is an ordered list of references into an electrode table,
// one per stimulation waveform.
type ElectrodeRegion struct {
	Description string

	table   *ElectrodeTable
	indices []int
}

// NewElectrodeRegion returns a region referencing the given rows of table.
func NewElectrodeRegion(table *ElectrodeTable, indices []int, description string) (*ElectrodeRegion, error) {
	if table == nil {
		return nil, fmt.Errorf("electrode region %q has no electrode table", description)
	}
	if err := table.checkIndices(indices); err != nil {
		return nil, err
	}

	return &ElectrodeRegion{
		Description: description,
		table:       table,
		indices:     append([]int(nil), indices...),
	}, nil
}

// Len returns the number of referenced electrodes. A nil region has length 0.
func (r *ElectrodeRegion) Len() int {
	if r == nil {
		return 0
	}
	return len(r.indices)
}

// Indices returns the referenced row indices.
func (r *ElectrodeRegion) Indices() []int {
	if r == nil {
		return nil
	}
	return append([]int(nil), r.indices...)
}

// Table returns the referenced electrode table.
func (r *ElectrodeRegion) Table() *ElectrodeTable {
	return r.table
}

// Electrodes resolves the region into electrode rows.
func (r *ElectrodeRegion) Electrodes() []Electrode {
	out := make([]Electrode, len(r.indices))
	for i, idx := range r.indices {
		out[i] = r.table.rows[idx]
	}
	return out
}
