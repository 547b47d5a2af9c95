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

// BipolarSchemeName is the default name of the bipolar pair table.
const BipolarSchemeName = "bipolar_scheme"

// BipolarPair is one row of the bipolar pair table. Anodes and cathodes are
// row indices into the electrode table.
type BipolarPair struct {
	Anodes   []int
	Cathodes []int
}

// BipolarPairTable is the lookup table shared by the bipolar_pair column of stimulation tables.
type BipolarPairTable struct {
	Base
	Description string

	electrodes *ElectrodeTable
	pairs      []BipolarPair
}

// NewBipolarPairTable returns an empty pair table referencing electrodes.
// An empty name defaults to "bipolar_scheme".
func NewBipolarPairTable(name, description string, electrodes *ElectrodeTable, objectID string) (*BipolarPairTable, error) {
	if electrodes == nil {
		return nil, fmt.Errorf("bipolar pair table %q has no electrode table", name)
	}
	if name == "" {
		name = BipolarSchemeName
	}

	return &BipolarPairTable{
		Base:        newBase(name, objectID),
		Description: description,
		electrodes:  electrodes,
	}, nil
}

func (bt *BipolarPairTable) NeurodataType() string {
	return schema.TypeBipolarSchemeTable
}

// AddPair appends an electrode pairing and returns its row index.
func (bt *BipolarPairTable) AddPair(p BipolarPair) (int, error) {
	if len(p.Anodes) == 0 || len(p.Cathodes) == 0 {
		return 0, fmt.Errorf("bipolar pair needs at least one anode and one cathode")
	}
	if err := bt.electrodes.checkIndices(p.Anodes); err != nil {
		return 0, fmt.Errorf("anodes: %w", err)
	}
	if err := bt.electrodes.checkIndices(p.Cathodes); err != nil {
		return 0, fmt.Errorf("cathodes: %w", err)
	}

	bt.pairs = append(bt.pairs, BipolarPair{
		Anodes:   append([]int(nil), p.Anodes...),
		Cathodes: append([]int(nil), p.Cathodes...),
	})
	return len(bt.pairs) - 1, nil
}

// Len returns the number of pairs.
func (bt *BipolarPairTable) Len() int {
	return len(bt.pairs)
}

// Pair returns the pair at row index i.
func (bt *BipolarPairTable) Pair(i int) (BipolarPair, error) {
	if i < 0 || i >= len(bt.pairs) {
		return BipolarPair{}, fmt.Errorf("%w: bipolar pair %d, table has %d rows", ErrIndexOutOfRange, i, len(bt.pairs))
	}
	return bt.pairs[i], nil
}

// Electrodes returns the electrode table the pairs reference.
func (bt *BipolarPairTable) Electrodes() *ElectrodeTable {
	return bt.electrodes
}
