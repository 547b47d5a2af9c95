// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package schema

const (
	ElectricalStimNamespace = "ndx-electrical-stim"
	StimTableNamespace      = "ndx-stim-table"
	ExtensionVersion        = "0.1.0"
)

var (
	authors  = []string{"OpenPSG contributors"}
	optional = false
)

// Extension is a namespace together with the types it defines.
type Extension struct {
	Builder *NamespaceBuilder
	Types   []GroupSpec
}

// Export writes the namespace and extension files of e to dir.
func (e Extension) Export(dir string) (string, error) {
	return e.Builder.Export(dir, e.Types)
}

// Builtin returns every extension provided by this module.
func Builtin() []Extension {
	return []Extension{ElectricalStim(), StimTable()}
}

// ElectricalStim returns the extension defining StimSeries.
func ElectricalStim() Extension {
	b := NewNamespaceBuilder(ElectricalStimNamespace, "stores electrical stimulation waveforms", ExtensionVersion, authors, nil)
	b.IncludeType(TypeTimeSeries, NamespaceCore)
	b.IncludeType(TypeDynamicTableRegion, NamespaceHDMFCommon)

	stimSeries := GroupSpec{
		NeurodataTypeDef: TypeStimSeries,
		NeurodataTypeInc: TypeTimeSeries,
		Doc:              "An extension of TimeSeries to include stimulation waveforms used during electrode stimulation.",
		Datasets: []DatasetSpec{
			{
				Name:  "data",
				Doc:   "Stimulation waveforms, of shape (num_times,) for a single electrode pair or (num_times, num_electrodes).",
				DType: "numeric",
				Dims:  [][]string{{"num_times"}, {"num_times", "num_electrodes"}},
				Shape: [][]*int{{nil}, {nil, nil}},
				Attributes: []AttributeSpec{
					{
						Name:         "unit",
						Doc:          "Unit of the stimulation waveform, either 'amp' or 'volt'.",
						DType:        "text",
						DefaultValue: "amp",
						Required:     &optional,
					},
				},
			},
			{
				NeurodataTypeInc: TypeDynamicTableRegion,
				Name:             "electrodes",
				Doc:              "DynamicTableRegion pointer to the electrodes corresponding to the stimulation waveforms.",
			},
			{
				Name:     "metadata",
				Doc:      "JSON serialized metadata for creating the recorded stimulation waveform. Maps each run to its amplitude, pulse_width and frequency.",
				DType:    "text",
				Quantity: "?",
			},
		},
	}

	return Extension{Builder: b, Types: []GroupSpec{stimSeries}}
}

// StimTable returns the extension defining StimTable and BipolarSchemeTable.
func StimTable() Extension {
	b := NewNamespaceBuilder(StimTableNamespace, "stores electrical stimulation runs and their bipolar electrode pairs", ExtensionVersion, authors, nil)
	b.IncludeType(TypeTimeIntervals, NamespaceCore)
	b.IncludeType(TypeDynamicTable, NamespaceHDMFCommon)
	b.IncludeType(TypeDynamicTableRegion, NamespaceHDMFCommon)
	b.IncludeType(TypeVectorData, NamespaceHDMFCommon)
	b.IncludeType(TypeVectorIndex, NamespaceHDMFCommon)

	bipolarScheme := GroupSpec{
		NeurodataTypeDef: TypeBipolarSchemeTable,
		NeurodataTypeInc: TypeDynamicTable,
		DefaultName:      "bipolar_scheme",
		Doc:              "Table of bipolar electrode pairs, each row references one or more anodes and cathodes of the electrode table.",
		Datasets: []DatasetSpec{
			{NeurodataTypeInc: TypeDynamicTableRegion, Name: "anodes", Doc: "References to the anode electrodes."},
			{NeurodataTypeInc: TypeVectorIndex, Name: "anodes_index", Doc: "Index into anodes."},
			{NeurodataTypeInc: TypeDynamicTableRegion, Name: "cathodes", Doc: "References to the cathode electrodes."},
			{NeurodataTypeInc: TypeVectorIndex, Name: "cathodes_index", Doc: "Index into cathodes."},
		},
	}

	stimTable := GroupSpec{
		NeurodataTypeDef: TypeStimTable,
		NeurodataTypeInc: TypeTimeIntervals,
		DefaultName:      "stimulation",
		Doc:              "Table with one row per stimulation run.",
		Datasets: []DatasetSpec{
			{NeurodataTypeInc: TypeVectorData, Name: "frequency", Doc: "Stimulation frequency in Hz.", DType: "float32"},
			{NeurodataTypeInc: TypeVectorData, Name: "amplitude", Doc: "Stimulation amplitude.", DType: "float32"},
			{NeurodataTypeInc: TypeVectorData, Name: "pulse_width", Doc: "Stimulation pulse width in seconds.", DType: "float32"},
			{NeurodataTypeInc: TypeDynamicTableRegion, Name: "bipolar_pair", Doc: "Reference to the BipolarSchemeTable row the run was delivered through."},
		},
	}

	return Extension{Builder: b, Types: []GroupSpec{bipolarScheme, stimTable}}
}
