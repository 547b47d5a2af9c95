// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package schema describes the neurodata types of the stimulation extensions
// and reads and writes them as namespace and extension YAML files.
package schema

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Types defined or included by the stimulation extensions.
const (
	TypeNWBFile            = "NWBFile"
	TypeTimeSeries         = "TimeSeries"
	TypeTimeIntervals      = "TimeIntervals"
	TypeDynamicTable       = "DynamicTable"
	TypeDynamicTableRegion = "DynamicTableRegion"
	TypeVectorData         = "VectorData"
	TypeVectorIndex        = "VectorIndex"
	TypeStimSeries         = "StimSeries"
	TypeStimTable          = "StimTable"
	TypeBipolarSchemeTable = "BipolarSchemeTable"
)

// Namespaces the extensions build on.
const (
	NamespaceCore       = "core"
	NamespaceHDMFCommon = "hdmf-common"
)

// Namespace is a single entry of a namespace file.
type Namespace struct {
	Name     string      `yaml:"name"`
	Doc      string      `yaml:"doc"`
	Author   []string    `yaml:"author,omitempty"`
	Contact  []string    `yaml:"contact,omitempty"`
	Version  string      `yaml:"version"`
	FullName string      `yaml:"full_name,omitempty"`
	Schema   []SchemaRef `yaml:"schema"`
}

// SemVer parses the version of the namespace.
func (ns Namespace) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(ns.Version)
	if err != nil {
		return nil, fmt.Errorf("namespace %q: failed to parse version %q: %w", ns.Name, ns.Version, err)
	}
	return v, nil
}

// SchemaRef either includes types from another namespace or points at an extension source file.
type SchemaRef struct {
	Namespace      string   `yaml:"namespace,omitempty"`
	Source         string   `yaml:"source,omitempty"`
	NeurodataTypes []string `yaml:"neurodata_types,omitempty"`
}

// GroupSpec defines a group type.
type GroupSpec struct {
	NeurodataTypeDef string          `yaml:"neurodata_type_def,omitempty"`
	NeurodataTypeInc string          `yaml:"neurodata_type_inc,omitempty"`
	Name             string          `yaml:"name,omitempty"`
	DefaultName      string          `yaml:"default_name,omitempty"`
	Doc              string          `yaml:"doc"`
	Quantity         any             `yaml:"quantity,omitempty"`
	Attributes       []AttributeSpec `yaml:"attributes,omitempty"`
	Datasets         []DatasetSpec   `yaml:"datasets,omitempty"`
	Groups           []GroupSpec     `yaml:"groups,omitempty"`
}

// DatasetSpec defines a dataset inside a group.
type DatasetSpec struct {
	NeurodataTypeDef string          `yaml:"neurodata_type_def,omitempty"`
	NeurodataTypeInc string          `yaml:"neurodata_type_inc,omitempty"`
	Name             string          `yaml:"name,omitempty"`
	Doc              string          `yaml:"doc"`
	DType            string          `yaml:"dtype,omitempty"`
	Dims             [][]string      `yaml:"dims,omitempty"`
	Shape            [][]*int        `yaml:"shape,omitempty"`
	Quantity         any             `yaml:"quantity,omitempty"`
	Attributes       []AttributeSpec `yaml:"attributes,omitempty"`
}

// AttributeSpec defines an attribute of a group or dataset.
type AttributeSpec struct {
	Name         string `yaml:"name"`
	Doc          string `yaml:"doc"`
	DType        string `yaml:"dtype"`
	Value        any    `yaml:"value,omitempty"`
	DefaultValue any    `yaml:"default_value,omitempty"`
	Required     *bool  `yaml:"required,omitempty"`
}

// namespaceFile is the top level of a namespace YAML file.
type namespaceFile struct {
	Namespaces []Namespace `yaml:"namespaces"`
}

// extensionsFile is the top level of an extension source YAML file.
type extensionsFile struct {
	Groups []GroupSpec `yaml:"groups"`
}

// TypeName returns the name of the type the group defines, or includes when it defines none.
func (g GroupSpec) TypeName() string {
	if g.NeurodataTypeDef != "" {
		return g.NeurodataTypeDef
	}
	return g.NeurodataTypeInc
}

// Dataset returns the dataset with the given name.
func (g GroupSpec) Dataset(name string) (DatasetSpec, bool) {
	for _, d := range g.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetSpec{}, false
}

// Attribute returns the attribute with the given name.
func (g GroupSpec) Attribute(name string) (AttributeSpec, bool) {
	for _, a := range g.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeSpec{}, false
}
