// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package schema_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenPSG/stim/schema"
)

func TestExportLoad(t *testing.T) {
	dir := t.TempDir()

	for _, ext := range schema.Builtin() {
		t.Run(ext.Builder.Name(), func(t *testing.T) {
			path, err := ext.Export(dir)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, ext.Builder.Name()+".namespace.yaml"), path)
			assert.FileExists(t, filepath.Join(dir, ext.Builder.Name()+".extensions.yaml"))

			catalog, err := schema.Load(path)
			require.NoError(t, err)

			if diff := cmp.Diff(ext.Types, catalog.Types()); diff != "" {
				t.Errorf("types mismatch (-want +got):\n%s", diff)
			}

			ns, ok := catalog.Namespace(ext.Builder.Name())
			require.True(t, ok)
			if diff := cmp.Diff(ext.Builder.Namespace(), ns); diff != "" {
				t.Errorf("namespace mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestElectricalStim(t *testing.T) {
	path, err := schema.ElectricalStim().Export(t.TempDir())
	require.NoError(t, err)

	catalog, err := schema.Load(path)
	require.NoError(t, err)

	assert.Equal(t, schema.NamespaceCore, catalog.Includes[schema.TypeTimeSeries])
	assert.Equal(t, schema.NamespaceHDMFCommon, catalog.Includes[schema.TypeDynamicTableRegion])

	stimSeries, ok := catalog.Type(schema.TypeStimSeries)
	require.True(t, ok)
	assert.Equal(t, schema.TypeTimeSeries, stimSeries.NeurodataTypeInc)

	electrodes, ok := stimSeries.Dataset("electrodes")
	require.True(t, ok)
	assert.Equal(t, schema.TypeDynamicTableRegion, electrodes.NeurodataTypeInc)

	data, ok := stimSeries.Dataset("data")
	require.True(t, ok)
	require.Len(t, data.Shape, 2)
	assert.Len(t, data.Shape[1], 2)

	require.Len(t, data.Attributes, 1)
	unit := data.Attributes[0]
	assert.Equal(t, "unit", unit.Name)
	assert.Equal(t, "amp", unit.DefaultValue)

	_, ok = catalog.Type(schema.TypeStimTable)
	assert.False(t, ok)
}

func TestStimTable(t *testing.T) {
	path, err := schema.StimTable().Export(t.TempDir())
	require.NoError(t, err)

	catalog, err := schema.Load(path)
	require.NoError(t, err)

	var names []string
	for _, g := range catalog.Types() {
		names = append(names, g.TypeName())
	}
	assert.Equal(t, []string{schema.TypeBipolarSchemeTable, schema.TypeStimTable}, names)

	stimTable, ok := catalog.Type(schema.TypeStimTable)
	require.True(t, ok)
	for _, column := range []string{"frequency", "amplitude", "pulse_width", "bipolar_pair"} {
		_, ok := stimTable.Dataset(column)
		assert.True(t, ok, column)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := schema.Load(filepath.Join(dir, "missing.namespace.yaml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.namespace.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("namespaces: []\n"), 0o644))
	_, err = schema.Load(empty)
	require.Error(t, err)

	// A namespace whose source is missing.
	b := schema.NewNamespaceBuilder("ndx-broken", "broken", "0.0.1", nil, nil)
	path, err := b.Export(dir, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, b.SourceName())))
	_, err = schema.Load(path)
	require.Error(t, err)

	// The same type defined twice.
	dup := schema.NewNamespaceBuilder("ndx-dup", "duplicate", "0.0.1", nil, nil)
	group := schema.GroupSpec{NeurodataTypeDef: "Twice", NeurodataTypeInc: schema.TypeTimeSeries, Doc: "twice"}
	path, err = dup.Export(dir, []schema.GroupSpec{group, group})
	require.NoError(t, err)
	_, err = schema.Load(path)
	require.Error(t, err)
}

func TestNamespaceVersion(t *testing.T) {
	dir := t.TempDir()

	for _, ext := range schema.Builtin() {
		v, err := ext.Builder.Namespace().SemVer()
		require.NoError(t, err)
		assert.Equal(t, schema.ExtensionVersion, v.String())
	}

	b := schema.NewNamespaceBuilder("ndx-unversioned", "bad version", "first draft", nil, nil)
	_, err := b.Export(dir, nil)
	require.ErrorContains(t, err, "first draft")
	assert.NoFileExists(t, filepath.Join(dir, b.NamespaceFileName()))

	// A namespace file edited by hand to hold an invalid version.
	path, err := schema.NewNamespaceBuilder("ndx-edited", "edited", "0.1.0", nil, nil).Export(dir, nil)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), "0.1.0", "v-next", 1)), 0o644))

	_, err = schema.Load(path)
	require.ErrorContains(t, err, "v-next")
}
