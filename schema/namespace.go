// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NamespaceBuilder assembles a namespace and exports it together with its types.
type NamespaceBuilder struct {
	ns       Namespace
	includes []SchemaRef
}

// NewNamespaceBuilder returns a builder for the named namespace.
func NewNamespaceBuilder(name, doc, version string, authors, contacts []string) *NamespaceBuilder {
	return &NamespaceBuilder{
		ns: Namespace{
			Name:    name,
			Doc:     doc,
			Version: version,
			Author:  authors,
			Contact: contacts,
		},
	}
}

// IncludeType makes a type of another namespace available to the extension.
func (b *NamespaceBuilder) IncludeType(typeName, namespace string) {
	for i := range b.includes {
		if b.includes[i].Namespace == namespace {
			b.includes[i].NeurodataTypes = append(b.includes[i].NeurodataTypes, typeName)
			return
		}
	}
	b.includes = append(b.includes, SchemaRef{Namespace: namespace, NeurodataTypes: []string{typeName}})
}

// Name returns the name of the namespace.
func (b *NamespaceBuilder) Name() string {
	return b.ns.Name
}

// SourceName returns the file name of the extension source.
func (b *NamespaceBuilder) SourceName() string {
	return b.ns.Name + ".extensions.yaml"
}

// NamespaceFileName returns the file name of the namespace file.
func (b *NamespaceBuilder) NamespaceFileName() string {
	return b.ns.Name + ".namespace.yaml"
}

// Namespace returns the namespace with its includes and extension source.
func (b *NamespaceBuilder) Namespace() Namespace {
	ns := b.ns
	ns.Schema = append(append([]SchemaRef(nil), b.includes...), SchemaRef{Source: b.SourceName()})
	return ns
}

// Export writes the namespace file and the extension source holding types to dir.
// The namespace version must be a semantic version.
// It returns the path of the namespace file.
func (b *NamespaceBuilder) Export(dir string, types []GroupSpec) (string, error) {
	if _, err := b.ns.SemVer(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating schema directory: %w", err)
	}

	if err := writeYAML(filepath.Join(dir, b.SourceName()), extensionsFile{Groups: types}); err != nil {
		return "", err
	}

	nsPath := filepath.Join(dir, b.NamespaceFileName())
	if err := writeYAML(nsPath, namespaceFile{Namespaces: []Namespace{b.Namespace()}}); err != nil {
		return "", err
	}

	return nsPath, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Catalog holds the namespaces of a namespace file and the types their sources define.
type Catalog struct {
	Namespaces []Namespace
	// Includes maps an included type name to the namespace it comes from.
	Includes map[string]string

	types map[string]GroupSpec
	order []string
}

// Load reads a namespace file and every extension source it references. Every
// namespace must carry a semantic version.
// Sources are resolved relative to the directory of the namespace file.
func Load(path string) (*Catalog, error) {
	var nf namespaceFile
	if err := readYAML(path, &nf); err != nil {
		return nil, err
	}
	if len(nf.Namespaces) == 0 {
		return nil, fmt.Errorf("%s defines no namespaces", filepath.Base(path))
	}

	c := &Catalog{
		Namespaces: nf.Namespaces,
		Includes:   make(map[string]string),
		types:      make(map[string]GroupSpec),
	}

	dir := filepath.Dir(path)
	for _, ns := range nf.Namespaces {
		if _, err := ns.SemVer(); err != nil {
			return nil, err
		}

		for _, ref := range ns.Schema {
			if ref.Source == "" {
				for _, t := range ref.NeurodataTypes {
					c.Includes[t] = ref.Namespace
				}
				continue
			}

			var ef extensionsFile
			if err := readYAML(filepath.Join(dir, ref.Source), &ef); err != nil {
				return nil, fmt.Errorf("namespace %q: %w", ns.Name, err)
			}

			for _, g := range ef.Groups {
				name := g.NeurodataTypeDef
				if name == "" {
					return nil, fmt.Errorf("namespace %q: top level group %q defines no type", ns.Name, g.Name)
				}
				if _, ok := c.types[name]; ok {
					return nil, fmt.Errorf("namespace %q: type %q is defined twice", ns.Name, name)
				}
				c.types[name] = g
				c.order = append(c.order, name)
			}
		}
	}

	return c, nil
}

// Type returns the definition of a type.
func (c *Catalog) Type(name string) (GroupSpec, bool) {
	g, ok := c.types[name]
	return g, ok
}

// Types returns every defined type in definition order.
func (c *Catalog) Types() []GroupSpec {
	out := make([]GroupSpec, len(c.order))
	for i, name := range c.order {
		out[i] = c.types[name]
	}
	return out
}

// Namespace returns the namespace with the given name.
func (c *Catalog) Namespace(name string) (Namespace, bool) {
	for _, ns := range c.Namespaces {
		if ns.Name == name {
			return ns, true
		}
	}
	return Namespace{}, false
}
