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

	"github.com/google/uuid"
)

// Container is a named node of the recording object graph.
type Container interface {
	Name() string
	ObjectID() string
	// NeurodataType is the schema type the container is stored as.
	NeurodataType() string
	Parent() Container

	setParent(parent Container) error
}

// Base holds the bookkeeping shared by every container.
type Base struct {
	name     string
	objectID string
	parent   Container
}

func newBase(name, objectID string) Base {
	if objectID == "" {
		objectID = uuid.NewString()
	}
	return Base{name: name, objectID: objectID}
}

// Name returns the name of the container.
func (b *Base) Name() string {
	return b.name
}

// ObjectID returns the unique identifier of the container.
func (b *Base) ObjectID() string {
	return b.objectID
}

// Parent returns the container this one is attached to, or nil.
func (b *Base) Parent() Container {
	return b.parent
}

func (b *Base) setParent(parent Container) error {
	if b.parent != nil {
		return fmt.Errorf("%w: %q is attached to %q", ErrAlreadyAttached, b.name, b.parent.Name())
	}
	b.parent = parent
	return nil
}

// bipolarPairsHolder is implemented by containers that own a shared bipolar pair table.
type bipolarPairsHolder interface {
	BipolarPairs() *BipolarPairTable
}

// findBipolarPairs walks up from c looking for an ancestor that owns a bipolar pair table.
func findBipolarPairs(c Container) *BipolarPairTable {
	for p := c.Parent(); p != nil; p = p.Parent() {
		if holder, ok := p.(bipolarPairsHolder); ok {
			if pairs := holder.BipolarPairs(); pairs != nil {
				return pairs
			}
		}
	}
	return nil
}
