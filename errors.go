// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package stim

import "errors"

var (
	// ErrInvalidUnit is returned when a stimulation waveform unit is not "amp" or "volt".
	ErrInvalidUnit = errors.New("stimulation waveform unit must be \"amp\" or \"volt\"")
	// ErrInvalidMetadata is returned when run metadata is not a JSON object of run records.
	ErrInvalidMetadata = errors.New("invalid stimulation metadata")
	// ErrMissingParameter is returned when a run record lacks a required stimulation parameter.
	ErrMissingParameter = errors.New("missing stimulation parameter")
	// ErrInvalidParameter is returned when a stimulation parameter is not a usable number.
	ErrInvalidParameter = errors.New("invalid stimulation parameter")
	// ErrShapeMismatch is returned when the waveform count differs from the electrode region length.
	ErrShapeMismatch = errors.New("waveform count does not match electrode region")
	// ErrRaggedData is returned when the rows of a multi-channel waveform differ in length.
	ErrRaggedData = errors.New("ragged waveform data")
	// ErrInvalidTiming is returned when timestamps or sampling rate are missing or inconsistent.
	ErrInvalidTiming = errors.New("invalid timing")
	// ErrIndexOutOfRange is returned when a table reference points past the end of its table.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrMissingColumn is returned when an appended row lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrUnknownColumn is returned when an appended row has a column the table does not define.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicateName is returned when a container with the same name is already attached.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrAlreadyAttached is returned when a container already has a parent.
	ErrAlreadyAttached = errors.New("container already has a parent")
	// ErrUnresolvedReference is returned when a table reference has no target table yet.
	ErrUnresolvedReference = errors.New("unresolved reference")
	// ErrNotFound is returned when a named container does not exist.
	ErrNotFound = errors.New("not found")
)
