// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package store saves recordings to, and loads them from, SQLite files.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/OpenPSG/stim"
)

const ddl = `
CREATE TABLE recording (
	object_id TEXT PRIMARY KEY,
	neurodata_type TEXT NOT NULL,
	identifier TEXT NOT NULL,
	session_description TEXT NOT NULL,
	session_start_time TEXT,
	electrodes_object_id TEXT NOT NULL
);

CREATE TABLE electrodes (
	idx INTEGER PRIMARY KEY,
	x REAL,
	y REAL,
	z REAL,
	impedance REAL,
	location TEXT,
	filtering TEXT,
	grp TEXT
);

CREATE TABLE bipolar_scheme (
	object_id TEXT PRIMARY KEY,
	neurodata_type TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT
);

CREATE TABLE bipolar_pairs (
	pair INTEGER NOT NULL,
	role TEXT NOT NULL,
	position INTEGER NOT NULL,
	electrode INTEGER NOT NULL,
	PRIMARY KEY (pair, role, position)
);

CREATE TABLE stim_series (
	name TEXT PRIMARY KEY,
	object_id TEXT NOT NULL,
	neurodata_type TEXT NOT NULL,
	unit TEXT NOT NULL,
	description TEXT,
	comments TEXT,
	conversion REAL,
	resolution REAL,
	starting_time REAL,
	rate REAL,
	timestamps BLOB,
	metadata TEXT,
	shape TEXT,
	data BLOB,
	electrodes TEXT,
	electrodes_description TEXT
);

CREATE TABLE stim_tables (
	name TEXT PRIMARY KEY,
	object_id TEXT NOT NULL,
	neurodata_type TEXT NOT NULL,
	description TEXT,
	resolved INTEGER NOT NULL
);

CREATE TABLE stim_runs (
	table_name TEXT NOT NULL,
	idx INTEGER NOT NULL,
	start_time REAL NOT NULL,
	stop_time REAL NOT NULL,
	frequency REAL NOT NULL,
	amplitude REAL NOT NULL,
	pulse_width REAL NOT NULL,
	bipolar_pair INTEGER NOT NULL,
	PRIMARY KEY (table_name, idx)
);
`

// Save writes rec to a new SQLite file at path, replacing any existing file.
func Save(path string, rec *stim.Recording) (err error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing %s: %w", path, err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", path, err)
	}
	defer func() {
		if cerr := conn.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("error closing %s: %w", path, cerr)
		}
	}()

	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		return fmt.Errorf("error creating tables: %w", err)
	}

	endFn, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer endFn(&err)

	if err := insertRecording(conn, rec); err != nil {
		return err
	}
	if err := insertElectrodes(conn, rec.Electrodes()); err != nil {
		return err
	}
	if pairs := rec.BipolarPairs(); pairs != nil {
		if err := insertBipolarPairs(conn, pairs); err != nil {
			return err
		}
	}
	for _, name := range rec.StimSeriesNames() {
		s, err := rec.StimSeries(name)
		if err != nil {
			return err
		}
		if err := insertStimSeries(conn, s); err != nil {
			return err
		}
	}
	for _, name := range rec.StimTableNames() {
		t, err := rec.StimTable(name)
		if err != nil {
			return err
		}
		if err := insertStimTable(conn, t); err != nil {
			return err
		}
	}

	return nil
}

func insertRecording(conn *sqlite.Conn, rec *stim.Recording) error {
	var start any
	if !rec.SessionStartTime.IsZero() {
		start = rec.SessionStartTime.Format(time.RFC3339Nano)
	}

	err := sqlitex.Execute(conn,
		`INSERT INTO recording (object_id, neurodata_type, identifier, session_description, session_start_time, electrodes_object_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			rec.ObjectID(), rec.NeurodataType(), rec.Identifier, rec.SessionDescription, start, rec.Electrodes().ObjectID(),
		}})
	if err != nil {
		return fmt.Errorf("error inserting recording: %w", err)
	}
	return nil
}

func insertElectrodes(conn *sqlite.Conn, electrodes *stim.ElectrodeTable) error {
	stmt, err := conn.Prepare(`INSERT INTO electrodes (idx, x, y, z, impedance, location, filtering, grp) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing electrode insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i := 0; i < electrodes.Len(); i++ {
		e, err := electrodes.Electrode(i)
		if err != nil {
			return err
		}

		stmt.BindInt64(1, int64(i))
		bindReal(stmt, 2, e.X)
		bindReal(stmt, 3, e.Y)
		bindReal(stmt, 4, e.Z)
		bindReal(stmt, 5, e.Impedance)
		stmt.BindText(6, e.Location)
		stmt.BindText(7, e.Filtering)
		stmt.BindText(8, e.Group)

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("error inserting electrode %d: %w", i, err)
		}
		if err := stmt.Reset(); err != nil {
			return err
		}
	}
	return nil
}

// bindReal binds NaN as NULL, which is how SQLite stores it anyway.
func bindReal(stmt *sqlite.Stmt, param int, v float64) {
	if math.IsNaN(v) {
		stmt.BindNull(param)
		return
	}
	stmt.BindFloat(param, v)
}

func insertBipolarPairs(conn *sqlite.Conn, pairs *stim.BipolarPairTable) error {
	err := sqlitex.Execute(conn,
		`INSERT INTO bipolar_scheme (object_id, neurodata_type, name, description) VALUES (?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{pairs.ObjectID(), pairs.NeurodataType(), pairs.Name(), pairs.Description}})
	if err != nil {
		return fmt.Errorf("error inserting bipolar scheme: %w", err)
	}

	stmt, err := conn.Prepare(`INSERT INTO bipolar_pairs (pair, role, position, electrode) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing bipolar pair insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i := 0; i < pairs.Len(); i++ {
		p, err := pairs.Pair(i)
		if err != nil {
			return err
		}

		for role, electrodes := range map[string][]int{"anode": p.Anodes, "cathode": p.Cathodes} {
			for position, electrode := range electrodes {
				stmt.BindInt64(1, int64(i))
				stmt.BindText(2, role)
				stmt.BindInt64(3, int64(position))
				stmt.BindInt64(4, int64(electrode))

				if _, err := stmt.Step(); err != nil {
					return fmt.Errorf("error inserting bipolar pair %d: %w", i, err)
				}
				if err := stmt.Reset(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func insertStimSeries(conn *sqlite.Conn, s *stim.StimSeries) error {
	var timestamps, shape, data, electrodes, electrodesDescription, metadata any

	if ts := s.Timestamps(); ts != nil {
		timestamps = encodeFloats(ts)
	}
	if w := s.Data(); w != nil {
		b, err := json.Marshal(w.Shape())
		if err != nil {
			return err
		}
		shape = string(b)
		data = encodeFloats(w.Values())
	}
	if region := s.Electrodes(); region != nil {
		b, err := json.Marshal(region.Indices())
		if err != nil {
			return err
		}
		electrodes = string(b)
		electrodesDescription = region.Description
	}
	if md := s.Metadata(); md != "" {
		metadata = md
	}

	err := sqlitex.Execute(conn,
		`INSERT INTO stim_series (name, object_id, neurodata_type, unit, description, comments, conversion, resolution,
		                          starting_time, rate, timestamps, metadata, shape, data, electrodes, electrodes_description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			s.Name(), s.ObjectID(), s.NeurodataType(), string(s.Unit()), s.Description, s.Comments, s.Conversion, s.Resolution,
			s.StartingTime(), s.Rate(), timestamps, metadata, shape, data, electrodes, electrodesDescription,
		}})
	if err != nil {
		return fmt.Errorf("error inserting stimulation series %q: %w", s.Name(), err)
	}
	return nil
}

func insertStimTable(conn *sqlite.Conn, t *stim.StimTable) error {
	resolved := 0
	if t.Resolved() {
		resolved = 1
	}

	err := sqlitex.Execute(conn,
		`INSERT INTO stim_tables (name, object_id, neurodata_type, description, resolved) VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{t.Name(), t.ObjectID(), t.NeurodataType(), t.Description, resolved}})
	if err != nil {
		return fmt.Errorf("error inserting stimulation table %q: %w", t.Name(), err)
	}

	stmt, err := conn.Prepare(`INSERT INTO stim_runs (table_name, idx, start_time, stop_time, frequency, amplitude, pulse_width, bipolar_pair)
	                           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing run insert: %w", err)
	}
	defer func() { _ = stmt.Finalize() }()

	for i, r := range t.Runs() {
		stmt.BindText(1, t.Name())
		stmt.BindInt64(2, int64(i))
		stmt.BindFloat(3, r.StartTime)
		stmt.BindFloat(4, r.StopTime)
		stmt.BindFloat(5, r.Frequency)
		stmt.BindFloat(6, r.Amplitude)
		stmt.BindFloat(7, r.PulseWidth)
		stmt.BindInt64(8, int64(r.BipolarPair))

		if _, err := stmt.Step(); err != nil {
			return fmt.Errorf("error inserting run %d of %q: %w", i, t.Name(), err)
		}
		if err := stmt.Reset(); err != nil {
			return err
		}
	}
	return nil
}

func encodeFloats(values []float64) []byte {
	b := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(b[i*8:], math.Float64bits(v))
	}
	return b
}

func decodeFloats(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("float blob has %d bytes, not a multiple of 8", len(b))
	}
	values := make([]float64, len(b)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return values, nil
}
