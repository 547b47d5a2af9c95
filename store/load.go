// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/OpenPSG/stim"
)

// Load reads a recording saved with Save. Every container is rebuilt through its
// constructor, so the loaded recording passes the same validation as the original.
// A nil logger uses the global zap logger.
func Load(path string, logger *zap.Logger) (rec *stim.Recording, err error) {
	if logger == nil {
		logger = zap.L()
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadOnly)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer func() {
		if cerr := conn.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("error closing %s: %w", path, cerr)
		}
	}()

	rec, err = loadRecording(conn, logger)
	if err != nil {
		return nil, err
	}
	if err := loadElectrodes(conn, rec); err != nil {
		return nil, err
	}
	if err := loadBipolarPairs(conn, rec); err != nil {
		return nil, err
	}
	if err := loadStimSeries(conn, rec); err != nil {
		return nil, err
	}
	if err := loadStimTables(conn, rec, logger); err != nil {
		return nil, err
	}

	logger.Debug("Loaded recording", zap.String("path", path), zap.String("identifier", rec.Identifier),
		zap.Int("series", len(rec.StimSeriesNames())), zap.Int("tables", len(rec.StimTableNames())))
	return rec, nil
}

func loadRecording(conn *sqlite.Conn, logger *zap.Logger) (*stim.Recording, error) {
	var (
		cfg   stim.RecordingConfig
		found bool
	)
	err := sqlitex.Execute(conn,
		`SELECT object_id, identifier, session_description, session_start_time, electrodes_object_id FROM recording`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			cfg.ObjectID = stmt.ColumnText(0)
			cfg.Identifier = stmt.ColumnText(1)
			cfg.SessionDescription = stmt.ColumnText(2)
			if stmt.ColumnType(3) != sqlite.TypeNull {
				start, err := time.Parse(time.RFC3339Nano, stmt.ColumnText(3))
				if err != nil {
					return fmt.Errorf("error parsing session start time: %w", err)
				}
				cfg.SessionStartTime = start
			}
			cfg.ElectrodesObjectID = stmt.ColumnText(4)
			found = true
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("error reading recording: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("%w: file holds no recording", stim.ErrNotFound)
	}

	cfg.Logger = logger
	return stim.NewRecording(cfg)
}

func loadElectrodes(conn *sqlite.Conn, rec *stim.Recording) error {
	err := sqlitex.Execute(conn,
		`SELECT idx, x, y, z, impedance, location, filtering, grp FROM electrodes ORDER BY idx`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			idx := rec.AddElectrode(stim.Electrode{
				X:         columnReal(stmt, 1),
				Y:         columnReal(stmt, 2),
				Z:         columnReal(stmt, 3),
				Impedance: columnReal(stmt, 4),
				Location:  stmt.ColumnText(5),
				Filtering: stmt.ColumnText(6),
				Group:     stmt.ColumnText(7),
			})
			if int64(idx) != stmt.ColumnInt64(0) {
				return fmt.Errorf("electrode rows are not contiguous at %d", stmt.ColumnInt64(0))
			}
			return nil
		}})
	if err != nil {
		return fmt.Errorf("error reading electrodes: %w", err)
	}
	return nil
}

func columnReal(stmt *sqlite.Stmt, col int) float64 {
	if stmt.ColumnType(col) == sqlite.TypeNull {
		return math.NaN()
	}
	return stmt.ColumnFloat(col)
}

func loadBipolarPairs(conn *sqlite.Conn, rec *stim.Recording) error {
	var pairs *stim.BipolarPairTable
	err := sqlitex.Execute(conn,
		`SELECT object_id, name, description FROM bipolar_scheme`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			var err error
			pairs, err = stim.NewBipolarPairTable(stmt.ColumnText(1), stmt.ColumnText(2), rec.Electrodes(), stmt.ColumnText(0))
			return err
		}})
	if err != nil {
		return fmt.Errorf("error reading bipolar scheme: %w", err)
	}
	if pairs == nil {
		return nil
	}

	var rows []stim.BipolarPair
	err = sqlitex.Execute(conn,
		`SELECT pair, role, electrode FROM bipolar_pairs ORDER BY pair, role, position`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			pair := int(stmt.ColumnInt64(0))
			for len(rows) <= pair {
				rows = append(rows, stim.BipolarPair{})
			}

			electrode := int(stmt.ColumnInt64(2))
			switch role := stmt.ColumnText(1); role {
			case "anode":
				rows[pair].Anodes = append(rows[pair].Anodes, electrode)
			case "cathode":
				rows[pair].Cathodes = append(rows[pair].Cathodes, electrode)
			default:
				return fmt.Errorf("unknown bipolar pair role %q", role)
			}
			return nil
		}})
	if err != nil {
		return fmt.Errorf("error reading bipolar pairs: %w", err)
	}

	for i, p := range rows {
		if _, err := pairs.AddPair(p); err != nil {
			return fmt.Errorf("bipolar pair %d: %w", i, err)
		}
	}

	return rec.SetBipolarPairs(pairs)
}

func loadStimSeries(conn *sqlite.Conn, rec *stim.Recording) error {
	var configs []stim.SeriesConfig
	err := sqlitex.Execute(conn,
		`SELECT name, object_id, unit, description, comments, conversion, resolution, starting_time, rate,
		        timestamps, metadata, shape, data, electrodes, electrodes_description
		 FROM stim_series ORDER BY name`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			cfg := stim.SeriesConfig{
				Name:         stmt.ColumnText(0),
				ObjectID:     stmt.ColumnText(1),
				Unit:         stim.Unit(stmt.ColumnText(2)),
				Description:  stmt.ColumnText(3),
				Comments:     stmt.ColumnText(4),
				Conversion:   stmt.ColumnFloat(5),
				Resolution:   stmt.ColumnFloat(6),
				StartingTime: stmt.ColumnFloat(7),
				Rate:         stmt.ColumnFloat(8),
				Metadata:     stmt.ColumnText(10),
			}

			if stmt.ColumnType(9) != sqlite.TypeNull {
				timestamps, err := decodeFloats(columnBytes(stmt, 9))
				if err != nil {
					return err
				}
				cfg.Timestamps = timestamps
			}

			if stmt.ColumnType(11) != sqlite.TypeNull {
				var shape []int
				if err := json.Unmarshal([]byte(stmt.ColumnText(11)), &shape); err != nil {
					return fmt.Errorf("error parsing shape of %q: %w", cfg.Name, err)
				}
				values, err := decodeFloats(columnBytes(stmt, 12))
				if err != nil {
					return err
				}
				if cfg.Data, err = stim.NewWaveformFromShape(shape, values); err != nil {
					return fmt.Errorf("stimulation series %q: %w", cfg.Name, err)
				}
			}

			if stmt.ColumnType(13) != sqlite.TypeNull {
				var indices []int
				if err := json.Unmarshal([]byte(stmt.ColumnText(13)), &indices); err != nil {
					return fmt.Errorf("error parsing electrodes of %q: %w", cfg.Name, err)
				}
				region, err := rec.CreateElectrodeRegion(indices, stmt.ColumnText(14))
				if err != nil {
					return fmt.Errorf("stimulation series %q: %w", cfg.Name, err)
				}
				cfg.Electrodes = region
			}

			configs = append(configs, cfg)
			return nil
		}})
	if err != nil {
		return fmt.Errorf("error reading stimulation series: %w", err)
	}

	for _, cfg := range configs {
		s, err := stim.NewStimSeries(cfg)
		if err != nil {
			return fmt.Errorf("stimulation series %q: %w", cfg.Name, err)
		}
		if err := rec.AddStimSeries(s); err != nil {
			return err
		}
	}
	return nil
}

func columnBytes(stmt *sqlite.Stmt, col int) []byte {
	b := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, b)
	return b
}

func loadStimTables(conn *sqlite.Conn, rec *stim.Recording, logger *zap.Logger) error {
	var tables []*stim.StimTable
	err := sqlitex.Execute(conn,
		`SELECT name, object_id, description, resolved FROM stim_tables ORDER BY name`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			t := stim.NewStimTable(stim.TableConfig{
				Name:        stmt.ColumnText(0),
				ObjectID:    stmt.ColumnText(1),
				Description: stmt.ColumnText(2),
				Logger:      logger,
			})
			if stmt.ColumnInt64(3) != 0 {
				if pairs := rec.BipolarPairs(); pairs != nil {
					if err := t.SetBipolarPairs(pairs); err != nil {
						return err
					}
				}
			}
			tables = append(tables, t)
			return nil
		}})
	if err != nil {
		return fmt.Errorf("error reading stimulation tables: %w", err)
	}

	for _, t := range tables {
		var runs []stim.Run
		err := sqlitex.Execute(conn,
			`SELECT start_time, stop_time, frequency, amplitude, pulse_width, bipolar_pair
			 FROM stim_runs WHERE table_name = ? ORDER BY idx`,
			&sqlitex.ExecOptions{
				Args: []any{t.Name()},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					runs = append(runs, stim.Run{
						StartTime:   stmt.ColumnFloat(0),
						StopTime:    stmt.ColumnFloat(1),
						Frequency:   stmt.ColumnFloat(2),
						Amplitude:   stmt.ColumnFloat(3),
						PulseWidth:  stmt.ColumnFloat(4),
						BipolarPair: int(stmt.ColumnInt64(5)),
					})
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("error reading runs of %q: %w", t.Name(), err)
		}

		// Runs are appended before the table is attached, so an unresolved table
		// cannot adopt a pair table of the recording that does not cover its runs.
		for _, r := range runs {
			if err := t.AddRun(r); err != nil {
				return fmt.Errorf("stimulation table %q: %w", t.Name(), err)
			}
		}

		if err := rec.AddStimTable(t); err != nil {
			return err
		}
	}
	return nil
}
