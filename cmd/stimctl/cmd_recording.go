// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/store"
)

var (
	tableName  string
	identifier string
)

var infoCmd = &cobra.Command{
	Use:   "info FILE.db",
	Short: "Summarize a stored recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var exportEDFCmd = &cobra.Command{
	Use:   "export-edf FILE.db SERIES OUT.edf",
	Short: "Write a stimulation series as an EDF+ file",
	Long: `Writes the waveforms of a stimulation series as EDF+ signals. The run
metadata of the series, and the runs of the table named by --table, are
written as annotations.

Example:
  stimctl export-edf session.db stim stim.edf --table stimulation`,
	Args: cobra.ExactArgs(3),
	RunE: runExportEDF,
}

var importEDFCmd = &cobra.Command{
	Use:   "import-edf IN.edf OUT.db",
	Short: "Store an EDF stimulation file as a new recording",
	Long: `Reads an EDF or EDF+ file and stores it as a recording holding one
stimulation series, with one electrode per signal. Runs found in the
annotations are stored in a stimulation table. The table has no bipolar
pair table to resolve against, so its references stay unresolved.`,
	Args: cobra.ExactArgs(2),
	RunE: runImportEDF,
}

func runInfo(cmd *cobra.Command, args []string) error {
	rec, err := store.Load(args[0], logger)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "identifier:  %s\n", rec.Identifier)
	fmt.Fprintf(out, "description: %s\n", rec.SessionDescription)
	if !rec.SessionStartTime.IsZero() {
		fmt.Fprintf(out, "start:       %s\n", rec.SessionStartTime.Format(time.RFC3339))
	}
	fmt.Fprintf(out, "electrodes:  %d\n", rec.Electrodes().Len())
	if pairs := rec.BipolarPairs(); pairs != nil {
		fmt.Fprintf(out, "bipolar pairs: %d\n", pairs.Len())
	}

	var series, runs [][]string
	for _, name := range rec.StimSeriesNames() {
		s, err := rec.StimSeries(name)
		if err != nil {
			return err
		}

		var shape []int
		if s.Data() != nil {
			shape = s.Data().Shape()
		}
		rate := "timestamps"
		if s.Rate() > 0 {
			rate = formatFloat(s.Rate()) + "Hz"
		}
		series = append(series, []string{name, string(s.Unit()), fmt.Sprint(shape), fmt.Sprint(s.Electrodes().Indices()), rate})

		for _, id := range s.Runs().IDs() {
			p := s.Runs()[id]
			runs = append(runs, []string{name, id, formatFloat(p.Amplitude), formatFloat(p.PulseWidth), formatFloat(p.Frequency)})
		}
	}
	renderTable(out, []string{"Series", "Unit", "Shape", "Electrodes", "Rate"}, series)
	renderTable(out, []string{"Series", "Run", "Amplitude", "Pulse width", "Frequency"}, runs)

	var tables [][]string
	for _, name := range rec.StimTableNames() {
		t, err := rec.StimTable(name)
		if err != nil {
			return err
		}
		tables = append(tables, []string{name, strconv.Itoa(t.Len()), strconv.FormatBool(t.Resolved())})
	}
	renderTable(out, []string{"Table", "Runs", "Resolved"}, tables)
	return nil
}

func renderTable(w io.Writer, header []string, data [][]string) {
	if len(data) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	table.AppendBulk(data)
	table.Render()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func runExportEDF(cmd *cobra.Command, args []string) error {
	rec, err := store.Load(args[0], logger)
	if err != nil {
		return fmt.Errorf("failed to load recording: %w", err)
	}

	s, err := rec.StimSeries(args[1])
	if err != nil {
		return err
	}

	var table *stim.StimTable
	if tableName != "" {
		if table, err = rec.StimTable(tableName); err != nil {
			return err
		}
	}

	f, err := os.Create(args[2])
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", args[2], err)
	}
	if err := stim.WriteEDF(f, s, table); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", args[2], err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("Exported stimulation series", zap.String("series", s.Name()), zap.String("path", args[2]))
	return nil
}

func runImportEDF(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	es, err := stim.ReadEDF(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	// Plain EDF files often leave the recording identification blank.
	name := es.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		es.Name = name
	}
	id := identifier
	if id == "" {
		id = name
	}
	rec, err := stim.NewRecording(stim.RecordingConfig{
		Identifier:         id,
		SessionDescription: fmt.Sprintf("imported from %s", args[0]),
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	indices := make([]int, len(es.Labels))
	for i, label := range es.Labels {
		indices[i] = rec.AddElectrode(stim.Electrode{
			X: math.NaN(), Y: math.NaN(), Z: math.NaN(), Impedance: math.NaN(),
			Location: label,
		})
	}
	region, err := rec.CreateElectrodeRegion(indices, "stimulated electrodes")
	if err != nil {
		return err
	}

	s, err := es.StimSeries(region)
	if err != nil {
		return err
	}
	if err := rec.AddStimSeries(s); err != nil {
		return err
	}

	if len(es.Runs) > 0 {
		t, err := es.StimTable(stim.TableConfig{Logger: logger})
		if err != nil {
			return err
		}
		if err := rec.AddStimTable(t); err != nil {
			return err
		}
	}

	if err := store.Save(args[1], rec); err != nil {
		return fmt.Errorf("failed to save recording: %w", err)
	}

	logger.Info("Imported EDF file", zap.String("path", args[0]), zap.String("series", s.Name()),
		zap.Int("waveforms", len(es.Labels)), zap.Int("runs", len(es.Runs)))
	return nil
}
