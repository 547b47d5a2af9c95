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
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenPSG/stim"
	"github.com/OpenPSG/stim/schema"
)

var schemaDir string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with the stimulation extension schemas",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the namespace and extension files of every stimulation extension",
	Args:  cobra.NoArgs,
	RunE:  runSchemaExport,
}

var validateMetadataCmd = &cobra.Command{
	Use:   "validate-metadata FILE",
	Short: "Check a JSON run metadata document",
	Long: `Checks that every run of a JSON run metadata document defines
amplitude, pulse_width and frequency, then prints the parsed runs.

Use - to read the document from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidateMetadata,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	dir := schemaDir
	if dir == "" && cfg != nil {
		dir = cfg.SchemaDir
	}
	if dir == "" {
		return fmt.Errorf("no schema directory given")
	}

	for _, ext := range schema.Builtin() {
		path, err := ext.Export(dir)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", ext.Builder.Name(), err)
		}
		logger.Info("Exported extension", zap.String("namespace", ext.Builder.Name()), zap.String("path", path))
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}

func runValidateMetadata(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	md, err := stim.ParseRunMetadata(string(data))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, id := range md.IDs() {
		fmt.Fprintf(out, "%s: %s\n", id, md[id])
	}
	return nil
}
