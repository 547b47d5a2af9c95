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
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/viper"
)

// Config is the stimctl configuration.
type Config struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`   // debug, info, warn or error
	SchemaDir string `mapstructure:"schema_dir" yaml:"schema_dir"` // Where schema export writes the namespace files
}

// envBindings maps config keys to the environment variables that can set them.
var envBindings = map[string]string{
	"log_level":  "STIMCTL_LOG_LEVEL",
	"schema_dir": "STIMCTL_SCHEMA_DIR",
}

// LoadConfig loads the config from filePath, falling back to defaults when the file
// does not exist. Environment variables override file values.
func LoadConfig(filePath string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log_level", "info")
	v.SetDefault("schema_dir", "spec")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	if filePath != "" {
		if _, err := os.Stat(filePath); !errors.Is(err, fs.ErrNotExist) {
			v.SetConfigFile(filePath)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	c := &Config{}
	err := v.Unmarshal(c)

	return c, err
}
