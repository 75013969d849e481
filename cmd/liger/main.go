// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/enformatik/pyliger/pkg/logging"
	"github.com/enformatik/pyliger/services/liger/config"
)

var (
	cfg    config.Config
	logger *logging.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		path := configPath
		if path == "" {
			if _, err := os.Stat("liger.yaml"); err == nil {
				path = "liger.yaml"
			}
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			log.Fatalf("Error loading configuration: %v", err)
		}

		logger = logging.New(logging.Config{
			Level:   logging.ParseLevel(cfg.Logging.Level),
			LogDir:  cfg.Logging.Dir,
			Service: "liger",
			JSON:    cfg.Logging.JSON,
		})
	}
}
