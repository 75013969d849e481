// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/enformatik/pyliger/services/liger/manifest"
)

func runManifestValidate(cmd *cobra.Command, args []string) {
	f, err := os.Open(args[0])
	if err != nil {
		log.Fatalf("Error opening manifest: %v", err)
	}
	defer f.Close()

	m, err := manifest.Parse(f)
	if err != nil {
		log.Fatalf("Error parsing manifest: %v", err)
	}

	if err := m.Validate(); err != nil {
		fmt.Printf("Manifest %s is INVALID:\n%v\n", args[0], err)
		os.Exit(1)
	}

	fmt.Printf("Manifest %s is valid\n", args[0])
	fmt.Printf("  %s %s (%s)\n", m.Project.Name, m.Project.Version, m.Project.License.Text)
	if r, err := m.Project.InterpreterRange(); err == nil && (r.Lower != "" || r.Upper != "") {
		fmt.Printf("  interpreter: %s\n", m.Project.RequiresPython)
	}

	surface := m.Project.DependencySurface()
	names := make([]string, 0, len(surface))
	for name := range surface {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("  %d dependencies:\n", len(names))
	for _, name := range names {
		if surface[name] == "" {
			fmt.Printf("    %s\n", name)
			continue
		}
		fmt.Printf("    %s %s\n", name, surface[name])
	}
}
