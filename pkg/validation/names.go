// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for user-supplied names
// and paths.
//
// Sample names end up in log lines, cache keys, and output file names;
// data directories are opened and walked. Validating both up front keeps
// injection and path-traversal problems out of the lower layers.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// samplePattern matches valid sample names.
// Allows letters, digits, underscores, dots, and hyphens; must start
// with an alphanumeric character. Max length 64.
var samplePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// genePattern matches gene symbols and 10X feature identifiers,
// including ATAC-style coordinates such as chr1:10000-10500.
var genePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)

// ValidateSampleName validates a dataset/sample name.
//
// Valid names are 1-64 characters of letters, digits, dots, hyphens, and
// underscores, starting with an alphanumeric character.
//
//	if err := validation.ValidateSampleName(name); err != nil {
//	    return fmt.Errorf("invalid sample: %w", err)
//	}
func ValidateSampleName(name string) error {
	if name == "" {
		return fmt.Errorf("sample name cannot be empty")
	}
	if !samplePattern.MatchString(name) {
		return fmt.Errorf("invalid sample name: %q (must be 1-64 alphanumeric chars, dots, hyphens, or underscores)", name)
	}
	return nil
}

// ValidateSampleNames validates multiple sample names and requires them
// to be pairwise distinct. Returns an error listing every offender.
func ValidateSampleNames(names []string) error {
	var invalid []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if err := ValidateSampleName(name); err != nil {
			invalid = append(invalid, name)
			continue
		}
		if seen[name] {
			invalid = append(invalid, name+" (duplicate)")
		}
		seen[name] = true
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid sample names: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// ValidateGeneName validates a gene symbol or feature identifier.
func ValidateGeneName(name string) error {
	if name == "" {
		return fmt.Errorf("gene name cannot be empty")
	}
	if !genePattern.MatchString(name) {
		return fmt.Errorf("invalid gene name: %q", name)
	}
	return nil
}

// ValidateDataDir validates a user-supplied data directory path.
//
// The path must be non-empty and, after cleaning, must not contain
// parent-directory components. Relative paths are allowed; escaping the
// working tree via ".." is not.
func ValidateDataDir(path string) error {
	if path == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("data directory escapes working tree: %q", path)
	}
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return fmt.Errorf("data directory contains parent reference: %q", path)
		}
	}
	return nil
}
