// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package manifest

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Constraint operators in longest-match order, so ">=" wins over ">"
// and "==" over "=".
var constraintOps = []string{"===", "==", "!=", ">=", "<=", "~=", ">", "<"}

// Manifest is a decoded pyproject-style package manifest.
type Manifest struct {
	BuildSystem BuildSystem `toml:"build-system"`
	Project     Project     `toml:"project"`
}

// BuildSystem declares how a source tree becomes an installable
// distribution.
type BuildSystem struct {
	Requires     []Dependency `toml:"requires"`
	BuildBackend string       `toml:"build-backend"`
}

// Project carries the package metadata and dependency surface.
type Project struct {
	Name           string            `toml:"name" validate:"required"`
	Version        string            `toml:"version" validate:"required"`
	Description    string            `toml:"description" validate:"required"`
	License        License           `toml:"license"`
	Authors        []Person          `toml:"authors" validate:"min=1,dive"`
	Maintainers    []Person          `toml:"maintainers" validate:"dive"`
	RequiresPython string            `toml:"requires-python"`
	Classifiers    []string          `toml:"classifiers"`
	Dependencies   []Dependency      `toml:"dependencies"`
	URLs           map[string]string `toml:"urls"`
}

// License models the table form license = {text = "MIT"}.
type License struct {
	Text string `toml:"text"`
	File string `toml:"file"`
}

// Person is an author or maintainer entry.
type Person struct {
	Name  string `toml:"name" validate:"required"`
	Email string `toml:"email" validate:"omitempty,email"`
}

// Constraint is a single version comparison, e.g. >= 1.21.
type Constraint struct {
	Op      string
	Version string
}

func (c Constraint) String() string {
	return c.Op + c.Version
}

// Dependency is one requirement entry. Raw preserves the original
// string; Name and Constraints are its syntactic split. Decoding never
// fails on a malformed entry, Validate reports it instead.
type Dependency struct {
	Raw         string
	Name        string
	Constraints []Constraint
}

// UnmarshalText splits a requirement string like "numpy>=1.21,<2" into
// a name and its constraints. No validation happens here.
func (d *Dependency) UnmarshalText(text []byte) error {
	*d = parseRequirement(string(text))
	return nil
}

func parseRequirement(s string) Dependency {
	d := Dependency{Raw: s}
	trimmed := strings.TrimSpace(s)

	cut := len(trimmed)
	for i := range trimmed {
		if strings.ContainsRune("><=!~", rune(trimmed[i])) {
			cut = i
			break
		}
	}
	d.Name = strings.TrimSpace(trimmed[:cut])

	rest := strings.TrimSpace(trimmed[cut:])
	if rest == "" {
		return d
	}
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			d.Constraints = append(d.Constraints, Constraint{})
			continue
		}
		op := ""
		for _, candidate := range constraintOps {
			if strings.HasPrefix(part, candidate) {
				op = candidate
				break
			}
		}
		d.Constraints = append(d.Constraints, Constraint{
			Op:      op,
			Version: strings.TrimSpace(strings.TrimPrefix(part, op)),
		})
	}
	return d
}

// Parse decodes a TOML manifest. Malformed requirement strings decode
// into Dependency values with their syntactic split preserved; call
// Validate to check them.
func Parse(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

var normalizeRuns = regexp.MustCompile(`[-_.]+`)

// NormalizeName lowercases a package name and collapses runs of dots,
// hyphens and underscores to a single hyphen, so "A.B--C" and "a-b-c"
// refer to the same package.
func NormalizeName(name string) string {
	return normalizeRuns.ReplaceAllString(strings.ToLower(name), "-")
}

// DependencySurface returns the declared runtime dependencies as a
// mapping from normalized package name to constraint text (empty when
// the entry pins nothing).
func (p *Project) DependencySurface() map[string]string {
	surface := make(map[string]string, len(p.Dependencies))
	for _, d := range p.Dependencies {
		var parts []string
		for _, c := range d.Constraints {
			parts = append(parts, c.String())
		}
		surface[NormalizeName(d.Name)] = strings.Join(parts, ",")
	}
	return surface
}
