// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

var (
	// namePattern is the accepted package name shape before
	// normalization: alphanumeric ends, dots, hyphens and underscores
	// inside.
	namePattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

	// versionPattern accepts release segments with an optional
	// pre/post/dev suffix, e.g. "1.21", "0.7.0", "2.0rc1", "1.0.post2".
	versionPattern = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+)*((a|b|c|rc)[0-9]+|\.post[0-9]+|\.dev[0-9]+|\.\*)?$`)

	releasePrefix = regexp.MustCompile(`^v?[0-9]+(\.[0-9]+)*`)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the manifest contract:
//
//  1. the build-system table is present with a backend;
//  2. the interpreter version range is internally consistent;
//  3. every dependency names a well-formed package with valid
//     constraint syntax, with no duplicates after normalization;
//  4. required metadata (name, version, description, license,
//     authors) is present and non-empty.
//
// All problems found are joined into the returned error.
func (m *Manifest) Validate() error {
	var errs []error

	if m.BuildSystem.BuildBackend == "" {
		errs = append(errs, ErrMissingBuildSystem)
	}

	if err := validate.Struct(&m.Project); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%w: %s", ErrMissingMetadata, fe.Namespace()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if m.Project.License.Text == "" && m.Project.License.File == "" {
		errs = append(errs, fmt.Errorf("%w: license", ErrMissingMetadata))
	}
	if m.Project.Version != "" && !versionPattern.MatchString(m.Project.Version) {
		errs = append(errs, fmt.Errorf("%w: project version %q", ErrBadVersion, m.Project.Version))
	}

	if _, err := m.Project.InterpreterRange(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]string, len(m.Project.Dependencies))
	for _, d := range m.Project.Dependencies {
		if err := d.check(); err != nil {
			errs = append(errs, err)
			continue
		}
		normalized := NormalizeName(d.Name)
		if prior, dup := seen[normalized]; dup {
			errs = append(errs, fmt.Errorf("%w: %q and %q both declare %s",
				ErrDuplicateDependency, prior, d.Raw, normalized))
			continue
		}
		seen[normalized] = d.Raw
	}

	for _, d := range m.BuildSystem.Requires {
		if err := d.check(); err != nil {
			errs = append(errs, fmt.Errorf("build-system: %w", err))
		}
	}

	return errors.Join(errs...)
}

// check verifies one requirement entry's name and constraint syntax.
func (d Dependency) check() error {
	if d.Name == "" || !namePattern.MatchString(d.Name) {
		return fmt.Errorf("%w: %q", ErrBadName, d.Raw)
	}
	for _, c := range d.Constraints {
		if c.Op == "" {
			return fmt.Errorf("%w: %q: missing operator", ErrBadConstraint, d.Raw)
		}
		if c.Version == "" {
			return fmt.Errorf("%w: %q: operator %s has no version", ErrBadConstraint, d.Raw, c.Op)
		}
		if !versionPattern.MatchString(c.Version) {
			return fmt.Errorf("%w: %q: version %q", ErrBadConstraint, d.Raw, c.Version)
		}
	}
	return nil
}

// InterpreterRange is the supported interpreter window, derived from
// requires-python. A missing bound leaves the corresponding field
// empty.
type InterpreterRange struct {
	Lower          string
	LowerInclusive bool
	Upper          string
	UpperInclusive bool
}

// InterpreterRange parses requires-python (e.g. ">=3.8, <4.0") into
// bounds and checks they do not cross. A range with only one bound is
// consistent by definition. An empty requires-python yields a zero
// range.
func (p *Project) InterpreterRange() (InterpreterRange, error) {
	var r InterpreterRange
	if strings.TrimSpace(p.RequiresPython) == "" {
		return r, nil
	}

	for _, part := range strings.Split(p.RequiresPython, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		op := ""
		for _, candidate := range constraintOps {
			if strings.HasPrefix(part, candidate) {
				op = candidate
				break
			}
		}
		version := strings.TrimSpace(strings.TrimPrefix(part, op))
		if op == "" || !versionPattern.MatchString(version) {
			return r, fmt.Errorf("%w: requires-python clause %q", ErrBadConstraint, part)
		}
		switch op {
		case ">", ">=":
			r.Lower = version
			r.LowerInclusive = op == ">="
		case "<", "<=":
			r.Upper = version
			r.UpperInclusive = op == "<="
		case "==", "===", "~=":
			r.Lower, r.Upper = version, version
			r.LowerInclusive, r.UpperInclusive = true, true
		default:
			return r, fmt.Errorf("%w: requires-python clause %q", ErrBadConstraint, part)
		}
	}

	if r.Lower != "" && r.Upper != "" {
		if CompareVersions(r.Lower, r.Upper) > 0 {
			return r, fmt.Errorf("%w: %s > %s", ErrInconsistentRange, r.Lower, r.Upper)
		}
	}
	return r, nil
}

// CompareVersions compares two release version strings, returning
// -1, 0 or +1. Versions are canonicalized to three numeric components
// before comparison, so "3.8" and "3.8.0" are equal.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}

// canonical strips pre-release suffixes and pads the release segment to
// major.minor.patch for semver comparison.
func canonical(v string) string {
	release := releasePrefix.FindString(v)
	release = strings.TrimPrefix(release, "v")
	parts := strings.Split(release, ".")
	for len(parts) < 3 {
		parts = append(parts, "0")
	}
	return "v" + strings.Join(parts[:3], ".")
}
