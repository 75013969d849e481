// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package manifest models a PEP 517 style package manifest and checks
// the contract it declares: a parseable configuration, an internally
// consistent interpreter version range, well-formed dependency entries,
// and complete required metadata.
//
// Parsing is deliberately lenient: any TOML-valid document decodes, and
// malformed requirement strings survive into the model so Validate can
// report all problems at once instead of failing on the first one.
package manifest

import "errors"

// Sentinel errors returned by Validate and the requirement parser.
var (
	// ErrMissingBuildSystem is returned when the [build-system] table
	// is absent or declares no backend.
	ErrMissingBuildSystem = errors.New("missing build-system table")

	// ErrMissingMetadata is returned when a required project field
	// (name, version, description, license, authors) is empty.
	ErrMissingMetadata = errors.New("missing required metadata")

	// ErrBadName is returned for a dependency name that does not
	// normalize to a valid package name.
	ErrBadName = errors.New("invalid package name")

	// ErrBadConstraint is returned for an unparseable version
	// constraint.
	ErrBadConstraint = errors.New("invalid version constraint")

	// ErrBadVersion is returned for a version string that cannot be
	// canonicalized for comparison.
	ErrBadVersion = errors.New("invalid version")

	// ErrDuplicateDependency is returned when two dependency entries
	// normalize to the same package name.
	ErrDuplicateDependency = errors.New("duplicate dependency")

	// ErrInconsistentRange is returned when the interpreter range's
	// lower bound exceeds its upper bound.
	ErrInconsistentRange = errors.New("interpreter range lower bound exceeds upper bound")
)
