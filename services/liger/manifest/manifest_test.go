// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package manifest

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFixture(t *testing.T) *Manifest {
	t.Helper()
	f, err := os.Open("testdata/pyproject.toml")
	require.NoError(t, err)
	defer f.Close()
	m, err := Parse(f)
	require.NoError(t, err)
	return m
}

func TestParse(t *testing.T) {
	m := parseFixture(t)

	assert.Equal(t, "setuptools.build_meta", m.BuildSystem.BuildBackend)
	require.Len(t, m.BuildSystem.Requires, 1)
	assert.Equal(t, "setuptools", m.BuildSystem.Requires[0].Name)

	assert.Equal(t, "pyliger", m.Project.Name)
	assert.Equal(t, "0.2.2", m.Project.Version)
	assert.Equal(t, "MIT", m.Project.License.Text)
	assert.Len(t, m.Project.Dependencies, 15)
	assert.Contains(t, m.Project.URLs, "Homepage")
	require.Len(t, m.Project.Authors, 1)
	assert.Equal(t, "Lab of Computational Medicine", m.Project.Authors[0].Name)
}

func TestParseRejectsBadTOML(t *testing.T) {
	_, err := Parse(strings.NewReader("[project\nname = "))
	assert.Error(t, err)
}

func TestParseRequirement(t *testing.T) {
	cases := []struct {
		in          string
		name        string
		constraints []Constraint
	}{
		{"numpy", "numpy", nil},
		{"numpy>=1.17", "numpy", []Constraint{{">=", "1.17"}}},
		{"pandas >= 1.0, < 3", "pandas", []Constraint{{">=", "1.0"}, {"<", "3"}}},
		{"scipy~=1.4", "scipy", []Constraint{{"~=", "1.4"}}},
		{"anndata==0.7.*", "anndata", []Constraint{{"==", "0.7.*"}}},
		{"broken>=", "broken", []Constraint{{">=", ""}}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			d := parseRequirement(tc.in)
			assert.Equal(t, tc.name, d.Name)
			assert.Equal(t, tc.constraints, d.Constraints)
			assert.Equal(t, tc.in, d.Raw)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Run("fixture is valid", func(t *testing.T) {
		m := parseFixture(t)
		assert.NoError(t, m.Validate())
	})

	t.Run("missing build backend", func(t *testing.T) {
		m := parseFixture(t)
		m.BuildSystem.BuildBackend = ""
		assert.ErrorIs(t, m.Validate(), ErrMissingBuildSystem)
	})

	t.Run("missing metadata", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Version = ""
		m.Project.Description = ""
		err := m.Validate()
		assert.ErrorIs(t, err, ErrMissingMetadata)
		assert.Contains(t, err.Error(), "Version")
		assert.Contains(t, err.Error(), "Description")
	})

	t.Run("missing license", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.License = License{}
		assert.ErrorIs(t, m.Validate(), ErrMissingMetadata)
	})

	t.Run("no authors", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Authors = nil
		assert.ErrorIs(t, m.Validate(), ErrMissingMetadata)
	})

	t.Run("empty dependency list is valid", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Dependencies = nil
		assert.NoError(t, m.Validate())
	})

	t.Run("bad dependency name", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Dependencies = append(m.Project.Dependencies, parseRequirement("-leading-dash"))
		assert.ErrorIs(t, m.Validate(), ErrBadName)
	})

	t.Run("constraint without version", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Dependencies = append(m.Project.Dependencies, parseRequirement("numba>="))
		assert.ErrorIs(t, m.Validate(), ErrBadConstraint)
	})

	t.Run("bad constraint version", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Dependencies = append(m.Project.Dependencies, parseRequirement("numba>=not.a.version"))
		assert.ErrorIs(t, m.Validate(), ErrBadConstraint)
	})

	t.Run("duplicate after normalization", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Dependencies = append(m.Project.Dependencies, parseRequirement("Scikit_Learn>=1.0"))
		assert.ErrorIs(t, m.Validate(), ErrDuplicateDependency)
	})

	t.Run("inconsistent interpreter range", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.RequiresPython = ">=4.0, <3.8"
		assert.ErrorIs(t, m.Validate(), ErrInconsistentRange)
	})

	t.Run("bad project version", func(t *testing.T) {
		m := parseFixture(t)
		m.Project.Version = "two.point.two"
		assert.ErrorIs(t, m.Validate(), ErrBadVersion)
	})
}

func TestInterpreterRange(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    InterpreterRange
		wantErr error
	}{
		{"empty", "", InterpreterRange{}, nil},
		{
			"both bounds", ">=3.8, <4.0",
			InterpreterRange{Lower: "3.8", LowerInclusive: true, Upper: "4.0"}, nil,
		},
		{
			"lower only", ">=3.6",
			InterpreterRange{Lower: "3.6", LowerInclusive: true}, nil,
		},
		{
			"upper only", "<=3.12",
			InterpreterRange{Upper: "3.12", UpperInclusive: true}, nil,
		},
		{
			"exact pin", "==3.10",
			InterpreterRange{Lower: "3.10", LowerInclusive: true, Upper: "3.10", UpperInclusive: true}, nil,
		},
		{"crossed", ">3.12, <3.8", InterpreterRange{}, ErrInconsistentRange},
		{"garbage clause", ">=banana", InterpreterRange{}, ErrBadConstraint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Project{RequiresPython: tc.in}
			got, err := p.InterpreterRange()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompareVersions(t *testing.T) {
	assert.Equal(t, 0, CompareVersions("3.8", "3.8.0"))
	assert.Equal(t, -1, CompareVersions("3.8", "4.0"))
	assert.Equal(t, 1, CompareVersions("3.10", "3.9"))
	assert.Equal(t, 0, CompareVersions("2.0rc1", "2.0.0"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "scikit-learn", NormalizeName("Scikit_Learn"))
	assert.Equal(t, "umap-learn", NormalizeName("umap..learn"))
	assert.Equal(t, "numpy", NormalizeName("numpy"))
}

func TestDependencySurface(t *testing.T) {
	m := parseFixture(t)
	surface := m.Project.DependencySurface()

	assert.Len(t, surface, 15)
	assert.Equal(t, ">=0.7.0", surface["anndata"])
	assert.Equal(t, "", surface["leidenalg"])
	assert.Equal(t, ">=1.17", surface["numpy"])
	assert.Contains(t, surface, "python-igraph")
}
