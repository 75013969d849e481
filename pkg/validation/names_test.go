// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "testing"

func TestValidateSampleName(t *testing.T) {
	valid := []string{"pbmc_ctrl", "sample-1", "S1.rep2", "A"}
	for _, name := range valid {
		if err := ValidateSampleName(name); err != nil {
			t.Errorf("ValidateSampleName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", ".hidden", "-lead", "has space", "semi;colon", "a/b"}
	for _, name := range invalid {
		if err := ValidateSampleName(name); err == nil {
			t.Errorf("ValidateSampleName(%q) = nil, want error", name)
		}
	}
}

func TestValidateSampleNames(t *testing.T) {
	if err := ValidateSampleNames([]string{"a1", "a2"}); err != nil {
		t.Errorf("distinct names rejected: %v", err)
	}
	if err := ValidateSampleNames([]string{"a1", "a1"}); err == nil {
		t.Error("duplicate names accepted")
	}
}

func TestValidateGeneName(t *testing.T) {
	valid := []string{"GAPDH", "Cd8a", "HLA-DRA", "RP11-34P13.3", "chr1:10000-10500"}
	for _, name := range valid {
		if err := ValidateGeneName(name); err != nil {
			t.Errorf("ValidateGeneName(%q) = %v, want nil", name, err)
		}
	}
	if err := ValidateGeneName(""); err == nil {
		t.Error("empty gene name accepted")
	}
	if err := ValidateGeneName("bad gene"); err == nil {
		t.Error("gene name with space accepted")
	}
}

func TestValidateDataDir(t *testing.T) {
	if err := ValidateDataDir("data/pbmc"); err != nil {
		t.Errorf("relative path rejected: %v", err)
	}
	if err := ValidateDataDir("/abs/path"); err != nil {
		t.Errorf("absolute path rejected: %v", err)
	}
	if err := ValidateDataDir("../escape"); err == nil {
		t.Error("parent escape accepted")
	}
	if err := ValidateDataDir(""); err == nil {
		t.Error("empty path accepted")
	}
}
