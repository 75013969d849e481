// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"testing"

	"github.com/enformatik/pyliger/services/liger/tenx"
)

func TestSamplesFromArgs(t *testing.T) {
	t.Run("default names from directories", func(t *testing.T) {
		samples, err := samplesFromArgs([]string{"/data/ctrl/", "/data/stim"}, nil)
		if err != nil {
			t.Fatalf("samplesFromArgs: %v", err)
		}
		if samples[0].Name != "ctrl" || samples[1].Name != "stim" {
			t.Errorf("names = %q, %q", samples[0].Name, samples[1].Name)
		}
	})

	t.Run("explicit names", func(t *testing.T) {
		samples, err := samplesFromArgs([]string{"/a", "/b"}, []string{"first", "second"})
		if err != nil {
			t.Fatalf("samplesFromArgs: %v", err)
		}
		if samples[0].Name != "first" || samples[1].Name != "second" {
			t.Errorf("names = %q, %q", samples[0].Name, samples[1].Name)
		}
	})

	t.Run("name count mismatch", func(t *testing.T) {
		if _, err := samplesFromArgs([]string{"/a", "/b"}, []string{"only"}); err == nil {
			t.Fatal("expected error for mismatched name count")
		}
	})
}

func TestOptionsFingerprint(t *testing.T) {
	base := tenx.Options{DataType: tenx.DataTypeRNA, UseFiltered: true}
	same := tenx.Options{DataType: tenx.DataTypeRNA, UseFiltered: true}
	if optionsFingerprint(base) != optionsFingerprint(same) {
		t.Error("identical options produce different fingerprints")
	}

	changed := base
	changed.MinUMI = 500
	if optionsFingerprint(base) == optionsFingerprint(changed) {
		t.Error("MinUMI change not reflected in fingerprint")
	}

	changed = base
	changed.UseFiltered = false
	if optionsFingerprint(base) == optionsFingerprint(changed) {
		t.Error("UseFiltered change not reflected in fingerprint")
	}
}
