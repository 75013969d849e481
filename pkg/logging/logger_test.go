// Copyright (C) 2025 Enformatik (oss@enformatik.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != LevelDebug {
		t.Error("ParseLevel(debug) != LevelDebug")
	}
	if ParseLevel("nonsense") != LevelInfo {
		t.Error("ParseLevel should default to LevelInfo")
	}
}

func TestLogger_Sink(t *testing.T) {
	t.Run("entries reach the sink as JSON", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{
			Level:   LevelInfo,
			Service: "test",
			Quiet:   true,
			Sink:    &buf,
		})

		logger.Info("normalized dataset", "cells", 100, "genes", 2000)

		var entry map[string]any
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("sink output is not JSON: %v", err)
		}
		if entry["msg"] != "normalized dataset" {
			t.Errorf("msg = %v, want %q", entry["msg"], "normalized dataset")
		}
		if entry["service"] != "test" {
			t.Errorf("service = %v, want test", entry["service"])
		}
	})

	t.Run("level filter drops debug entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Level: LevelWarn, Quiet: true, Sink: &buf})

		logger.Debug("hidden")
		logger.Info("hidden too")
		logger.Warn("visible")

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Errorf("filtered entries leaked: %s", out)
		}
		if !strings.Contains(out, "visible") {
			t.Errorf("warn entry missing: %s", out)
		}
	})

	t.Run("With carries attributes to children", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(Config{Quiet: true, Sink: &buf})

		child := logger.With("sample", "pbmc_ctrl")
		child.Info("reading")

		if !strings.Contains(buf.String(), "pbmc_ctrl") {
			t.Errorf("child attribute missing: %s", buf.String())
		}
	})
}

func TestLogger_FileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  tmpDir,
		Service: "liger",
		Quiet:   true,
	})

	logger.Info("scale complete", "genes", 12)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1 log file", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "scale complete") {
		t.Errorf("log file missing entry: %s", data)
	}
}
