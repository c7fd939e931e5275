package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v; want nil, nil", om, err)
	}
	// nil manager methods are no-ops
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := int64(1); i <= 3; i++ {
		stats := WindowStats{
			WindowEndTick: i * 10,
			Live:          25,
			EnergyMean:    float64(440 + i),
			Substrates: []SubstrateStats{
				{WindowEndTick: i * 10, Substrate: "oxygen", IntraMean: 1},
				{WindowEndTick: i * 10, Substrate: "glucose", IntraMean: 2},
			},
		}
		if err := om.WriteTelemetry(stats); err != nil {
			t.Fatal(err)
		}
		if err := om.WritePerf(PerfStats{}, i*10); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteCells([]CellRecord{{ID: 1, State: "arrested"}, {ID: 2, State: "proliferative"}}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	var rows []WindowStats
	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		t.Fatalf("reading telemetry.csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("telemetry rows = %d, want 3 (header written once)", len(rows))
	}
	if rows[2].WindowEndTick != 30 || rows[2].EnergyMean != 443 {
		t.Errorf("last row = %+v", rows[2])
	}

	subs, err := os.ReadFile(filepath.Join(dir, "substrates.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(string(subs), "\n"); lines != 7 {
		t.Errorf("substrates.csv has %d lines, want 7 (header + 6 rows)", lines)
	}

	var cells []CellRecord
	data, err = os.ReadFile(filepath.Join(dir, "cells.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if err := gocsv.UnmarshalBytes(data, &cells); err != nil {
		t.Fatalf("reading cells.csv: %v", err)
	}
	if len(cells) != 2 || cells[1].State != "proliferative" {
		t.Errorf("cells = %+v", cells)
	}
}
