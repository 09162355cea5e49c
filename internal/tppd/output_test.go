package tppd

import (
	"bytes"
	"math"
	"reflect"
	"strings"
	"testing"
)

func Test_FDRCSV_rethreshold(t *testing.T) {
	// re-running hit calling from a written table must see the same rows
	table := []FDRRow{
		{Clustername: "hit", F: math.Inf(1), NObs: 40, PValue: 0, FDR: 0, Degenerate: true},
		{Clustername: "P1", F: 12.5, NObs: 40, PValue: 0.001, FDR: 0.05},
		{Clustername: "P2", F: 0.5, NObs: 40, PValue: 0.6, FDR: 1},
	}

	var buf bytes.Buffer
	if err := WriteFDRCSV(&buf, table); err != nil {
		t.Fatalf("WriteFDRCSV() err = %v", err)
	}

	read, err := ReadFDRCSV(&buf)
	if err != nil {
		t.Fatalf("ReadFDRCSV() err = %v", err)
	}
	if !reflect.DeepEqual(read, table) {
		t.Errorf("ReadFDRCSV() = %v, want %v", read, table)
	}

	hits := FindHits(read, 0.1)
	if len(hits) != 2 || hits[0].Clustername != "hit" || hits[1].Clustername != "P1" {
		t.Errorf("FindHits() after round trip = %v, want [hit P1]", hits)
	}
}

func Test_WriteParamsCSV_invalidRows(t *testing.T) {
	params := []ModelParams{
		{Clustername: "good", NObs: 40, Valid: true, DF0: 36, DF1: 34,
			Null: FitResult{RSS: 4}, Alt: FitResult{RSS: 2}, Infl: -7, Slope: 2},
		// a failed fit must keep its row, flagged, with empty fit fields
		{Clustername: "failed", NObs: 40},
	}

	var buf bytes.Buffer
	if err := WriteParamsCSV(&buf, params); err != nil {
		t.Fatalf("WriteParamsCSV() err = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("WriteParamsCSV() wrote %d lines, want header + 2 rows", len(lines))
	}
	if !strings.Contains(lines[2], "failed") || !strings.Contains(lines[2], "false") {
		t.Errorf("WriteParamsCSV() invalid row = %q, want the protein kept and flagged", lines[2])
	}
}

func Test_ReadFDRCSV_schema(t *testing.T) {
	in := "clustername,F\nP1,2.0\n"

	if _, err := ReadFDRCSV(strings.NewReader(in)); err == nil {
		t.Error("ReadFDRCSV() expected a schema error for a table without fdr, got nil")
	}
}
