package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

func TestWriteApplications(t *testing.T) {
	score := 81.5
	avg := 81.5
	report := Report{
		Generated: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Stats: &pipeline.ApplicationStats{
			Total:        2,
			ByStatus:     map[pipeline.ApplicationStatus]int{pipeline.StatusPending: 1, pipeline.StatusScreening: 1},
			AverageScore: &avg,
		},
		Applications: []pipeline.Application{
			{ID: 7, CandidateName: "Ann", CandidateEmail: "ann@example.com", JobTitle: "Backend Engineer", Status: pipeline.StatusScreening, MatchScore: &score},
			{ID: 8, CandidateName: "Bob", CandidateEmail: "bob@example.com", JobTitle: "Backend Engineer", Status: pipeline.StatusPending},
		},
	}

	var buf bytes.Buffer
	if err := WriteApplications(&buf, report); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(applicationsSheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[1][2] != "ann@example.com" || rows[1][5] != "81.5" {
		t.Fatalf("unexpected first row: %v", rows[1])
	}
	if len(rows[2]) > 5 && rows[2][5] != "" {
		t.Fatalf("expected empty score for unscored application, got %q", rows[2][5])
	}

	title, err := f.GetCellValue(summarySheet, "A1")
	if err != nil || title != "Applications Report" {
		t.Fatalf("unexpected title %q, %v", title, err)
	}
	generated, _ := f.GetCellValue(summarySheet, "B3")
	if generated != "2026-05-01 12:00:00" {
		t.Fatalf("unexpected generated cell %q", generated)
	}
}

func TestSaveApplicationsAddsExtension(t *testing.T) {
	path, err := SaveApplications(filepath.Join(t.TempDir(), "report"), Report{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Ext(path) != ".xlsx" {
		t.Fatalf("expected .xlsx extension, got %s", path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open saved workbook: %v", err)
	}
	f.Close()
}
