// Package export renders pipeline data as spreadsheets.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/hire-matcher/internal/pipeline"
)

const (
	summarySheet      = "Summary"
	applicationsSheet = "Applications"
)

var applicationHeaders = []string{
	"ID", "Candidate", "Email", "Job", "Status", "Match Score", "Skills Match",
	"Experience Match", "Recommendation", "Applied At", "Summary",
}

// Report is the content of an applications workbook.
type Report struct {
	Title        string
	Generated    time.Time
	Stats        *pipeline.ApplicationStats
	Applications []pipeline.Application
}

// WriteApplications writes the report as an xlsx workbook to w.
func WriteApplications(w io.Writer, report Report) error {
	f, err := build(report)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// SaveApplications writes the report to path, adding the .xlsx extension when missing.
func SaveApplications(path string, report Report) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteApplications(out, report); err != nil {
		out.Close()
		return "", err
	}
	return path, out.Close()
}

func build(report Report) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(applicationsSheet); err != nil {
		f.Close()
		return nil, err
	}

	if err := writeSummary(f, report); err != nil {
		f.Close()
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeApplications(f, report.Applications); err != nil {
		f.Close()
		return nil, fmt.Errorf("applications sheet: %w", err)
	}
	return f, nil
}

func writeSummary(f *excelize.File, report Report) error {
	f.SetColWidth(summarySheet, "A", "A", 25)
	f.SetColWidth(summarySheet, "B", "B", 40)

	title, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	label, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	name := report.Title
	if name == "" {
		name = "Applications Report"
	}
	f.SetCellValue(summarySheet, "A1", name)
	f.SetCellStyle(summarySheet, "A1", "B1", title)
	f.MergeCell(summarySheet, "A1", "B1")

	generated := report.Generated
	if generated.IsZero() {
		generated = time.Now()
	}

	rows := [][2]any{
		{"Generated:", generated.UTC().Format("2006-01-02 15:04:05")},
		{"Applications:", len(report.Applications)},
	}
	if stats := report.Stats; stats != nil {
		rows = append(rows, [2]any{"Total in pipeline:", stats.Total})
		if stats.AverageScore != nil {
			rows = append(rows, [2]any{"Average match score:", *stats.AverageScore})
		}
		for _, status := range pipeline.ApplicationStatuses {
			rows = append(rows, [2]any{statusLabel(status) + ":", stats.ByStatus[status]})
		}
	}

	for i, r := range rows {
		row := i + 3
		a := fmt.Sprintf("A%d", row)
		f.SetCellValue(summarySheet, a, r[0])
		f.SetCellStyle(summarySheet, a, a, label)
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r[1])
	}
	return nil
}

func writeApplications(f *excelize.File, apps []pipeline.Application) error {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}

	for i, h := range applicationHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(applicationsSheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(applicationHeaders), 1)
	f.SetCellStyle(applicationsSheet, "A1", last, header)
	f.SetColWidth(applicationsSheet, "B", "D", 28)
	f.SetColWidth(applicationsSheet, "K", "K", 60)

	for i, app := range apps {
		values := []any{
			app.ID,
			app.CandidateName,
			app.CandidateEmail,
			app.JobTitle,
			string(app.Status),
			optional(app.MatchScore),
			optional(app.SkillsMatch),
			optional(app.ExperienceMatch),
			string(app.AIRecommendation),
			app.AppliedAt.UTC().Format("2006-01-02 15:04"),
			app.AISummary,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(applicationsSheet, cell, &values); err != nil {
			return err
		}
	}

	return f.SetPanes(applicationsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func optional(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func statusLabel(status pipeline.ApplicationStatus) string {
	s := string(status)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
