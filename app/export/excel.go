// Package export writes bulk match reports as xlsx workbooks
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/atsdesk/atsdesk/app/api"
)

// Candidate is one ranked CV
type Candidate struct {
	Rank  int             `json:"rank"`
	File  string          `json:"file"`
	Match api.MatchResult `json:"match"`
}

// Report is a bulk match outcome
type Report struct {
	Label      string      `json:"label"`
	JDFile     string      `json:"jd_file"`
	JDTitle    string      `json:"jd_title,omitempty"`
	Generated  time.Time   `json:"generated"`
	Candidates []Candidate `json:"candidates"`
}

const (
	summarySheet    = "Summary"
	candidatesSheet = "Ranked Candidates"
)

// ToExcel writes report to outputPath, adding .xlsx extension if missing. Returns the final path.
func ToExcel(rep Report, outputPath string) (string, error) {
	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath += ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(candidatesSheet); err != nil {
		return "", fmt.Errorf("failed to add sheet: %w", err)
	}

	if err := writeSummary(f, rep); err != nil {
		return "", fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := writeCandidates(f, rep.Candidates); err != nil {
		return "", fmt.Errorf("failed to create candidates sheet: %w", err)
	}

	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", outputPath, err)
	}
	return outputPath, nil
}

func writeSummary(f *excelize.File, rep Report) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 50); err != nil {
		return err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Bulk Match Report")
	_ = f.SetCellStyle(summarySheet, "A1", "B1", headerStyle)
	_ = f.MergeCell(summarySheet, "A1", "B1")

	generated := rep.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	rows := [][2]any{
		{"Label:", rep.Label},
		{"Job description:", rep.JDFile},
		{"Job title:", rep.JDTitle},
		{"Generated:", generated.Format("2006-01-02 15:04:05")},
		{"Candidates:", len(rep.Candidates)},
	}
	if len(rep.Candidates) > 0 {
		top := rep.Candidates[0]
		rows = append(rows, [2]any{"Top candidate:", fmt.Sprintf("%s (%s), %.1f%%",
			top.Match.CandidateName, top.File, top.Match.GlobalScore*100)})
	}
	for i, r := range rows {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), r[0])
		_ = f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), r[1])
	}
	return nil
}

func writeCandidates(f *excelize.File, cands []Candidate) error {
	headers := []string{"Rank", "File", "Candidate", "CV title", "Global %", "Title", "Skills",
		"Certifications", "Experience", "Location"}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = f.SetCellValue(candidatesSheet, cell, h)
		_ = f.SetCellStyle(candidatesSheet, cell, cell, headerStyle)
	}
	if err := f.SetColWidth(candidatesSheet, "B", "D", 30); err != nil {
		return err
	}

	for i, c := range cands {
		m := c.Match
		vals := []any{c.Rank, c.File, m.CandidateName, m.CVTitle, round2(m.GlobalScore * 100),
			m.Scores.Title, m.Scores.Skills, m.Scores.Certifications, m.Scores.Experience, m.Scores.Location}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(candidatesSheet, cell, &vals); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	return nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
