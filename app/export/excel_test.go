package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/atsdesk/atsdesk/app/api"
)

func testReport() Report {
	return Report{
		Label:     "Backend Go",
		JDFile:    "jd.pdf",
		JDTitle:   "Go Developer",
		Generated: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		Candidates: []Candidate{
			{Rank: 1, File: "alice.pdf", Match: api.MatchResult{CandidateName: "Alice", CVTitle: "SWE", GlobalScore: 0.8123,
				Scores: api.Scores{Title: 0.9, Skills: 0.8}}},
			{Rank: 2, File: "bob.docx", Match: api.MatchResult{CandidateName: "Bob", GlobalScore: 0.5}},
		},
	}
}

func TestToExcel(t *testing.T) {
	out, err := ToExcel(testReport(), filepath.Join(t.TempDir(), "report"))
	require.NoError(t, err)
	assert.Equal(t, ".xlsx", filepath.Ext(out))
	_, err = os.Stat(out)
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet, candidatesSheet}, f.GetSheetList())

	label, err := f.GetCellValue(summarySheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Backend Go", label)
	top, err := f.GetCellValue(summarySheet, "B8")
	require.NoError(t, err)
	assert.Equal(t, "Alice (alice.pdf), 81.2%", top)

	rows, err := f.GetRows(candidatesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Rank", rows[0][0])
	assert.Equal(t, []string{"1", "alice.pdf", "Alice", "SWE", "81.23"}, rows[1][:5])
	assert.Equal(t, "bob.docx", rows[2][1])
}

func TestToExcel_KeepsExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.XLSX")
	out, err := ToExcel(Report{Label: "empty"}, path)
	require.NoError(t, err)
	assert.Equal(t, path, out)
}

func TestToExcel_BadPath(t *testing.T) {
	_, err := ToExcel(testReport(), "/nonexistent/dir/report.xlsx")
	assert.Error(t, err)
}

func TestRound2(t *testing.T) {
	assert.InDelta(t, 81.23, round2(81.2345), 0.0001)
	assert.InDelta(t, 50.0, round2(50), 0.0001)
}
