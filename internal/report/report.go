// Package report writes the spreadsheet summaries: one workbook of working
// streams and one of failed streams, with failure reasons bucketed into a
// coarse category column for filtering.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Row is one stream line in a report sheet.
type Row struct {
	Group       string
	Title       string
	LastOK      time.Time
	LastChecked time.Time
	FailCount   int
	Reason      string // probe failure note; empty for working streams
	URL         string
	Logo        string
}

var okHeader = []string{"Group", "Title", "Last OK", "Last Checked", "Fail Count", "URL", "Logo"}

var failHeader = []string{"Group", "Title", "Last OK", "Last Checked", "Fail Count", "Error Category", "Reason", "URL", "Logo"}

// ClassifyError buckets a probe failure note into a coarse category.
func ClassifyError(note string) string {
	n := strings.ToLower(strings.TrimSpace(note))
	switch {
	case n == "":
		return ""
	case strings.Contains(n, "timeout") || strings.Contains(n, "timed out"):
		return "Timeout"
	case strings.Contains(n, "403"):
		return "HTTP 403"
	case strings.Contains(n, "401"):
		return "HTTP 401"
	case strings.Contains(n, "404"):
		return "HTTP 404"
	case strings.Contains(n, "connection refused") || strings.Contains(n, "could not connect"):
		return "Connect error"
	case strings.Contains(n, "decode") || strings.Contains(n, "codec"):
		return "Probe decode"
	default:
		return "Other"
	}
}

// WriteOK writes the working-streams workbook to path, plus a sibling .csv
// when addCSV is set.
func WriteOK(path string, rows []Row, addCSV bool) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Group, r.Title, timeCell(r.LastOK), timeCell(r.LastChecked),
			strconv.Itoa(r.FailCount), r.URL, r.Logo,
		})
	}
	return writeWorkbook(path, "Working Streams", okHeader, records, addCSV)
}

// WriteFail writes the failed-streams workbook to path, plus a sibling .csv
// when addCSV is set.
func WriteFail(path string, rows []Row, addCSV bool) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Group, r.Title, timeCell(r.LastOK), timeCell(r.LastChecked),
			strconv.Itoa(r.FailCount), ClassifyError(r.Reason), r.Reason, r.URL, r.Logo,
		})
	}
	return writeWorkbook(path, "Failed Streams", failHeader, records, addCSV)
}

func writeWorkbook(path, sheet string, header []string, records [][]string, addCSV bool) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: create %s: %w", dir, err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}

	widths := make([]int, len(header))
	writeRow := func(rowIdx int, cells []string) error {
		for col, v := range cells {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
			if col < len(widths) && len(v) > widths[col] {
				widths[col] = len(v)
			}
		}
		return nil
	}

	if err := writeRow(1, header); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for i, rec := range records {
		if err := writeRow(i+2, rec); err != nil {
			return fmt.Errorf("report: write row %d: %w", i+1, err)
		}
	}

	// Rough autofit, capped so URL columns stay readable.
	for col := range header {
		w := widths[col] + 2
		if w < 12 {
			w = 12
		}
		if w > 60 {
			w = 60
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("report: column name: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, float64(w)); err != nil {
			return fmt.Errorf("report: column width: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}

	if addCSV {
		if err := writeCSV(csvPath(path), header, records); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(path string, header []string, records [][]string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("report: write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return out.Close()
}

func csvPath(xlsxPath string) string {
	if strings.HasSuffix(xlsxPath, ".xlsx") {
		return strings.TrimSuffix(xlsxPath, ".xlsx") + ".csv"
	}
	return xlsxPath + ".csv"
}

func timeCell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
