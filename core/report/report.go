package report

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

// Kinds
const (
	KindAttendance = "attendance"
	KindResults    = "results"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	Dir         = "reports"
	missing     = "N/A"
)

var sheetNames = map[string]string{
	KindAttendance: "Attendance",
	KindResults:    "Results",
}

// Table is the content of a report sheet. Row cells are strings or numbers.
type Table struct {
	Header []string
	Rows   [][]interface{}
}

// AttendanceTable has one row per student and one column per date, dates ascending.
func AttendanceTable(students []user.User, records []attendance.Record) Table {
	statuses := make(map[string]map[string]string) // {studentID: {date: status}}
	dateSet := make(map[string]struct{})
	for _, rec := range records {
		s, ok := statuses[rec.StudentID]
		if !ok {
			s = make(map[string]string)
			statuses[rec.StudentID] = s
		}
		s[rec.Date] = rec.Status
		dateSet[rec.Date] = struct{}{}
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	table := Table{Header: append([]string{"Student ID", "Name"}, dates...)}
	for _, std := range students {
		row := make([]interface{}, 0, len(table.Header))
		row = append(row, std.StudentID, std.Name)
		for _, d := range dates {
			if status, ok := statuses[std.StudentID][d]; ok && std.StudentID != "" {
				row = append(row, status)
			} else {
				row = append(row, missing)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// ResultsTable has one row per student with their score per exam type and the weighted total.
func ResultsTable(students []user.User, records []result.Record) Table {
	scores := result.ScoresByStudent(records)

	table := Table{Header: []string{"Student ID", "Name"}}
	for _, examType := range result.ExamTypes {
		table.Header = append(table.Header, result.ExamLabels[examType])
	}
	table.Header = append(table.Header, "Total")

	for _, std := range students {
		var stdScores map[string]float64
		if std.StudentID != "" {
			stdScores = scores[std.StudentID]
		}
		row := make([]interface{}, 0, len(table.Header))
		row = append(row, std.StudentID, std.Name)
		for _, examType := range result.ExamTypes {
			if score, ok := stdScores[examType]; ok {
				row = append(row, score)
			} else {
				row = append(row, missing)
			}
		}
		row = append(row, strconv.FormatFloat(result.ReportTotal(stdScores), 'f', 2, 64))
		table.Rows = append(table.Rows, row)
	}
	return table
}

var pathSepReplacer = strings.NewReplacer("/", "-", "\\", "-")

// Filename returns `<className>_<kind>_<timestamp>.xlsx`, with ":" and "." replaced by "-" in the timestamp.
// Path separators in className are replaced by "-", keeping the name a single path segment.
func Filename(className, kind string, at time.Time) string {
	ts := at.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return pathSepReplacer.Replace(className) + "_" + kind + "_" + ts + ".xlsx"
}

// WriteWorkbook writes table as the single sheet of an xlsx workbook.
func WriteWorkbook(w io.Writer, sheet string, table Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	header := make([]interface{}, 0, len(table.Header))
	for _, h := range table.Header {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "naming cell")
		}
		row := row
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
