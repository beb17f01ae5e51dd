package report

import (
	"bytes"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

var students = []user.User{
	{ID: "u1", Name: "Amani Juma", StudentID: "S001"},
	{ID: "u2", Name: "Baraka Otieno", StudentID: "S002"},
	{ID: "u3", Name: "New Student"},
}

func TestAttendanceTable(t *testing.T) {
	records := []attendance.Record{
		{StudentID: "S001", Date: "2024-09-30", Status: attendance.StatusPresent},
		{StudentID: "S001", Date: "2024-09-02", Status: attendance.StatusLate},
		{StudentID: "S002", Date: "2024-09-30", Status: attendance.StatusAbsent},
		{StudentID: "S999", Date: "2024-10-01", Status: attendance.StatusPresent}, // not enrolled anymore
	}

	table := AttendanceTable(students, records)
	assert.Equal(t, []string{"Student ID", "Name", "2024-09-02", "2024-09-30", "2024-10-01"}, table.Header)
	assert.Equal(t, [][]interface{}{
		{"S001", "Amani Juma", attendance.StatusLate, attendance.StatusPresent, "N/A"},
		{"S002", "Baraka Otieno", "N/A", attendance.StatusAbsent, "N/A"},
		{"", "New Student", "N/A", "N/A", "N/A"},
	}, table.Rows)
}

func TestResultsTable(t *testing.T) {
	records := []result.Record{
		{StudentID: "S001", ExamType: result.ExamMidterm, Score: 80},
		{StudentID: "S001", ExamType: result.ExamFinal, Score: 90},
		{StudentID: "S001", ExamType: result.ExamGroupWork, Score: 70},
		{StudentID: "S001", ExamType: result.ExamParticipation, Score: 100},
		{StudentID: "S002", ExamType: result.ExamFinal, Score: 45.5},
	}

	table := ResultsTable(students, records)
	assert.Equal(t, []string{"Student ID", "Name", "Midterm", "Final", "Group Work", "Participation", "Total"}, table.Header)
	assert.Equal(t, [][]interface{}{
		{"S001", "Amani Juma", 80.0, 90.0, 70.0, 100.0, "84.00"},
		{"S002", "Baraka Otieno", "N/A", 45.5, "N/A", "N/A", "18.20"},
		{"", "New Student", "N/A", "N/A", "N/A", "N/A", "0.00"},
	}, table.Rows)
}

func TestFilename(t *testing.T) {
	at := time.Date(2024, time.September, 30, 14, 5, 9, 123000000, time.UTC)
	tests := []struct {
		className string
		want      string
	}{
		{className: "Form 2B", want: "Form 2B_attendance_2024-09-30T14-05-09-123Z.xlsx"},
		{className: "../../etc", want: "..-..-etc_attendance_2024-09-30T14-05-09-123Z.xlsx"},
		{className: `Form 2\B/North`, want: "Form 2-B-North_attendance_2024-09-30T14-05-09-123Z.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.className, func(t *testing.T) {
			name := Filename(tt.className, KindAttendance, at)
			assert.Equal(t, tt.want, name)
			assert.Equal(t, "reports/"+name, path.Join("reports", name))
		})
	}
}

func TestWriteWorkbook(t *testing.T) {
	table := Table{
		Header: []string{"Student ID", "Name", "Final"},
		Rows: [][]interface{}{
			{"S001", "Amani Juma", 90.5},
			{"S002", "Baraka Otieno", "N/A"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, "Results", table))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{"Results"}, f.GetSheetList())
	rows, err := f.GetRows("Results")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Student ID", "Name", "Final"},
		{"S001", "Amani Juma", "90.5"},
		{"S002", "Baraka Otieno", "N/A"},
	}, rows)
}
