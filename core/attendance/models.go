package attendance

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

var Statuses = []string{StatusPresent, StatusAbsent, StatusLate}

// Sheet is the attendance of a class for a given date.
type Sheet struct {
	ID        string    `json:"id" db:"id" firestore:"-"` // <classID>_<date>
	ClassID   string    `json:"class_id" db:"class_id" firestore:"classId"`
	Date      string    `json:"date" db:"date" firestore:"date"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" firestore:"updatedAt"`
	UpdatedBy string    `json:"updated_by" db:"updated_by" firestore:"updatedBy"`
}

// Record is the attendance status of one student on a Sheet.
type Record struct {
	ID           string    `json:"id" db:"id" firestore:"-"` // <classID>_<date>_<studentID>
	AttendanceID string    `json:"attendance_id" db:"attendance_id" firestore:"attendanceId"`
	ClassID      string    `json:"class_id" db:"class_id" firestore:"classId"`
	Date         string    `json:"date" db:"date" firestore:"date"`
	StudentID    string    `json:"student_id" db:"student_id" firestore:"studentId"` // school issued student number
	Status       string    `json:"status" db:"status" firestore:"status"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at" firestore:"updatedAt"`
}

func SheetID(classID, date string) string {
	return classID + "_" + date
}

func RecordID(classID, date, studentID string) string {
	return SheetID(classID, date) + "_" + studentID
}

type Entry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendancestatus"`
}

// MarkAttendance contains the statuses of the students of a class for a given date.
type MarkAttendance struct {
	Date    string  `json:"date" validate:"required,isodate"`
	Entries []Entry `json:"records" validate:"required,min=1,dive"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	ma.Date = core.CleanString(ma.Date)
	for i := range ma.Entries {
		ma.Entries[i].StudentID = core.CleanString(ma.Entries[i].StudentID)
		ma.Entries[i].Status = core.CleanString(ma.Entries[i].Status, true /* lower */)
	}
	return validate.Struct(ma)
}

type Summary struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"` // present / total, rounded
}

// Summarize counts records by status. Late students are not counted as present.
func Summarize(records []Record) Summary {
	var sum Summary
	for _, rec := range records {
		switch rec.Status {
		case StatusPresent:
			sum.Present++
		case StatusAbsent:
			sum.Absent++
		case StatusLate:
			sum.Late++
		}
	}
	sum.Total = len(records)
	if sum.Total > 0 {
		sum.Percentage = int(math.Round(float64(sum.Present) / float64(sum.Total) * 100))
	}
	return sum
}

type RecordFilter struct {
	AttendanceID string
	ClassID      string
	StudentID    string
	DateFrom     string `query:"from"`
	DateTo       string `query:"to"`
}
