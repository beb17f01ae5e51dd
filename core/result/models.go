package result

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Exam types
const (
	ExamMidterm       = "midterm"
	ExamFinal         = "final"
	ExamGroupWork     = "groupwork"
	ExamParticipation = "participation"
)

var (
	ExamTypes = []string{ExamMidterm, ExamFinal, ExamGroupWork, ExamParticipation}

	ExamLabels = map[string]string{
		ExamMidterm:       "Midterm",
		ExamFinal:         "Final",
		ExamGroupWork:     "Group Work",
		ExamParticipation: "Participation",
	}
)

// Sheet holds the results of a class for a given exam type.
type Sheet struct {
	ID        string    `json:"id" db:"id" firestore:"-"` // <classID>_<examType>
	ClassID   string    `json:"class_id" db:"class_id" firestore:"classId"`
	ExamType  string    `json:"exam_type" db:"exam_type" firestore:"examType"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" firestore:"updatedAt"`
	UpdatedBy string    `json:"updated_by" db:"updated_by" firestore:"updatedBy"`
}

// Record is the score of one student on a Sheet.
type Record struct {
	ID        string    `json:"id" db:"id" firestore:"-"` // <classID>_<examType>_<studentID>
	ResultsID string    `json:"results_id" db:"results_id" firestore:"resultsId"`
	ClassID   string    `json:"class_id" db:"class_id" firestore:"classId"`
	ExamType  string    `json:"exam_type" db:"exam_type" firestore:"examType"`
	StudentID string    `json:"student_id" db:"student_id" firestore:"studentId"` // school issued student number
	Score     float64   `json:"score" db:"score" firestore:"score"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" firestore:"updatedAt"`
}

func SheetID(classID, examType string) string {
	return classID + "_" + examType
}

func RecordID(classID, examType, studentID string) string {
	return SheetID(classID, examType) + "_" + studentID
}

type Entry struct {
	StudentID string   `json:"student_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required,min=0,max=100"`
}

// SaveResults contains the scores of the students of a class for a given exam type.
type SaveResults struct {
	ExamType string  `json:"exam_type" validate:"required,examtype"`
	Entries  []Entry `json:"records" validate:"required,min=1,dive"`
}

func (sr *SaveResults) Validate(validate *validator.Validate) error {
	sr.ExamType = core.CleanString(sr.ExamType, true /* lower */)
	for i := range sr.Entries {
		sr.Entries[i].StudentID = core.CleanString(sr.Entries[i].StudentID)
	}
	return validate.Struct(sr)
}

type RecordFilter struct {
	ResultsID string
	ClassID   string
	StudentID string
	ExamType  string
}
