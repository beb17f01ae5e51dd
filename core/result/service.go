package result

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("results not found")
)

type (
	Repository interface {
		// SaveSheet atomically sets the sheet and its records, overwriting existing ones with the same IDs.
		SaveSheet(ctx context.Context, sheet Sheet, records []Record) error
		GetSheet(ctx context.Context, id string) (Sheet, error)
		QuerySheets(ctx context.Context, classID string) ([]Sheet, error)
		// QueryRecords applies AND operation on available RecordFilter fields.
		// Records are ordered by exam type, then student ID.
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	Service interface {
		Save(ctx context.Context, classID string, data SaveResults, by string) (Sheet, []Record, error)
		Results(ctx context.Context, classID, examType string) ([]Record, error)
		Sheets(ctx context.Context, classID string) ([]Sheet, error)
		StudentResults(ctx context.Context, studentID, classID string) ([]Record, error)
		ClassResults(ctx context.Context, classID string) ([]Record, error)
		StudentGrades(ctx context.Context, studentID string) ([]Grade, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Save sets the results sheet of the class for the exam type and one record per entry.
// Saving the same exam type again overwrites the scores of the given students, other records are kept.
func (svc *service) Save(ctx context.Context, classID string, data SaveResults, by string) (Sheet, []Record, error) {
	now := time.Now().UTC()
	sheet := Sheet{
		ID:        SheetID(classID, data.ExamType),
		ClassID:   classID,
		ExamType:  data.ExamType,
		UpdatedAt: now,
		UpdatedBy: by,
	}

	// last entry wins for duplicated students
	idx := make(map[string]int, len(data.Entries))
	records := make([]Record, 0, len(data.Entries))
	for _, e := range data.Entries {
		var score float64
		if e.Score != nil {
			score = *e.Score
		}
		rec := Record{
			ID:        RecordID(classID, data.ExamType, e.StudentID),
			ResultsID: sheet.ID,
			ClassID:   classID,
			ExamType:  data.ExamType,
			StudentID: e.StudentID,
			Score:     score,
			UpdatedAt: now,
		}
		if i, ok := idx[e.StudentID]; ok {
			records[i] = rec
			continue
		}
		idx[e.StudentID] = len(records)
		records = append(records, rec)
	}

	if err := svc.repo.SaveSheet(ctx, sheet, records); err != nil {
		return Sheet{}, nil, errors.Wrap(err, "saving results")
	}
	return sheet, records, nil
}

// Results returns the records of the class for the exam type, or none if results were never saved.
func (svc *service) Results(ctx context.Context, classID, examType string) ([]Record, error) {
	sheet, err := svc.repo.GetSheet(ctx, SheetID(classID, examType))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return []Record{}, nil
		}
		return nil, errors.Wrap(err, "finding results sheet")
	}
	return svc.repo.QueryRecords(ctx, RecordFilter{ResultsID: sheet.ID})
}

func (svc *service) Sheets(ctx context.Context, classID string) ([]Sheet, error) {
	return svc.repo.QuerySheets(ctx, classID)
}

func (svc *service) StudentResults(ctx context.Context, studentID, classID string) ([]Record, error) {
	if studentID == "" {
		return []Record{}, nil
	}
	return svc.repo.QueryRecords(ctx, RecordFilter{StudentID: studentID, ClassID: classID})
}

func (svc *service) ClassResults(ctx context.Context, classID string) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, RecordFilter{ClassID: classID})
}

// StudentGrades returns the overall grade of the student in every class they have results in.
func (svc *service) StudentGrades(ctx context.Context, studentID string) ([]Grade, error) {
	records, err := svc.StudentResults(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	return OverallGrades(records), nil
}
