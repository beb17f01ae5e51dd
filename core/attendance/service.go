package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("attendance not found")
)

type (
	Repository interface {
		// SaveSheet atomically sets the sheet and its records, overwriting existing ones with the same IDs.
		SaveSheet(ctx context.Context, sheet Sheet, records []Record) error
		GetSheet(ctx context.Context, id string) (Sheet, error)
		QuerySheets(ctx context.Context, classID string) ([]Sheet, error)
		// QueryRecords applies AND operation on available RecordFilter fields.
		// Records are ordered by date, then student ID.
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
	}

	Service interface {
		Mark(ctx context.Context, classID string, data MarkAttendance, by string) (Sheet, []Record, error)
		ByDate(ctx context.Context, classID, date string) ([]Record, error)
		Sheets(ctx context.Context, classID string) ([]Sheet, error)
		StudentAttendance(ctx context.Context, studentID, classID string) ([]Record, error)
		ClassAttendance(ctx context.Context, classID string, filter ...RecordFilter) ([]Record, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Mark sets the attendance sheet of the class for the date and one record per entry.
// Marking the same date again overwrites the statuses of the given students, other records are kept.
func (svc *service) Mark(ctx context.Context, classID string, data MarkAttendance, by string) (Sheet, []Record, error) {
	now := time.Now().UTC()
	sheet := Sheet{
		ID:        SheetID(classID, data.Date),
		ClassID:   classID,
		Date:      data.Date,
		UpdatedAt: now,
		UpdatedBy: by,
	}

	// last entry wins for duplicated students
	idx := make(map[string]int, len(data.Entries))
	records := make([]Record, 0, len(data.Entries))
	for _, e := range data.Entries {
		rec := Record{
			ID:           RecordID(classID, data.Date, e.StudentID),
			AttendanceID: sheet.ID,
			ClassID:      classID,
			Date:         data.Date,
			StudentID:    e.StudentID,
			Status:       e.Status,
			UpdatedAt:    now,
		}
		if i, ok := idx[e.StudentID]; ok {
			records[i] = rec
			continue
		}
		idx[e.StudentID] = len(records)
		records = append(records, rec)
	}

	if err := svc.repo.SaveSheet(ctx, sheet, records); err != nil {
		return Sheet{}, nil, errors.Wrap(err, "saving attendance")
	}
	return sheet, records, nil
}

// ByDate returns the records of the class for the date, or none if attendance was never taken.
func (svc *service) ByDate(ctx context.Context, classID, date string) ([]Record, error) {
	sheet, err := svc.repo.GetSheet(ctx, SheetID(classID, date))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return []Record{}, nil
		}
		return nil, errors.Wrap(err, "finding attendance sheet")
	}
	return svc.repo.QueryRecords(ctx, RecordFilter{AttendanceID: sheet.ID})
}

func (svc *service) Sheets(ctx context.Context, classID string) ([]Sheet, error) {
	return svc.repo.QuerySheets(ctx, classID)
}

func (svc *service) StudentAttendance(ctx context.Context, studentID, classID string) ([]Record, error) {
	if studentID == "" {
		return []Record{}, nil
	}
	return svc.repo.QueryRecords(ctx, RecordFilter{StudentID: studentID, ClassID: classID})
}

func (svc *service) ClassAttendance(ctx context.Context, classID string, filter ...RecordFilter) ([]Record, error) {
	var f RecordFilter
	if len(filter) > 0 {
		f = filter[0]
	}
	f.ClassID = classID
	f.AttendanceID = ""
	return svc.repo.QueryRecords(ctx, f)
}
