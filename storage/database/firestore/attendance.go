package firestorerepos

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
)

func setAttendanceSheetID(sheet *attendance.Sheet, id string) { sheet.ID = id }
func setAttendanceRecordID(rec *attendance.Record, id string) { rec.ID = id }

type attendanceRepository struct {
	client *firestore.Client
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(client *firestore.Client) *attendanceRepository {
	return &attendanceRepository{client: client}
}

func (repo attendanceRepository) SaveSheet(ctx context.Context, sheet attendance.Sheet, records []attendance.Record) error {
	sheets := repo.client.Collection(attendanceCollection)
	recs := repo.client.Collection(attendanceRecordsCollection)

	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(sheets.Doc(sheet.ID), sheet); err != nil {
			return err
		}
		for _, rec := range records {
			if err := tx.Set(recs.Doc(rec.ID), rec); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "saving attendance sheet")
}

func (repo attendanceRepository) GetSheet(ctx context.Context, id string) (attendance.Sheet, error) {
	if id == "" {
		return attendance.Sheet{}, attendance.ErrNotFound
	}
	return getOne(ctx, repo.client.Collection(attendanceCollection).Doc(id), attendance.ErrNotFound, setAttendanceSheetID)
}

func (repo attendanceRepository) QuerySheets(ctx context.Context, classID string) ([]attendance.Sheet, error) {
	q := repo.client.Collection(attendanceCollection).Where(fieldClassID, "==", classID)
	sheets, err := getAll(ctx, q, setAttendanceSheetID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance sheets")
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Date < sheets[j].Date })
	return sheets, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	q := repo.client.Collection(attendanceRecordsCollection).Query
	if filter.AttendanceID != "" {
		q = q.Where(fieldAttendanceID, "==", filter.AttendanceID)
	}
	if filter.ClassID != "" {
		q = q.Where(fieldClassID, "==", filter.ClassID)
	}
	if filter.StudentID != "" {
		q = q.Where(fieldStudentID, "==", filter.StudentID)
	}

	records, err := getAll(ctx, q, setAttendanceRecordID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	// date range is applied in memory to avoid composite indexes
	filtered := records[:0]
	for _, rec := range records {
		if (filter.DateFrom != "" && rec.Date < filter.DateFrom) || (filter.DateTo != "" && rec.Date > filter.DateTo) {
			continue
		}
		filtered = append(filtered, rec)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Date != filtered[j].Date {
			return filtered[i].Date < filtered[j].Date
		}
		return filtered[i].StudentID < filtered[j].StudentID
	})
	return filtered, nil
}
