package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
)

const (
	attendanceColumns       = "id, class_id, date, updated_at, updated_by"
	attendanceRecordColumns = "id, attendance_id, class_id, date, student_id, status, updated_at"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) SaveSheet(ctx context.Context, sheet attendance.Sheet, records []attendance.Record) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO attendance (` + attendanceColumns + `) VALUES (:id, :class_id, :date, :updated_at, :updated_by)
			ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`
		if _, err := tx.NamedExecContext(ctx, q, sheet); err != nil {
			return errors.Wrap(err, "upserting attendance sheet")
		}

		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO attendance_records (`+attendanceRecordColumns+`)
			VALUES (:id, :attendance_id, :class_id, :date, :student_id, :status, :updated_at)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return errors.Wrap(err, "preparing attendance records upsert")
		}
		defer func() { _ = stmt.Close() }()

		for _, rec := range records {
			if _, err = stmt.ExecContext(ctx, rec); err != nil {
				return errors.Wrap(err, "upserting attendance record")
			}
		}
		return nil
	})
}

func (repo attendanceRepository) GetSheet(ctx context.Context, id string) (attendance.Sheet, error) {
	var sheet attendance.Sheet
	q := repo.db.Rebind("SELECT " + attendanceColumns + " FROM attendance WHERE id = ?")
	if err := repo.db.GetContext(ctx, &sheet, q, id); err != nil {
		return attendance.Sheet{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding attendance sheet")
	}
	return sheet, nil
}

func (repo attendanceRepository) QuerySheets(ctx context.Context, classID string) ([]attendance.Sheet, error) {
	sheets := make([]attendance.Sheet, 0)
	q := repo.db.Rebind("SELECT " + attendanceColumns + " FROM attendance WHERE class_id = ? ORDER BY date ASC")
	if err := repo.db.SelectContext(ctx, &sheets, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying attendance sheets")
	}
	return sheets, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	q := new(query)
	if filter.AttendanceID != "" {
		q.add("attendance_id = ?", filter.AttendanceID)
	}
	if filter.ClassID != "" {
		q.add("class_id = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		q.add("student_id = ?", filter.StudentID)
	}
	if filter.DateFrom != "" {
		q.add("date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q.add("date <= ?", filter.DateTo)
	}

	records := make([]attendance.Record, 0)
	sqlStr, args := q.build(repo.db, "SELECT "+attendanceRecordColumns+" FROM attendance_records", "date ASC, student_id ASC")
	if err := repo.db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return records, nil
}
