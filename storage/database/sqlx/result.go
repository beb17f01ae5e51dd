package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/result"
)

const (
	resultsColumns       = "id, class_id, exam_type, updated_at, updated_by"
	resultsRecordColumns = "id, results_id, class_id, exam_type, student_id, score, updated_at"
)

type resultRepository struct {
	db *sqlx.DB
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db *sqlx.DB) *resultRepository {
	return &resultRepository{db: db}
}

func (repo resultRepository) SaveSheet(ctx context.Context, sheet result.Sheet, records []result.Record) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q := `INSERT INTO results (` + resultsColumns + `) VALUES (:id, :class_id, :exam_type, :updated_at, :updated_by)
			ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at, updated_by = EXCLUDED.updated_by`
		if _, err := tx.NamedExecContext(ctx, q, sheet); err != nil {
			return errors.Wrap(err, "upserting results sheet")
		}

		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO results_records (`+resultsRecordColumns+`)
			VALUES (:id, :results_id, :class_id, :exam_type, :student_id, :score, :updated_at)
			ON CONFLICT (id) DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`)
		if err != nil {
			return errors.Wrap(err, "preparing results records upsert")
		}
		defer func() { _ = stmt.Close() }()

		for _, rec := range records {
			if _, err = stmt.ExecContext(ctx, rec); err != nil {
				return errors.Wrap(err, "upserting results record")
			}
		}
		return nil
	})
}

func (repo resultRepository) GetSheet(ctx context.Context, id string) (result.Sheet, error) {
	var sheet result.Sheet
	q := repo.db.Rebind("SELECT " + resultsColumns + " FROM results WHERE id = ?")
	if err := repo.db.GetContext(ctx, &sheet, q, id); err != nil {
		return result.Sheet{}, trapNoRowsErr(err, result.ErrNotFound, "finding results sheet")
	}
	return sheet, nil
}

func (repo resultRepository) QuerySheets(ctx context.Context, classID string) ([]result.Sheet, error) {
	sheets := make([]result.Sheet, 0)
	q := repo.db.Rebind("SELECT " + resultsColumns + " FROM results WHERE class_id = ? ORDER BY exam_type ASC")
	if err := repo.db.SelectContext(ctx, &sheets, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying results sheets")
	}
	return sheets, nil
}

func (repo resultRepository) QueryRecords(ctx context.Context, filter result.RecordFilter) ([]result.Record, error) {
	q := new(query)
	if filter.ResultsID != "" {
		q.add("results_id = ?", filter.ResultsID)
	}
	if filter.ClassID != "" {
		q.add("class_id = ?", filter.ClassID)
	}
	if filter.StudentID != "" {
		q.add("student_id = ?", filter.StudentID)
	}
	if filter.ExamType != "" {
		q.add("exam_type = ?", filter.ExamType)
	}

	records := make([]result.Record, 0)
	sqlStr, args := q.build(repo.db, "SELECT "+resultsRecordColumns+" FROM results_records", "exam_type ASC, student_id ASC")
	if err := repo.db.SelectContext(ctx, &records, sqlStr, args...); err != nil {
		return nil, errors.Wrap(err, "querying results records")
	}
	return records, nil
}
