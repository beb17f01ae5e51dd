package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
)

const classColumns = "id, teacher_id, name, subject, schedule, description, students, created_at, updated_at"

type classRow struct {
	class.Class
	Students pq.StringArray `db:"students"`
}

func (row classRow) unwrap() class.Class {
	cls := row.Class
	cls.Students = []string(row.Students)
	if cls.Students == nil {
		cls.Students = []string{}
	}
	return cls
}

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *sqlx.DB) *classRepository {
	return &classRepository{db: db}
}

func (repo classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	cls.ID = uuid.New().String()
	if cls.Students == nil {
		cls.Students = []string{}
	}
	row := classRow{Class: cls, Students: cls.Students}
	q := "INSERT INTO classes (" + classColumns + ") VALUES (:id, :teacher_id, :name, :subject, :schedule, " +
		":description, :students, :created_at, :updated_at)"
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return class.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	q := new(query)
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q.add("(name ILIKE ? OR subject ILIKE ?)", val, val)
		}
		if filter.TeacherID != "" {
			q.add("teacher_id = ?", filter.TeacherID)
		}
		if filter.StudentID != "" {
			q.add("?::text = ANY(students)", filter.StudentID)
		}
	}

	var rows []classRow
	sqlStr, args := q.build(repo.db, "SELECT "+classColumns+" FROM classes", orderBy(ordering, class.OrderingFields, "name ASC"))
	if err := repo.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.unwrap())
	}
	return classes, nil
}

func (repo classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	var row classRow
	q := repo.db.Rebind("SELECT " + classColumns + " FROM classes WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound, "finding class")
	}
	return row.unwrap(), nil
}

func (repo classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	q := `UPDATE classes SET teacher_id = :teacher_id, name = :name, subject = :subject, schedule = :schedule,
		description = :description, updated_at = :updated_at WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, cls)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return repo.GetClass(ctx, cls.ID)
}

func (repo classRepository) DeleteClass(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return class.ErrNotFound
	}
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM classes WHERE id = ?"), id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return nil
}

func (repo classRepository) AddStudent(ctx context.Context, classID, studentID string) (class.Class, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	q := repo.db.Rebind(`UPDATE classes SET students = array_append(students, ?::text), updated_at = ?
		WHERE id = ? AND NOT (?::text = ANY(students))`)
	if _, err := repo.db.ExecContext(ctx, q, studentID, time.Now().UTC(), classID, studentID); err != nil {
		return class.Class{}, errors.Wrap(err, "adding student")
	}
	return repo.GetClass(ctx, classID)
}

func (repo classRepository) RemoveStudent(ctx context.Context, classID, studentID string) (class.Class, error) {
	if _, err := uuid.Parse(classID); err != nil {
		return class.Class{}, class.ErrNotFound
	}
	q := repo.db.Rebind(`UPDATE classes SET students = array_remove(students, ?::text), updated_at = ?
		WHERE id = ? AND ?::text = ANY(students)`)
	if _, err := repo.db.ExecContext(ctx, q, studentID, time.Now().UTC(), classID, studentID); err != nil {
		return class.Class{}, errors.Wrap(err, "removing student")
	}
	return repo.GetClass(ctx, classID)
}
