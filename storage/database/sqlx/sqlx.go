// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// query accumulates AND-ed WHERE conditions using `?` bind vars.
type query struct {
	where []string
	args  []interface{}
}

func (q *query) add(cond string, args ...interface{}) {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
}

// in adds a `column IN (...)` condition.
func (q *query) in(column string, values interface{}) error {
	cond, args, err := sqlx.In(column+" IN (?)", values)
	if err != nil {
		return err
	}
	q.add(cond, args...)
	return nil
}

func (q *query) build(db *sqlx.DB, base string, ordering string, limit ...int) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(base)
	if len(q.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.where, " AND "))
	}
	if ordering != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(ordering)
	}
	args := q.args
	if len(limit) > 0 && limit[0] > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, limit[0])
	}
	return db.Rebind(sb.String()), args
}

// orderBy renders ordering, dropping fields not in allowed. def is used when nothing is left.
func orderBy(ordering []core.DBOrdering, allowed []string, def string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		for _, a := range allowed {
			if ord.Field == a {
				list = append(list, ord.String())
				break
			}
		}
	}
	if len(list) == 0 {
		return def
	}
	return strings.Join(list, ", ")
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// validUUIDs drops the IDs that cannot be stored in a UUID column.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

// withTx runs fn in a transaction, committed when fn succeeds.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
