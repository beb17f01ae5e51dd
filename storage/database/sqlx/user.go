package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const userColumns = "id, role, name, email, class_id, student_id, subject, phone, is_active, password_hash, " +
	"created_at, updated_at, approved_at, last_login"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, email, studentID string, excludedUsers ...user.User) error {
	q := new(query)
	if studentID != "" {
		q.add("(email = ? OR student_id = ?)", email, studentID)
	} else {
		q.add("email = ?", email)
	}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		if ids = validUUIDs(ids); len(ids) > 0 {
			cond, args, err := sqlx.In("id NOT IN (?)", ids)
			if err != nil {
				return errors.Wrap(err, "building uniqueness query")
			}
			q.add(cond, args...)
		}
	}

	var found []user.User
	sqlStr, args := q.build(repo.db, "SELECT "+userColumns+" FROM users", "", 2)
	if err := repo.db.SelectContext(ctx, &found, sqlStr, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, u := range found {
		if u.Email == email {
			return user.ErrEmailExists
		}
	}
	if len(found) > 0 {
		return user.ErrStudentIDExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := "INSERT INTO users (" + userColumns + ") VALUES (:id, :role, :name, :email, :class_id, :student_id, " +
		":subject, :phone, :is_active, :password_hash, :created_at, :updated_at, :approved_at, :last_login)"
	if _, err := repo.db.NamedExecContext(ctx, q, usr); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := new(query)

	if filter != nil {
		// users with Name, Email or StudentID matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q.add("(name ILIKE ? OR email ILIKE ? OR student_id ILIKE ?)", val, val, val)
		}
		if len(filter.Roles) > 0 {
			if err := q.in("role", filter.Roles); err != nil {
				return nil, errors.Wrap(err, "building roles filter")
			}
		}
		if filter.ClassID != "" {
			q.add("class_id = ?", filter.ClassID)
		}
		if filter.IsActive != nil {
			q.add("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q.add("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q.add("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	users := make([]user.User, 0)
	sqlStr, args := q.build(repo.db, "SELECT "+userColumns+" FROM users", orderBy(ordering, user.OrderingFields, "created_at DESC"))
	if err := repo.db.SelectContext(ctx, &users, sqlStr, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := new(query)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q.add("id = ?", filter.ID)
	case filter.Email != "":
		q.add("email = ?", filter.Email)
	case filter.StudentID != "":
		q.add("student_id = ?", filter.StudentID)
	default:
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	sqlStr, args := q.build(repo.db, "SELECT "+userColumns+" FROM users", "")
	if err := repo.db.GetContext(ctx, &usr, sqlStr, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return usr, nil
}

func (repo userRepository) GetUsersByID(ctx context.Context, ids []string) ([]user.User, error) {
	users := make([]user.User, 0, len(ids))
	if ids = validUUIDs(ids); len(ids) == 0 {
		return users, nil
	}

	q := new(query)
	if err := q.in("id", ids); err != nil {
		return nil, errors.Wrap(err, "building ids filter")
	}
	sqlStr, args := q.build(repo.db, "SELECT "+userColumns+" FROM users", "name ASC")
	if err := repo.db.SelectContext(ctx, &users, sqlStr, args...); err != nil {
		return nil, errors.Wrap(err, "querying users by ID")
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE users SET role = :role, name = :name, email = :email, class_id = :class_id,
		student_id = :student_id, subject = :subject, phone = :phone, is_active = :is_active,
		password_hash = :password_hash, updated_at = :updated_at, approved_at = :approved_at, last_login = :last_login
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	if ids = validUUIDs(ids); len(ids) == 0 {
		return 0, nil
	}
	q := new(query)
	if err := q.in("id", ids); err != nil {
		return 0, errors.Wrap(err, "building ids filter")
	}
	sqlStr, args := q.build(repo.db, "DELETE FROM users", "")
	res, err := repo.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted users")
	}
	return int(cnt), nil
}
