package sqlxrepos

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/notification"
)

const notificationColumns = "id, student_id, title, message, type, timestamp, read, read_at"

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification) ([]notification.Notification, error) {
	created := make([]notification.Notification, 0, len(notifs))
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `INSERT INTO notifications (`+notificationColumns+`)
			VALUES (:id, :student_id, :title, :message, :type, :timestamp, :read, :read_at)`)
		if err != nil {
			return errors.Wrap(err, "preparing notifications insert")
		}
		defer func() { _ = stmt.Close() }()

		for _, n := range notifs {
			n.ID = uuid.New().String()
			if _, err = stmt.ExecContext(ctx, n); err != nil {
				return errors.Wrap(err, "inserting notification")
			}
			created = append(created, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, studentID string, limit int) ([]notification.Notification, error) {
	q := new(query)
	q.add("student_id = ?", studentID)

	notifs := make([]notification.Notification, 0)
	sqlStr, args := q.build(repo.db, "SELECT "+notificationColumns+" FROM notifications", "timestamp DESC", limit)
	if err := repo.db.SelectContext(ctx, &notifs, sqlStr, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, studentID string) (int, error) {
	var cnt int
	q := repo.db.Rebind("SELECT COUNT(*) FROM notifications WHERE student_id = ? AND NOT read")
	if err := repo.db.GetContext(ctx, &cnt, q, studentID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return cnt, nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return notification.Notification{}, notification.ErrNotFound
	}
	var notif notification.Notification
	q := repo.db.Rebind("SELECT " + notificationColumns + " FROM notifications WHERE id = ?")
	if err := repo.db.GetContext(ctx, &notif, q, id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "finding notification")
	}
	return notif, nil
}

func (repo notificationRepository) UpdateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	q := `UPDATE notifications SET title = :title, message = :message, type = :type, read = :read, read_at = :read_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, notif)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.Notification{}, notification.ErrNotFound
	}
	return notif, nil
}
