package firestorerepos

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/notification"
)

func setNotificationID(n *notification.Notification, id string) { n.ID = id }

type notificationRepository struct {
	client *firestore.Client
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(client *firestore.Client) *notificationRepository {
	return &notificationRepository{client: client}
}

func (repo notificationRepository) coll() *firestore.CollectionRef {
	return repo.client.Collection(notificationsCollection)
}

func (repo notificationRepository) CreateNotifications(ctx context.Context, notifs []notification.Notification) ([]notification.Notification, error) {
	created := make([]notification.Notification, 0, len(notifs))
	for _, n := range notifs {
		n.ID = uuid.New().String()
		created = append(created, n)
	}

	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, n := range created {
			if err := tx.Create(repo.coll().Doc(n.ID), n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating notifications")
	}
	return created, nil
}

// QueryNotifications requires a composite index on (student_id, timestamp desc).
func (repo notificationRepository) QueryNotifications(ctx context.Context, studentID string, limit int) ([]notification.Notification, error) {
	q := repo.coll().Where(fieldStudentID, "==", studentID).OrderBy("timestamp", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	notifs, err := getAll(ctx, q, setNotificationID)
	if err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	return notifs, nil
}

func (repo notificationRepository) CountUnread(ctx context.Context, studentID string) (int, error) {
	q := repo.coll().Where(fieldStudentID, "==", studentID).Where("read", "==", false)
	notifs, err := getAll(ctx, q.Select(), setNotificationID)
	if err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return len(notifs), nil
}

func (repo notificationRepository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	if id == "" {
		return notification.Notification{}, notification.ErrNotFound
	}
	return getOne(ctx, repo.coll().Doc(id), notification.ErrNotFound, setNotificationID)
}

func (repo notificationRepository) UpdateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	if notif.ID == "" {
		return notification.Notification{}, notification.ErrNotFound
	}
	_, err := repo.coll().Doc(notif.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: notif.Title},
		{Path: "message", Value: notif.Message},
		{Path: "type", Value: notif.Type},
		{Path: "read", Value: notif.Read},
		{Path: fieldReadAt, Value: notif.ReadAt},
	})
	if err != nil {
		if isNotFound(err) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	return notif, nil
}
