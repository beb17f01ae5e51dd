package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core/notification"
)

type notificationEntry struct {
	notification.Notification
	seq int
}

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notifs []notification.Notification) ([]notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]notification.Notification, 0, len(notifs))
	for _, n := range notifs {
		repo.db.seq++
		n.ID = uuid.New().String()
		repo.db.table[n.ID] = &notificationEntry{Notification: n, seq: repo.db.seq}
		created = append(created, n)
	}
	return created, nil
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, studentID string, limit int) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]*notificationEntry, 0)
	for _, e := range repo.db.table {
		if e.StudentID == studentID {
			entries = append(entries, e)
		}
	}
	// newest first; insertion order breaks timestamp ties
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].seq > entries[j].seq
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	notifs := make([]notification.Notification, 0, len(entries))
	for _, e := range entries {
		notifs = append(notifs, e.Notification)
	}
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, studentID string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var cnt int
	for _, e := range repo.db.table {
		if e.StudentID == studentID && !e.Read {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.table[id]; ok {
		return e.Notification, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) UpdateNotification(_ context.Context, notif notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.table[notif.ID]
	if !ok {
		return notification.Notification{}, notification.ErrNotFound
	}
	e.Notification = notif
	return notif, nil
}
