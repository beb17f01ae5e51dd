package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
)

type classEntry struct {
	class.Class
	seq int
}

type classRepository struct {
	db *classTable
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db.class}
}

// copyClass returns cls with its own Students slice.
func copyClass(cls class.Class) class.Class {
	students := make([]string, len(cls.Students))
	copy(students, cls.Students)
	cls.Students = students
	return cls
}

func (repo *classRepository) query() []class.Class {
	entries := make([]*classEntry, 0, len(repo.db.table))
	for _, e := range repo.db.table {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	classes := make([]class.Class, 0, len(entries))
	for _, e := range entries {
		classes = append(classes, copyClass(e.Class))
	}
	return classes
}

func (repo *classRepository) CreateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.seq++
	cls.ID = uuid.New().String()
	cls = copyClass(cls)
	repo.db.table[cls.ID] = &classEntry{Class: cls, seq: repo.db.seq}
	return copyClass(cls), nil
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.query() {
		if filter == nil || filter.Match(cls) {
			classes = append(classes, cls)
		}
	}
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	class.Sort(classes, ordering)
	return classes, nil
}

func (repo *classRepository) GetClass(_ context.Context, id string) (class.Class, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.table[id]; ok {
		return copyClass(e.Class), nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(_ context.Context, cls class.Class) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.table[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	// enrollment is only changed through AddStudent and RemoveStudent
	cls.Students = e.Students
	cls.CreatedAt = e.CreatedAt
	e.Class = copyClass(cls)
	return copyClass(e.Class), nil
}

func (repo *classRepository) DeleteClass(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.table, id)
	return nil
}

func (repo *classRepository) AddStudent(_ context.Context, classID, studentID string) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.table[classID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if !e.HasStudent(studentID) {
		e.Students = append(e.Students, studentID)
		e.UpdatedAt = time.Now().UTC()
	}
	return copyClass(e.Class), nil
}

func (repo *classRepository) RemoveStudent(_ context.Context, classID, studentID string) (class.Class, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.table[classID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if e.HasStudent(studentID) {
		students := make([]string, 0, len(e.Students))
		for _, id := range e.Students {
			if id != studentID {
				students = append(students, id)
			}
		}
		e.Students = students
		e.UpdatedAt = time.Now().UTC()
	}
	return copyClass(e.Class), nil
}
