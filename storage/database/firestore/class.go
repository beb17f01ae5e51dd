package firestorerepos

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
)

func setClassID(cls *class.Class, id string) {
	cls.ID = id
	if cls.Students == nil {
		cls.Students = []string{}
	}
}

type classRepository struct {
	client *firestore.Client
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(client *firestore.Client) *classRepository {
	return &classRepository{client: client}
}

func (repo classRepository) coll() *firestore.CollectionRef {
	return repo.client.Collection(classesCollection)
}

func (repo classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	cls.ID = uuid.New().String()
	if cls.Students == nil {
		cls.Students = []string{}
	}
	if _, err := repo.coll().Doc(cls.ID).Create(ctx, cls); err != nil {
		return class.Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (repo classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering) ([]class.Class, error) {
	q := repo.coll().Query
	if filter != nil {
		if filter.TeacherID != "" {
			q = q.Where(fieldTeacherID, "==", filter.TeacherID)
		}
		if filter.StudentID != "" {
			q = q.Where("students", "array-contains", filter.StudentID)
		}
	}

	classes, err := getAll(ctx, q, setClassID)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	if filter != nil && filter.Search != "" {
		matched := classes[:0]
		for _, cls := range classes {
			if filter.Match(cls) {
				matched = append(matched, cls)
			}
		}
		classes = matched
	}
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	class.Sort(classes, ordering)
	return classes, nil
}

func (repo classRepository) GetClass(ctx context.Context, id string) (class.Class, error) {
	if id == "" {
		return class.Class{}, class.ErrNotFound
	}
	return getOne(ctx, repo.coll().Doc(id), class.ErrNotFound, setClassID)
}

func (repo classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	if cls.ID == "" {
		return class.Class{}, class.ErrNotFound
	}
	_, err := repo.coll().Doc(cls.ID).Update(ctx, []firestore.Update{
		{Path: fieldTeacherID, Value: cls.TeacherID},
		{Path: "name", Value: cls.Name},
		{Path: "subject", Value: cls.Subject},
		{Path: "schedule", Value: cls.Schedule},
		{Path: "description", Value: cls.Description},
		{Path: fieldUpdatedAt, Value: cls.UpdatedAt},
	})
	if err != nil {
		if isNotFound(err) {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	return repo.GetClass(ctx, cls.ID)
}

func (repo classRepository) DeleteClass(ctx context.Context, id string) error {
	if id == "" {
		return class.ErrNotFound
	}
	if _, err := repo.coll().Doc(id).Delete(ctx); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return nil
}

func (repo classRepository) setStudents(ctx context.Context, classID string, value interface{}) (class.Class, error) {
	if classID == "" {
		return class.Class{}, class.ErrNotFound
	}
	_, err := repo.coll().Doc(classID).Update(ctx, []firestore.Update{
		{Path: "students", Value: value},
		{Path: fieldUpdatedAt, Value: time.Now().UTC()},
	})
	if err != nil {
		if isNotFound(err) {
			return class.Class{}, class.ErrNotFound
		}
		return class.Class{}, errors.Wrap(err, "updating class students")
	}
	return repo.GetClass(ctx, classID)
}

func (repo classRepository) AddStudent(ctx context.Context, classID, studentID string) (class.Class, error) {
	return repo.setStudents(ctx, classID, firestore.ArrayUnion(studentID))
}

func (repo classRepository) RemoveStudent(ctx context.Context, classID, studentID string) (class.Class, error) {
	return repo.setStudents(ctx, classID, firestore.ArrayRemove(studentID))
}
