package firestorerepos

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

func setUserID(usr *user.User, id string) { usr.ID = id }

type userRepository struct {
	client *firestore.Client
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(client *firestore.Client) *userRepository {
	return &userRepository{client: client}
}

func (repo userRepository) coll() *firestore.CollectionRef {
	return repo.client.Collection(usersCollection)
}

func (repo userRepository) CheckUniqueness(ctx context.Context, email, studentID string, excludedUsers ...user.User) error {
	excluded := make(map[string]bool, len(excludedUsers))
	for _, usr := range excludedUsers {
		excluded[usr.ID] = true
	}
	taken := func(field, value string) (bool, error) {
		users, err := getAll(ctx, repo.coll().Where(field, "==", value).Limit(len(excludedUsers)+1), setUserID)
		if err != nil {
			return false, errors.Wrap(err, "checking uniqueness")
		}
		for _, usr := range users {
			if !excluded[usr.ID] {
				return true, nil
			}
		}
		return false, nil
	}

	found, err := taken("email", email)
	if err != nil {
		return err
	}
	if found {
		return user.ErrEmailExists
	}
	if studentID == "" {
		return nil
	}
	if found, err = taken(fieldStudentID, studentID); err != nil {
		return err
	}
	if found {
		return user.ErrStudentIDExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	if _, err := repo.coll().Doc(usr.ID).Create(ctx, usr); err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// QueryUsers filters on equality fields server side. Search, creation range and ordering are applied in memory.
func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q := repo.coll().Query
	if filter != nil {
		if len(filter.Roles) == 1 {
			q = q.Where("role", "==", filter.Roles[0])
		} else if len(filter.Roles) > 1 {
			q = q.Where("role", "in", filter.Roles)
		}
		if filter.ClassID != "" {
			q = q.Where(fieldClassID, "==", filter.ClassID)
		}
		if filter.IsActive != nil {
			q = q.Where(fieldIsActive, "==", *filter.IsActive)
		}
	}

	users, err := getAll(ctx, q, setUserID)
	if err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	if filter != nil {
		matched := users[:0]
		for _, usr := range users {
			if filter.Match(usr) {
				matched = append(matched, usr)
			}
		}
		users = matched
	}
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	user.Sort(users, ordering)
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var q firestore.Query
	switch {
	case filter.ID != "":
		return getOne(ctx, repo.coll().Doc(filter.ID), user.ErrNotFound, setUserID)
	case filter.Email != "":
		q = repo.coll().Where("email", "==", filter.Email)
	case filter.StudentID != "":
		q = repo.coll().Where(fieldStudentID, "==", filter.StudentID)
	default:
		return user.User{}, user.ErrNotFound
	}

	users, err := getAll(ctx, q.Limit(1), setUserID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if len(users) == 0 {
		return user.User{}, user.ErrNotFound
	}
	return users[0], nil
}

func (repo userRepository) GetUsersByID(ctx context.Context, ids []string) ([]user.User, error) {
	ids = core.UniqueStrings(ids)
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, repo.coll().Doc(id))
	}
	docs, err := repo.client.GetAll(ctx, refs)
	if err != nil {
		return nil, errors.Wrap(err, "getting users")
	}

	users := make([]user.User, 0, len(docs))
	for _, doc := range docs {
		if !doc.Exists() {
			continue
		}
		var usr user.User
		if err = doc.DataTo(&usr); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", doc.Ref.Path)
		}
		usr.ID = doc.Ref.ID
		users = append(users, usr)
	}
	return users, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	ref := repo.coll().Doc(usr.ID)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var orig user.User
		if err = doc.DataTo(&orig); err != nil {
			return err
		}
		usr.CreatedAt = orig.CreatedAt
		if usr.UpdatedAt.IsZero() {
			usr.UpdatedAt = time.Now().UTC()
		}
		return tx.Set(ref, usr)
	})
	if err != nil {
		if isNotFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string) (int, error) {
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range core.UniqueStrings(ids) {
		refs = append(refs, repo.coll().Doc(id))
	}
	if len(refs) == 0 {
		return 0, nil
	}

	var n int
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		n = 0
		docs, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if !doc.Exists() {
				continue
			}
			if err = tx.Delete(doc.Ref); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return n, nil
}
