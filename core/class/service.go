package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotFound  = core.NewNotFoundError("class not found")
	ErrNoTeacher = errors.New("a class must be assigned to a teacher")

	OrderingFields = []string{"name", "subject", "created_at", "updated_at"}
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		// QueryClasses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Class.Name or Class.Subject.
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		DeleteClass(ctx context.Context, id string) error
		// AddStudent appends studentID to the class students, unless already enrolled.
		AddStudent(ctx context.Context, classID, studentID string) (Class, error)
		RemoveStudent(ctx context.Context, classID, studentID string) (Class, error)
	}

	Service interface {
		TeacherClasses(ctx context.Context, teacherID string) ([]Class, error)
		All(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		Get(ctx context.Context, id string) (Class, error)
		Create(ctx context.Context, teacherID string, nc NewClass) (Class, error)
		Update(ctx context.Context, cls Class, uc UpdateClass) (Class, error)
		Delete(ctx context.Context, id string) error
		EnrollStudent(ctx context.Context, classID, studentID string) (Class, error)
		RemoveStudent(ctx context.Context, classID, studentID string) (Class, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc}
}

func (svc *service) TeacherClasses(ctx context.Context, teacherID string) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, &QueryFilter{TeacherID: teacherID}, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *service) All(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	if ordering == nil {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) Get(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) checkTeacher(ctx context.Context, teacherID string) error {
	if teacherID == "" {
		return core.NewValidationError(ErrNoTeacher, core.FieldError{Field: "teacher_id", Error: ErrNoTeacher.Error()})
	}
	if _, err := svc.usrSvc.GetTeacher(ctx, teacherID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: "teacher not found"})
		}
		return errors.Wrap(err, "finding teacher")
	}
	return nil
}

func (svc *service) Create(ctx context.Context, teacherID string, nc NewClass) (Class, error) {
	if err := svc.checkTeacher(ctx, teacherID); err != nil {
		return Class{}, err
	}
	now := time.Now().UTC()
	cls := Class{
		TeacherID:   teacherID,
		Name:        nc.Name,
		Subject:     nc.Subject,
		Schedule:    nc.Schedule,
		Description: nc.Description,
		Students:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClass(ctx, cls)
}

func (svc *service) Update(ctx context.Context, cls Class, uc UpdateClass) (Class, error) {
	if uc.TeacherID != nil && *uc.TeacherID != "" && *uc.TeacherID != cls.TeacherID {
		if err := svc.checkTeacher(ctx, *uc.TeacherID); err != nil {
			return Class{}, err
		}
	}
	uc.apply(&cls)
	cls.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateClass(ctx, cls)
}

// Delete removes the class and un-enrolls its students.
func (svc *service) Delete(ctx context.Context, id string) error {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteClass(ctx, id); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	for _, stdID := range cls.Students {
		if err = svc.clearStudentClass(ctx, stdID, id); err != nil {
			return err
		}
	}
	return nil
}

// EnrollStudent adds the student to the class and sets the student's class.
// A student enrolled in another class is moved out of it. Enrolling twice is a no-op.
func (svc *service) EnrollStudent(ctx context.Context, classID, studentID string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return Class{}, err
	}
	std, err := svc.usrSvc.GetStudent(ctx, studentID)
	if err != nil {
		return Class{}, err
	}

	if std.ClassID != "" && std.ClassID != cls.ID {
		if _, err = svc.repo.RemoveStudent(ctx, std.ClassID, std.ID); err != nil && errors.Cause(err) != ErrNotFound {
			return Class{}, errors.Wrap(err, "removing student from previous class")
		}
	}
	if cls, err = svc.repo.AddStudent(ctx, cls.ID, std.ID); err != nil {
		return Class{}, errors.Wrap(err, "adding student")
	}
	if std.ClassID != cls.ID {
		if _, err = svc.usrSvc.SetClass(ctx, std.ID, cls.ID); err != nil {
			return Class{}, errors.Wrap(err, "setting student class")
		}
	}
	return cls, nil
}

// RemoveStudent removes the student from the class and clears the student's class, enrolled or not.
func (svc *service) RemoveStudent(ctx context.Context, classID, studentID string) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return Class{}, err
	}
	if cls, err = svc.repo.RemoveStudent(ctx, cls.ID, studentID); err != nil {
		return Class{}, errors.Wrap(err, "removing student")
	}
	if _, err = svc.usrSvc.SetClass(ctx, studentID, ""); err != nil && errors.Cause(err) != user.ErrNotFound {
		return Class{}, errors.Wrap(err, "clearing student class")
	}
	return cls, nil
}

// clearStudentClass clears the class of the student, if still set to classID.
func (svc *service) clearStudentClass(ctx context.Context, studentID, classID string) error {
	std, err := svc.usrSvc.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding student")
	}
	if std.ClassID != classID {
		return nil
	}
	if _, err = svc.usrSvc.SetClass(ctx, std.ID, ""); err != nil {
		return errors.Wrap(err, "clearing student class")
	}
	return nil
}
