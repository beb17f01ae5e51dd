package class

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Class struct {
	ID          string    `json:"id" db:"id" firestore:"-"`
	TeacherID   string    `json:"teacher_id" db:"teacher_id" firestore:"teacherId"`
	Name        string    `json:"name" db:"name" firestore:"name"`
	Subject     string    `json:"subject" db:"subject" firestore:"subject"`
	Schedule    string    `json:"schedule" db:"schedule" firestore:"schedule"`
	Description string    `json:"description" db:"description" firestore:"description"`
	Students    []string  `json:"students" db:"-" firestore:"students"` // enrolled student user IDs
	CreatedAt   time.Time `json:"created_at" db:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at" firestore:"updatedAt"`
}

func (c *Class) IsOwnedBy(userID string) bool {
	return userID != "" && c.TeacherID == userID
}

func (c *Class) HasStudent(studentID string) bool {
	for _, id := range c.Students {
		if id == studentID {
			return true
		}
	}
	return false
}

// NewClass contains information needed to create a new Class.
// TeacherID is only considered when an admin creates the class.
type NewClass struct {
	TeacherID   string `json:"teacher_id"`
	Name        string `json:"name" validate:"required"`
	Subject     string `json:"subject"`
	Schedule    string `json:"schedule"`
	Description string `json:"description"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.TeacherID = core.CleanString(nc.TeacherID)
	nc.Name = core.CleanString(nc.Name)
	nc.Subject = core.CleanString(nc.Subject)
	nc.Schedule = core.CleanString(nc.Schedule)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	TeacherID   *string `json:"teacher_id"`
	Name        *string `json:"name" validate:"omitempty,notblank"`
	Subject     *string `json:"subject"`
	Schedule    *string `json:"schedule"`
	Description *string `json:"description"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	for _, fld := range []*string{uc.TeacherID, uc.Name, uc.Subject, uc.Schedule, uc.Description} {
		if fld != nil {
			*fld = core.CleanString(*fld)
		}
	}
	if uc.Name != nil && *uc.Name == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field cannot be blank"})
	}
	return validate.Struct(uc)
}

func (uc *UpdateClass) apply(cls *Class) {
	if uc.TeacherID != nil && *uc.TeacherID != "" {
		cls.TeacherID = *uc.TeacherID
	}
	if uc.Name != nil {
		cls.Name = *uc.Name
	}
	if uc.Subject != nil {
		cls.Subject = *uc.Subject
	}
	if uc.Schedule != nil {
		cls.Schedule = *uc.Schedule
	}
	if uc.Description != nil {
		cls.Description = *uc.Description
	}
}

type QueryFilter struct {
	Search    string `query:"search"`
	TeacherID string `query:"teacher_id"`
	StudentID string `query:"student_id"` // enrolled student user ID
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.TeacherID = core.CleanString(qf.TeacherID)
	qf.StudentID = core.CleanString(qf.StudentID)
}

// Match reports whether cls satisfies all the set filter fields.
func (qf *QueryFilter) Match(cls Class) bool {
	if qf.Search != "" && !(core.ContainsFold(cls.Name, qf.Search) || core.ContainsFold(cls.Subject, qf.Search)) {
		return false
	}
	if qf.TeacherID != "" && cls.TeacherID != qf.TeacherID {
		return false
	}
	if qf.StudentID != "" && !cls.HasStudent(qf.StudentID) {
		return false
	}
	return true
}

// Sort sorts classes in place, for storages that cannot order server-side.
func Sort(classes []Class, ordering []core.DBOrdering) {
	core.SortBy(classes, ordering, func(a, b Class, field string) int {
		switch field {
		case "name":
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "subject":
			return strings.Compare(strings.ToLower(a.Subject), strings.ToLower(b.Subject))
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
		return 0
	})
}

// Enrollment identifies the student to enroll in, or remove from, a class.
type Enrollment struct {
	StudentID string `json:"student_id" validate:"required"`
}

func (e *Enrollment) Validate(validate *validator.Validate) error {
	e.StudentID = core.CleanString(e.StudentID)
	return validate.Struct(e)
}
