package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Roles
const (
	RoleAdmin          = "admin"
	RoleTeacher        = "teacher"
	RoleStudent        = "student"
	RolePendingTeacher = "pending_teacher" // self registered, awaiting admin approval
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RolePendingTeacher}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Pending Teacher", Value: RolePendingTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string     `json:"id" db:"id" firestore:"-"`
	Role         string     `json:"role" db:"role" firestore:"role"`
	Name         string     `json:"name" db:"name" firestore:"name"`
	Email        string     `json:"email" db:"email" firestore:"email"`
	ClassID      string     `json:"class_id,omitempty" db:"class_id" firestore:"classId"`
	StudentID    string     `json:"student_id,omitempty" db:"student_id" firestore:"studentId"` // school issued student number
	Subject      string     `json:"subject,omitempty" db:"subject" firestore:"subject"`
	Phone        string     `json:"phone,omitempty" db:"phone" firestore:"phone"`
	IsActive     bool       `json:"is_active" db:"is_active" firestore:"isActive"`
	PasswordHash []byte     `json:"-" db:"password_hash" firestore:"passwordHash"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at" firestore:"createdAt"` // UTC
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at" firestore:"updatedAt"` // UTC
	ApprovedAt   *time.Time `json:"approved_at,omitempty" db:"approved_at" firestore:"approvedAt"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login" firestore:"lastLogin"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool          { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool        { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool        { return u.Role == RoleStudent }
func (u *User) IsPendingTeacher() bool { return u.Role == RolePendingTeacher }

func (u *User) MailAddress() mail.Address {
	return mail.Address{Name: u.Name, Address: u.Email}
}

// NewUser contains information needed to create a new User.
// Password is optional for students and teachers created by an admin: the configured default password is used.
type NewUser struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Role            string `json:"role" validate:"omitempty,userrole"`
	StudentID       string `json:"student_id" validate:"omitempty,alphanum_"`
	ClassID         string `json:"class_id"`
	Subject         string `json:"subject"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.StudentID = core.CleanString(nu.StudentID)
	nu.ClassID = core.CleanString(nu.ClassID)
	nu.Subject = core.CleanString(nu.Subject)
	nu.Phone = core.CleanString(nu.Phone)
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email, nu.StudentID)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string  `json:"name"`
	Email           string  `json:"email" validate:"omitempty,email"`
	StudentID       *string `json:"student_id" validate:"omitempty,alphanum_"`
	ClassID         *string `json:"class_id"`
	Subject         *string `json:"subject"`
	Phone           *string `json:"phone"`
	IsActive        *bool   `json:"is_active"`
	Role            string  `json:"role" validate:"omitempty,userrole"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// Validate fills blank fields from origUsr, then validates the result.
func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	role := core.CleanString(uu.Role, true /* lower */)
	if role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}

	stdID := origUsr.StudentID
	if uu.StudentID != nil {
		stdID = core.CleanString(*uu.StudentID)
		uu.StudentID = &stdID
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, stdID, origUsr)
}

// apply copies the validated UpdateUser fields onto usr.
func (uu *UpdateUser) apply(usr *User) error {
	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Role = uu.Role
	if uu.StudentID != nil {
		usr.StudentID = *uu.StudentID
	}
	if uu.ClassID != nil {
		usr.ClassID = core.CleanString(*uu.ClassID)
	}
	if uu.Subject != nil {
		usr.Subject = core.CleanString(*uu.Subject)
	}
	if uu.Phone != nil {
		usr.Phone = core.CleanString(*uu.Phone)
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		return usr.SetPassword(uu.Password)
	}
	return nil
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	ClassID     string    `query:"class_id"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.ClassID == "" && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassID = core.CleanString(qf.ClassID)
}

// Match reports whether usr satisfies all the set filter fields.
func (qf *QueryFilter) Match(usr User) bool {
	if qf.Search != "" && !(core.ContainsFold(usr.Name, qf.Search) ||
		core.ContainsFold(usr.Email, qf.Search) || core.ContainsFold(usr.StudentID, qf.Search)) {
		return false
	}
	if len(qf.Roles) > 0 {
		found := false
		for _, role := range qf.Roles {
			if usr.Role == role {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.ClassID != "" && usr.ClassID != qf.ClassID {
		return false
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	return true
}

// Sort sorts users in place, for storages that cannot order server-side.
func Sort(users []User, ordering []core.DBOrdering) {
	core.SortBy(users, ordering, func(a, b User, field string) int {
		switch field {
		case "name":
			return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case "email":
			return strings.Compare(a.Email, b.Email)
		case "role":
			return strings.Compare(a.Role, b.Role)
		case "student_id":
			return strings.Compare(a.StudentID, b.StudentID)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
		return 0
	})
}

// GetFilter selects a single User. The first non-empty field is used.
type GetFilter struct {
	ID        string
	Email     string
	StudentID string
}
