package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrStudentIDExists = errors.New("a user with this student ID already exists")
	ErrInvalidRole     = errors.New("invalid role")
	ErrNoPassword      = errors.New("password is required")

	OrderingFields = []string{"name", "email", "role", "student_id", "created_at", "updated_at"}
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrStudentIDExists when another user (not in excludedUsers)
		// already uses email or studentID. An empty studentID is never checked.
		CheckUniqueness(ctx context.Context, email, studentID string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email or User.StudentID.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		GetUsersByID(ctx context.Context, ids []string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string) (int, error)
	}

	Service interface {
		CheckUniqueness(email, studentID string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Register(ctx context.Context, nu NewUser) (User, error)
		AddStudent(ctx context.Context, nu NewUser) (User, error)
		AddTeacher(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Students(ctx context.Context) ([]User, error)
		StudentsByClass(ctx context.Context, classID string) ([]User, error)
		Teachers(ctx context.Context) ([]User, error)
		PendingTeachers(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByIDs(ctx context.Context, ids ...string) ([]User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByStudentID(ctx context.Context, studentID string) (User, error)
		GetStudent(ctx context.Context, id string) (User, error)
		GetTeacher(ctx context.Context, id string) (User, error)
		GetRole(ctx context.Context, id string) (string, error)
		SetRole(ctx context.Context, id, role string) (User, error)
		ApproveTeacher(ctx context.Context, id string) (User, error)
		RejectTeacher(ctx context.Context, id string) error
		SetClass(ctx context.Context, id, classID string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) error
		DeleteStudent(ctx context.Context, id string) error
		DeleteTeacher(ctx context.Context, id string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	service struct {
		repo            Repository
		mailSvc         core.EmailService
		tokenGen        *tokenGenerator
		logger          core.Logger
		defaultPassword string
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:            repo,
		mailSvc:         mailSvc,
		tokenGen:        newTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		logger:          logger,
		defaultPassword: conf.DefaultPassword,
	}
}

func (svc *service) CheckUniqueness(email, studentID string, excludedUsers ...User) error {
	if err := svc.repo.CheckUniqueness(context.Background(), email, studentID, excludedUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrEmailExists:
			field = "email"
		case ErrStudentIDExists:
			field = "student_id"
		default:
			return errors.Wrap(err, "checking user uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
	pwd := nu.Password
	if pwd == "" {
		pwd = svc.defaultPassword
	}
	if pwd == "" {
		return User{}, core.NewValidationError(ErrNoPassword, core.FieldError{Field: "password", Error: ErrNoPassword.Error()})
	}

	now := time.Now().UTC()
	usr := User{
		Role:      nu.Role,
		Name:      nu.Name,
		Email:     nu.Email,
		ClassID:   nu.ClassID,
		StudentID: nu.StudentID,
		Subject:   nu.Subject,
		Phone:     nu.Phone,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Register signs a teacher up. The account stays pending until an admin approves it.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if nu.Password == "" {
		return User{}, core.NewValidationError(ErrNoPassword, core.FieldError{Field: "password", Error: ErrNoPassword.Error()})
	}
	nu.Role = RolePendingTeacher
	nu.ClassID = ""
	nu.StudentID = ""
	return svc.Create(ctx, nu)
}

func (svc *service) AddStudent(ctx context.Context, nu NewUser) (User, error) {
	nu.Role = RoleStudent
	return svc.Create(ctx, nu)
}

func (svc *service) AddTeacher(ctx context.Context, nu NewUser) (User, error) {
	nu.Role = RoleTeacher
	nu.ClassID = ""
	nu.StudentID = ""
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, err
	}
	now := usr.CreatedAt
	usr.ApprovedAt = &now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) byRole(ctx context.Context, role string, classID ...string) ([]User, error) {
	filter := &QueryFilter{Roles: []string{role}}
	if len(classID) > 0 {
		filter.ClassID = classID[0]
	}
	return svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *service) Students(ctx context.Context) ([]User, error) {
	return svc.byRole(ctx, RoleStudent)
}

func (svc *service) StudentsByClass(ctx context.Context, classID string) ([]User, error) {
	if classID == "" {
		return []User{}, nil
	}
	return svc.byRole(ctx, RoleStudent, classID)
}

func (svc *service) Teachers(ctx context.Context) ([]User, error) {
	return svc.byRole(ctx, RoleTeacher)
}

func (svc *service) PendingTeachers(ctx context.Context) ([]User, error) {
	return svc.byRole(ctx, RolePendingTeacher)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByIDs(ctx context.Context, ids ...string) ([]User, error) {
	ids = core.UniqueStrings(ids)
	if len(ids) == 0 {
		return []User{}, nil
	}
	return svc.repo.GetUsersByID(ctx, ids)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByStudentID(ctx context.Context, studentID string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{StudentID: core.CleanString(studentID)})
}

func (svc *service) getWithRole(ctx context.Context, id, role string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.Role != role {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *service) GetStudent(ctx context.Context, id string) (User, error) {
	return svc.getWithRole(ctx, id, RoleStudent)
}

func (svc *service) GetTeacher(ctx context.Context, id string) (User, error) {
	return svc.getWithRole(ctx, id, RoleTeacher)
}

// GetRole returns the role of the User, or "" when the User does not exist.
func (svc *service) GetRole(ctx context.Context, id string) (string, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", nil
		}
		return "", err
	}
	return usr.Role, nil
}

func (svc *service) SetRole(ctx context.Context, id, role string) (User, error) {
	if !userRoleValid(role) {
		return User{}, core.NewValidationError(ErrInvalidRole, core.FieldError{Field: "role", Error: ErrInvalidRole.Error()})
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.Role = role
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ApproveTeacher(ctx context.Context, id string) (User, error) {
	usr, err := svc.getWithRole(ctx, id, RolePendingTeacher)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	usr.Role = RoleTeacher
	usr.ApprovedAt = &now
	usr.UpdatedAt = now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RejectTeacher(ctx context.Context, id string) error {
	if _, err := svc.getWithRole(ctx, id, RolePendingTeacher); err != nil {
		return err
	}
	return svc.Delete(ctx, id)
}

// SetClass sets (or clears, with an empty classID) the class the User is enrolled in.
func (svc *service) SetClass(ctx context.Context, id, classID string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.ClassID = classID
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	if err := uu.apply(&usr); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	usr.LastLogin = &now
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	ids = core.UniqueStrings(ids)
	if len(ids) == 0 {
		return nil
	}
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *service) DeleteStudent(ctx context.Context, id string) error {
	if _, err := svc.GetStudent(ctx, id); err != nil {
		return err
	}
	return svc.Delete(ctx, id)
}

func (svc *service) DeleteTeacher(ctx context.Context, id string) error {
	if _, err := svc.GetTeacher(ctx, id); err != nil {
		return err
	}
	return svc.Delete(ctx, id)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	go svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	token, err := svc.tokenGen.makeToken(usr)
	if err != nil {
		svc.logger.Error("making password reset token", err, usr)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{usr.MailAddress()},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalidTokenErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := DecodeUID(data.UID)
	if err != nil {
		return invalidTokenErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalidTokenErr
		}
		return err
	}
	if err = svc.tokenGen.verifyToken(usr, data.Token); err != nil {
		switch err {
		case errInvalidToken:
			return invalidTokenErr
		case errTokenExpired:
			return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
		default:
			return errors.Wrap(err, "verifying token")
		}
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

func userRoleValid(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
