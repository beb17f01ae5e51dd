package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

func setup(t *testing.T) (user.Service, user.Repository, *core.Config) {
	t.Helper()

	conf := core.NewTestConfig()
	repo := inmemdb.NewUserRepository(inmemdb.NewDB())
	return user.NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf, testutil.NewLogger(conf)), repo, conf
}

func validationError(t *testing.T, err error) *core.ValidationError {
	t.Helper()

	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want a validation error, got %v", err)
	return vErr
}

// errorFields returns the names of the invalid fields, from struct or service validation.
func errorFields(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)

	var fields []string
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		for _, fe := range vErrs {
			fields = append(fields, fe.Field())
		}
		return fields
	}
	for _, fe := range validationError(t, err).Fields {
		fields = append(fields, fe.Field)
	}
	return fields
}

func TestNewUser_Validate(t *testing.T) {
	svc, repo, _ := setup(t)
	validate, _ := testutil.NewValidator()
	testutil.CreateStudent(t, repo, "Amani Kasongo", "amani@shule.test", "S001")

	tests := []struct {
		name      string
		nu        user.NewUser
		wantField string
	}{
		{name: "no name", nu: user.NewUser{Email: "x@shule.test"}, wantField: "name"},
		{name: "bad email", nu: user.NewUser{Name: "X", Email: "lol"}, wantField: "email"},
		{name: "bad role", nu: user.NewUser{Name: "X", Email: "x@shule.test", Role: "janitor"}, wantField: "role"},
		{name: "bad student ID", nu: user.NewUser{Name: "X", Email: "x@shule.test", StudentID: "S-001"}, wantField: "student_id"},
		{name: "weak password", nu: user.NewUser{Name: "X", Email: "x@shule.test", Password: "12345678", PasswordConfirm: "12345678"}, wantField: "password"},
		{name: "password mismatch", nu: user.NewUser{Name: "X", Email: "x@shule.test", Password: testutil.Password, PasswordConfirm: "lol"}, wantField: "password_confirm"},
		{name: "email taken", nu: user.NewUser{Name: "X", Email: " AMANI@shule.test "}, wantField: "email"},
		{name: "student ID taken", nu: user.NewUser{Name: "X", Email: "x@shule.test", StudentID: "S001"}, wantField: "student_id"},
		{name: "valid", nu: user.NewUser{Name: " X ", Email: "X@Shule.test", StudentID: "S_002", Password: testutil.Password, PasswordConfirm: testutil.Password}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(validate, svc)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "X", tt.nu.Name)
				assert.Equal(t, "x@shule.test", tt.nu.Email)
				return
			}
			assert.Equal(t, []string{tt.wantField}, errorFields(t, err))
		})
	}
}

func TestService_Create(t *testing.T) {
	svc, _, conf := setup(t)
	ctx := context.Background()

	std, err := svc.AddStudent(ctx, user.NewUser{Name: "Amani Kasongo", Email: "amani@shule.test", StudentID: "S001", Role: user.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, std.Role)
	assert.True(t, std.IsActive)
	assert.NoError(t, std.CheckPassword(conf.DefaultPassword), "the default password is used")

	teacher, err := svc.AddTeacher(ctx, user.NewUser{Name: "Grace Mwamba", Email: "grace@shule.test", StudentID: "S002", Password: testutil.Password})
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, teacher.Role)
	assert.Empty(t, teacher.StudentID)
	assert.NotNil(t, teacher.ApprovedAt)
	assert.NoError(t, teacher.CheckPassword(testutil.Password))

	t.Run("no default password", func(t *testing.T) {
		conf := core.NewTestConfig()
		conf.DefaultPassword = ""
		svc := user.NewService(inmemdb.NewUserRepository(inmemdb.NewDB()), emailsvc.NewConsoleServiceMock(conf), conf, testutil.NewLogger(conf))

		_, err := svc.AddStudent(ctx, user.NewUser{Name: "X", Email: "x@shule.test"})
		assert.Equal(t, user.ErrNoPassword, validationError(t, err).Err)
	})
}

func TestService_Register(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, user.NewUser{Name: "Jean Ilunga", Email: "jean@shule.test"})
	assert.Equal(t, user.ErrNoPassword, validationError(t, err).Err)

	usr, err := svc.Register(ctx, user.NewUser{Name: "Jean Ilunga", Email: "jean@shule.test", Role: user.RoleAdmin, Password: testutil.Password})
	require.NoError(t, err)
	assert.Equal(t, user.RolePendingTeacher, usr.Role)
	assert.Nil(t, usr.ApprovedAt)

	pending, err := svc.PendingTeachers(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, usr.ID, pending[0].ID)

	t.Run("approve", func(t *testing.T) {
		approved, err := svc.ApproveTeacher(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleTeacher, approved.Role)
		assert.NotNil(t, approved.ApprovedAt)

		_, err = svc.ApproveTeacher(ctx, usr.ID)
		assert.ErrorIs(t, err, user.ErrNotFound, "only pending teachers can be approved")

		teachers, err := svc.Teachers(ctx)
		require.NoError(t, err)
		assert.Len(t, teachers, 1)
	})

	t.Run("reject", func(t *testing.T) {
		other, err := svc.Register(ctx, user.NewUser{Name: "Paul Mbuyi", Email: "paul@shule.test", Password: testutil.Password})
		require.NoError(t, err)
		require.NoError(t, svc.RejectTeacher(ctx, other.ID))

		_, err = svc.GetByID(ctx, other.ID)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func TestService_Roles(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	std := testutil.CreateStudent(t, repo, "Amani Kasongo", "amani@shule.test", "S001")

	_, err := svc.SetRole(ctx, std.ID, "janitor")
	assert.Equal(t, user.ErrInvalidRole, validationError(t, err).Err)

	role, err := svc.GetRole(ctx, "lol")
	require.NoError(t, err)
	assert.Empty(t, role)

	_, err = svc.GetTeacher(ctx, std.ID)
	assert.ErrorIs(t, err, user.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteTeacher(ctx, std.ID), user.ErrNotFound)

	usr, err := svc.SetRole(ctx, std.ID, user.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, usr.Role)

	role, err = svc.GetRole(ctx, std.ID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, role)

	byNumber, err := svc.GetByStudentID(ctx, "S001")
	require.NoError(t, err)
	assert.Equal(t, std.ID, byNumber.ID)
}

func TestService_ResetPassword(t *testing.T) {
	svc, repo, conf := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "Grace Mwamba", "grace@shule.test", user.RoleTeacher, true)
	inactive := testutil.CreateUser(t, repo, "Jean Ilunga", "jean@shule.test", user.RoleTeacher, false)

	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "lol@shule.test"), user.ErrNotFound)
	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, inactive.Email), user.ErrNotFound)

	token, err := user.MakePasswordResetToken(usr, conf)
	require.NoError(t, err)
	newPwd := "N3w!Secret"

	tests := []struct {
		name      string
		data      user.ResetUserPassword
		wantField string
	}{
		{name: "bad uid", data: user.ResetUserPassword{UID: "%%%", Token: token, Password: newPwd}, wantField: "token"},
		{name: "unknown user", data: user.ResetUserPassword{UID: user.EncodeUID(user.User{ID: "lol"}), Token: token, Password: newPwd}, wantField: "token"},
		{name: "bad token", data: user.ResetUserPassword{UID: user.EncodeUID(usr), Token: "lol", Password: newPwd}, wantField: "token"},
		{name: "reset", data: user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token, Password: newPwd}},
		{name: "token is single use", data: user.ResetUserPassword{UID: user.EncodeUID(usr), Token: token, Password: newPwd}, wantField: "token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ResetPassword(ctx, tt.data)
			if tt.wantField != "" {
				vErr := validationError(t, err)
				require.Len(t, vErr.Fields, 1)
				assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
				return
			}
			require.NoError(t, err)
			refreshed, err := svc.GetByID(ctx, usr.ID)
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(newPwd))
		})
	}
}
