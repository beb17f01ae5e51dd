// Package testutil holds fixtures shared by the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
	appfs "github.com/trezcool/shule/fs"
	logsvc "github.com/trezcool/shule/services/logger"
)

// Password is the password of every user created here.
const Password = "Sh0ule!Pwd"

// NewLogger returns a silent logger.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewValidator returns a validator with every custom validation and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.RegisterValidators(validate, translator)
	attendance.RegisterValidators(validate, translator)
	result.RegisterValidators(validate, translator)
	notification.RegisterValidators(validate, translator)
	return validate, translator
}

// ParseTemplates parses the embedded email templates.
func ParseTemplates(conf *core.Config) {
	core.ParseEmailTemplates(appfs.FS, conf, NewLogger(conf))
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student with the school issued studentID.
func CreateStudent(t *testing.T, repo user.Repository, name, email, studentID string) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      user.RoleStudent,
		StudentID: studentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

// CreateClass creates a class owned by teacherID, with students enrolled both ways.
func CreateClass(
	t *testing.T,
	repo class.Repository,
	usrRepo user.Repository,
	teacherID, name string,
	students ...user.User,
) class.Class {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC()
	cls, err := repo.CreateClass(ctx, class.Class{
		TeacherID: teacherID,
		Name:      name,
		Students:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	for _, std := range students {
		if cls, err = repo.AddStudent(ctx, cls.ID, std.ID); err != nil {
			t.Fatalf("CreateClass() failed: %v", err)
		}
		std.ClassID = cls.ID
		if _, err = usrRepo.UpdateUser(ctx, std); err != nil {
			t.Fatalf("CreateClass() failed: %v", err)
		}
	}
	return cls
}
