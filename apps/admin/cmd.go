package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.Migrate  // mockable

	errHelp        = errors.New("help provided")
	errNoSQL       = errors.New("migrations require a postgres database")
	errEmptyPwd    = errors.New("password cannot be empty")
	errPwdMismatch = errors.New("passwords do not match")
)

type commandLine struct {
	conf    *core.Config
	db      *sql.DB
	usrRepo user.Repository
	out     io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Shule administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(cli.migrateCmd(), cli.addUserCmd(), cli.resetPasswordCmd())
	return root
}

func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	err := root.Execute()
	if err != nil && err != errHelp {
		_, _ = fmt.Fprintf(cli.out, "\nerror: %s\n", err)
	}
	return err
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate COMMAND [ARGS...]",
		Short:              "Run a goose migration command: up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Help()
				return errHelp
			}
			if cli.db == nil {
				return errNoSQL
			}
			return gooseRunFunc(cli.db, args[0], args[1:]...)
		},
	}
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, role, studentID string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the user with the same email. The password is prompted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = core.CleanString(email, true /* lower */)
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword(true, name, email, studentID)
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), name, email, role, studentID, pwd)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %s (%s) saved\n", usr.Email, usr.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required)")
	cmd.Flags().StringVar(&name, "name", "", "the user's full name")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "one of admin, teacher or student")
	cmd.Flags().StringVar(&studentID, "student-id", "", "the school issued student number, for students")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email = core.CleanString(email, true /* lower */)
			if email == "" {
				_ = cmd.Help()
				return errHelp
			}
			usr, err := cli.usrRepo.GetUser(cmd.Context(), user.GetFilter{Email: email})
			if err != nil {
				return err
			}
			pwd, err := cli.promptPassword(false, usr.Name, usr.Email, usr.StudentID)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), usr, pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email (required)")
	return cmd
}

// promptPassword reads the password from the terminal, and checks it against the password policy.
func (cli *commandLine) promptPassword(confirm bool, attrs ...string) (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password: ")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errEmptyPwd
	}
	if msg := user.ValidatePassword(string(pwd), attrs...); msg != "" {
		return "", errors.New(msg)
	}

	if confirm {
		_, _ = fmt.Fprint(cli.out, "Confirm password: ")
		pwdConfirm, err := readPasswordFunc(int(syscall.Stdin))
		_, _ = fmt.Fprintln(cli.out)
		if err != nil {
			return "", err
		}
		if string(pwdConfirm) != string(pwd) {
			return "", errPwdMismatch
		}
	}
	return string(pwd), nil
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, name, email, role, studentID, pwd string) (user.User, error) {
	role = core.CleanString(role, true /* lower */)
	if role == user.RolePendingTeacher || !containsRole(role) {
		return user.User{}, user.ErrInvalidRole
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	isNew := false
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		isNew = true
		usr = user.User{Email: email, CreatedAt: now}
	}

	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	if usr.Name == "" {
		usr.Name = email
	}
	usr.Role = role
	if role == user.RoleStudent {
		if studentID = core.CleanString(studentID); studentID != "" {
			usr.StudentID = studentID
		}
	}
	if err = cli.usrRepo.CheckUniqueness(ctx, usr.Email, usr.StudentID, usr); err != nil {
		return user.User{}, err
	}
	if usr.ApprovedAt == nil {
		usr.ApprovedAt = &now
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if isNew {
		return cli.usrRepo.CreateUser(ctx, usr)
	}
	return cli.usrRepo.UpdateUser(ctx, usr)
}

func (cli *commandLine) resetPassword(ctx context.Context, usr user.User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err := cli.usrRepo.UpdateUser(ctx, usr)
	return err
}

func containsRole(role string) bool {
	for _, r := range user.AllRoles {
		if r == role {
			return true
		}
	}
	return false
}
