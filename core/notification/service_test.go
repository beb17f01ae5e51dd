package notification_test

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

func TestMain(m *testing.M) {
	testutil.ParseTemplates(core.NewTestConfig())
	os.Exit(m.Run())
}

type fixture struct {
	svc       notification.Service
	cls       class.Class
	std1      user.User
	std2      user.User
	std3      user.User // not enrolled
	teacher   user.User
	usrRepo   user.Repository
	clsRepo   class.Repository
	notifRepo notification.Repository
}

func setup(t *testing.T, email bool) *fixture {
	t.Helper()
	emailsvc.ResetSentMessages()

	conf := core.NewTestConfig()
	conf.Notify.Email = email
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	clsRepo := inmemdb.NewClassRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewService(usrRepo, mailSvc, conf, testutil.NewLogger(conf))

	fx := &fixture{
		usrRepo: usrRepo,
		clsRepo: clsRepo,
		teacher: testutil.CreateUser(t, usrRepo, "Grace Mwamba", "grace@shule.test", user.RoleTeacher, true),
		std1:    testutil.CreateStudent(t, usrRepo, "Amani Kasongo", "amani@shule.test", "S001"),
		std2:    testutil.CreateStudent(t, usrRepo, "Neema Kabila", "neema@shule.test", "S002"),
		std3:    testutil.CreateStudent(t, usrRepo, "Baraka Tshala", "baraka@shule.test", "S003"),
	}
	fx.cls = testutil.CreateClass(t, clsRepo, usrRepo, fx.teacher.ID, "Form 1A", fx.std1, fx.std2)
	repo := inmemdb.NewNotificationRepository(db)
	fx.notifRepo = repo
	fx.svc = notification.NewService(repo, usrSvc, mailSvc, conf, testutil.NewLogger(conf))
	return fx
}

func TestService_Send(t *testing.T) {
	fx := setup(t, false)
	ctx := context.Background()

	notif, err := fx.svc.Send(ctx, fx.std1.ID, notification.NewNotification{Title: "Trip", Message: "Bring a packed lunch."})
	require.NoError(t, err)
	assert.NotEmpty(t, notif.ID)
	assert.Equal(t, notification.TypeGeneral, notif.Type)
	assert.False(t, notif.Read)
	assert.Empty(t, emailsvc.SentMessages)

	_, err = fx.svc.SendBulk(ctx, nil, notification.NewNotification{Title: "Trip", Message: "Cancelled."})
	assert.ErrorIs(t, err, notification.ErrNoRecipients)

	notifs, err := fx.svc.SendBulk(ctx, []string{fx.std1.ID, fx.std2.ID, fx.std1.ID}, notification.NewNotification{Title: "Fees", Message: "Due Friday."})
	require.NoError(t, err)
	require.Len(t, notifs, 2)
	assert.Equal(t, notification.TypeAdmin, notifs[0].Type)

	list, err := fx.svc.StudentNotifications(ctx, fx.std1.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	count, err := fx.svc.UnreadCount(ctx, fx.std1.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t.Run("mark as read", func(t *testing.T) {
		read, err := fx.svc.MarkAsRead(ctx, notif.ID)
		require.NoError(t, err)
		assert.True(t, read.Read)
		require.NotNil(t, read.ReadAt)

		again, err := fx.svc.MarkAsRead(ctx, notif.ID)
		require.NoError(t, err)
		assert.Equal(t, read.ReadAt, again.ReadAt)

		count, err := fx.svc.UnreadCount(ctx, fx.std1.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = fx.svc.MarkAsRead(ctx, "lol")
		assert.ErrorIs(t, err, notification.ErrNotFound)
	})
}

func TestService_Broadcast(t *testing.T) {
	fx := setup(t, true)
	ctx := context.Background()
	nn := notification.NewNotification{Title: "Holiday", Message: "School is closed on Monday."}

	n, err := fx.svc.Broadcast(ctx, notification.Broadcast{NewNotification: nn, Target: notification.TargetAll})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = fx.svc.Broadcast(ctx, notification.Broadcast{NewNotification: nn, Target: notification.TargetClass, ClassID: fx.cls.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := fx.svc.UnreadCount(ctx, fx.std3.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("emails", func(t *testing.T) {
		require.Len(t, emailsvc.SentMessages, 5)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, "Holiday", msg.Subject)
		assert.Contains(t, msg.TextContent, "School is closed on Monday.")
	})
}

func TestService_NotifyAttendance(t *testing.T) {
	fx := setup(t, false)
	ctx := context.Background()

	sheet := attendance.Sheet{ID: attendance.SheetID(fx.cls.ID, "2026-10-15"), ClassID: fx.cls.ID, Date: "2026-10-15"}
	records := []attendance.Record{
		{StudentID: "S001", Status: attendance.StatusAbsent},
		{StudentID: "S002", Status: attendance.StatusPresent},
		{StudentID: "S003", Status: attendance.StatusLate}, // not in the class
		{StudentID: "S404", Status: attendance.StatusLate},
	}
	n, err := fx.svc.NotifyAttendance(ctx, fx.cls.Name, sheet, records)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := fx.svc.StudentNotifications(ctx, fx.std1.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeAttendance, list[0].Type)
	assert.Equal(t, "Attendance: Form 1A", list[0].Title)
	assert.Equal(t, "You were marked absent on 2026-10-15.", list[0].Message)

	n, err = fx.svc.NotifyAttendance(ctx, fx.cls.Name, sheet, records[1:2])
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_NotifyResults(t *testing.T) {
	fx := setup(t, false)
	ctx := context.Background()

	sheet := result.Sheet{ID: result.SheetID(fx.cls.ID, result.ExamGroupWork), ClassID: fx.cls.ID, ExamType: result.ExamGroupWork}
	records := []result.Record{
		{StudentID: "S001", Score: 88.5},
		{StudentID: "S002", Score: 70},
		{StudentID: "S003", Score: 50},
	}
	n, err := fx.svc.NotifyResults(ctx, fx.cls.Name, sheet, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := fx.svc.StudentNotifications(ctx, fx.std1.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, notification.TypeResults, list[0].Type)
	assert.Equal(t, "Your Group Work score is 88.5.", list[0].Message)

	list, err = fx.svc.StudentNotifications(ctx, fx.std2.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Your Group Work score is 70.", list[0].Message)
}

type failingUserService struct {
	user.Service
}

func (failingUserService) GetByIDs(context.Context, ...string) ([]user.User, error) {
	return nil, errors.New("connection reset")
}

func TestService_Send_emailLookupFails(t *testing.T) {
	emailsvc.ResetSentMessages()
	conf := core.NewTestConfig()
	conf.Notify.Email = true

	out := new(bytes.Buffer)
	logger := logsvc.NewRollbarLogger(log.New(out, "", 0), conf)
	svc := notification.NewService(
		inmemdb.NewNotificationRepository(inmemdb.NewDB()),
		failingUserService{},
		emailsvc.NewConsoleServiceMock(conf),
		conf,
		logger,
	)

	notif, err := svc.Send(context.Background(), "std-1", notification.NewNotification{Title: "Trip", Message: "Bring a packed lunch."})
	require.NoError(t, err)
	assert.NotEmpty(t, notif.ID)
	assert.Empty(t, emailsvc.SentMessages)
	assert.Contains(t, out.String(), "emailing notifications")
	assert.Contains(t, out.String(), "connection reset")
}
