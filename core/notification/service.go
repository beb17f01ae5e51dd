package notification

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

// Limit is the number of notifications returned to a student.
const Limit = 20

var (
	// errors
	ErrNotFound     = core.NewNotFoundError("notification not found")
	ErrNoRecipients = errors.New("no recipients selected")
)

type (
	Repository interface {
		// CreateNotifications atomically creates all notifications, setting their IDs.
		CreateNotifications(ctx context.Context, notifs []Notification) ([]Notification, error)
		// QueryNotifications returns the notifications of the student, newest first.
		QueryNotifications(ctx context.Context, studentID string, limit int) ([]Notification, error)
		CountUnread(ctx context.Context, studentID string) (int, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		UpdateNotification(ctx context.Context, notif Notification) (Notification, error)
	}

	Service interface {
		StudentNotifications(ctx context.Context, studentID string) ([]Notification, error)
		UnreadCount(ctx context.Context, studentID string) (int, error)
		Get(ctx context.Context, id string) (Notification, error)
		Send(ctx context.Context, studentID string, nn NewNotification) (Notification, error)
		SendBulk(ctx context.Context, studentIDs []string, nn NewNotification) ([]Notification, error)
		Broadcast(ctx context.Context, b Broadcast) (int, error)
		MarkAsRead(ctx context.Context, id string) (Notification, error)
		NotifyAttendance(ctx context.Context, className string, sheet attendance.Sheet, records []attendance.Record) (int, error)
		NotifyResults(ctx context.Context, className string, sheet result.Sheet, records []result.Record) (int, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		logger  core.Logger
		email   bool
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		email:   conf.Notify.Email,
	}
}

func (svc *service) StudentNotifications(ctx context.Context, studentID string) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, studentID, Limit)
}

func (svc *service) UnreadCount(ctx context.Context, studentID string) (int, error) {
	return svc.repo.CountUnread(ctx, studentID)
}

func (svc *service) Get(ctx context.Context, id string) (Notification, error) {
	return svc.repo.GetNotification(ctx, id)
}

func (svc *service) Send(ctx context.Context, studentID string, nn NewNotification) (Notification, error) {
	if nn.Type == "" {
		nn.Type = TypeGeneral
	}
	notifs, err := svc.send(ctx, []string{studentID}, nn)
	if err != nil {
		return Notification{}, err
	}
	return notifs[0], nil
}

// SendBulk sends the same notification to every student in one batch.
func (svc *service) SendBulk(ctx context.Context, studentIDs []string, nn NewNotification) ([]Notification, error) {
	if nn.Type == "" {
		nn.Type = TypeAdmin
	}
	return svc.send(ctx, studentIDs, nn)
}

// Broadcast sends the notification to all students, or to the students of a class.
// Returns the number of recipients.
func (svc *service) Broadcast(ctx context.Context, b Broadcast) (int, error) {
	var students []user.User
	var err error
	if b.Target == TargetClass {
		students, err = svc.usrSvc.StudentsByClass(ctx, b.ClassID)
	} else {
		students, err = svc.usrSvc.Students(ctx)
	}
	if err != nil {
		return 0, errors.Wrap(err, "finding recipients")
	}

	ids := make([]string, 0, len(students))
	for _, std := range students {
		ids = append(ids, std.ID)
	}
	notifs, err := svc.SendBulk(ctx, ids, b.NewNotification)
	if err != nil {
		return 0, err
	}
	return len(notifs), nil
}

func (svc *service) send(ctx context.Context, studentIDs []string, nn NewNotification) ([]Notification, error) {
	studentIDs = core.UniqueStrings(studentIDs)
	if len(studentIDs) == 0 {
		return nil, core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "student_ids", Error: ErrNoRecipients.Error()})
	}

	now := time.Now().UTC()
	notifs := make([]Notification, 0, len(studentIDs))
	for _, id := range studentIDs {
		notifs = append(notifs, Notification{
			StudentID: id,
			Title:     nn.Title,
			Message:   nn.Message,
			Type:      nn.Type,
			Timestamp: now,
		})
	}

	notifs, err := svc.repo.CreateNotifications(ctx, notifs)
	if err != nil {
		return nil, errors.Wrap(err, "creating notifications")
	}
	if svc.email {
		svc.sendEmails(ctx, notifs)
	}
	return notifs, nil
}

func (svc *service) sendEmails(ctx context.Context, notifs []Notification) {
	ids := make([]string, 0, len(notifs))
	for _, n := range notifs {
		ids = append(ids, n.StudentID)
	}
	users, err := svc.usrSvc.GetByIDs(ctx, ids...)
	if err != nil {
		svc.logger.Error("emailing notifications", errors.Wrap(err, "finding recipients"))
		return
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	msgs := make([]*core.EmailMessage, 0, len(notifs))
	for _, n := range notifs {
		usr, ok := byID[n.StudentID]
		if !ok || usr.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{usr.MailAddress()},
			Subject:      n.Title,
			TemplateName: "notification",
			TemplateData: map[string]string{
				"Name":    usr.Name,
				"Title":   n.Title,
				"Message": n.Message,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

func (svc *service) MarkAsRead(ctx context.Context, id string) (Notification, error) {
	notif, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if notif.Read {
		return notif, nil
	}
	now := time.Now().UTC()
	notif.Read = true
	notif.ReadAt = &now
	return svc.repo.UpdateNotification(ctx, notif)
}

// studentUserIDs maps the student numbers of the students of the class to their user IDs.
func (svc *service) studentUserIDs(ctx context.Context, classID string) (map[string]string, error) {
	students, err := svc.usrSvc.StudentsByClass(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "finding class students")
	}
	ids := make(map[string]string, len(students))
	for _, std := range students {
		if std.StudentID != "" {
			ids[std.StudentID] = std.ID
		}
	}
	return ids, nil
}

// NotifyAttendance notifies the students marked absent or late. Returns the number of notifications sent.
func (svc *service) NotifyAttendance(ctx context.Context, className string, sheet attendance.Sheet, records []attendance.Record) (int, error) {
	ids, err := svc.studentUserIDs(ctx, sheet.ClassID)
	if err != nil {
		return 0, err
	}

	notifs := make([]Notification, 0)
	now := time.Now().UTC()
	for _, rec := range records {
		uid, ok := ids[rec.StudentID]
		if !ok || rec.Status == attendance.StatusPresent {
			continue
		}
		notifs = append(notifs, Notification{
			StudentID: uid,
			Title:     "Attendance: " + className,
			Message:   fmt.Sprintf("You were marked %s on %s.", rec.Status, sheet.Date),
			Type:      TypeAttendance,
			Timestamp: now,
		})
	}
	return svc.createAll(ctx, notifs)
}

// NotifyResults notifies the graded students of their score. Returns the number of notifications sent.
func (svc *service) NotifyResults(ctx context.Context, className string, sheet result.Sheet, records []result.Record) (int, error) {
	ids, err := svc.studentUserIDs(ctx, sheet.ClassID)
	if err != nil {
		return 0, err
	}

	label := result.ExamLabels[sheet.ExamType]
	notifs := make([]Notification, 0, len(records))
	now := time.Now().UTC()
	for _, rec := range records {
		uid, ok := ids[rec.StudentID]
		if !ok {
			continue
		}
		notifs = append(notifs, Notification{
			StudentID: uid,
			Title:     "Results: " + className,
			Message:   fmt.Sprintf("Your %s score is %s.", label, strconv.FormatFloat(rec.Score, 'f', -1, 64)),
			Type:      TypeResults,
			Timestamp: now,
		})
	}
	return svc.createAll(ctx, notifs)
}

func (svc *service) createAll(ctx context.Context, notifs []Notification) (int, error) {
	if len(notifs) == 0 {
		return 0, nil
	}
	notifs, err := svc.repo.CreateNotifications(ctx, notifs)
	if err != nil {
		return 0, errors.Wrap(err, "creating notifications")
	}
	if svc.email {
		svc.sendEmails(ctx, notifs)
	}
	return len(notifs), nil
}
