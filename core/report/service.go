package report

import (
	"bytes"
	"context"
	"io"
	"net/mail"
	"path"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrInvalidKind = errors.New("report type must be one of attendance or results")
)

type (
	// FileStore stores generated files and serves them back through a URL.
	FileStore interface {
		Save(ctx context.Context, filePath string, r io.Reader, contentType string) (url string, err error)
	}

	Report struct {
		ClassID     string    `json:"class_id"`
		Kind        string    `json:"type"`
		Filename    string    `json:"filename"`
		Path        string    `json:"path"`
		URL         string    `json:"url"`
		GeneratedAt time.Time `json:"generated_at"`
		Content     []byte    `json:"-"`
	}

	GenerateReport struct {
		Kind  string `json:"type" validate:"required"`
		Email bool   `json:"email"` // also email the report to the requester
	}

	Service interface {
		Generate(ctx context.Context, cls class.Class, kind string) (Report, error)
		Email(rep Report, className string, to user.User)
	}

	service struct {
		store   FileStore
		usrSvc  user.Service
		attSvc  attendance.Service
		resSvc  result.Service
		mailSvc core.EmailService
		logger  core.Logger
		nowFunc func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(
	store FileStore,
	usrSvc user.Service,
	attSvc attendance.Service,
	resSvc result.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	return &service{
		store:   store,
		usrSvc:  usrSvc,
		attSvc:  attSvc,
		resSvc:  resSvc,
		mailSvc: mailSvc,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Generate builds the spreadsheet of the class, stores it under `reports/` and returns its download URL.
func (svc *service) Generate(ctx context.Context, cls class.Class, kind string) (Report, error) {
	students, err := svc.usrSvc.StudentsByClass(ctx, cls.ID)
	if err != nil {
		return Report{}, errors.Wrap(err, "finding class students")
	}

	var table Table
	switch kind {
	case KindAttendance:
		records, err := svc.attSvc.ClassAttendance(ctx, cls.ID)
		if err != nil {
			return Report{}, errors.Wrap(err, "finding class attendance")
		}
		table = AttendanceTable(students, records)
	case KindResults:
		records, err := svc.resSvc.ClassResults(ctx, cls.ID)
		if err != nil {
			return Report{}, errors.Wrap(err, "finding class results")
		}
		table = ResultsTable(students, records)
	default:
		return Report{}, core.NewValidationError(ErrInvalidKind, core.FieldError{Field: "type", Error: ErrInvalidKind.Error()})
	}

	var buf bytes.Buffer
	if err = WriteWorkbook(&buf, sheetNames[kind], table); err != nil {
		return Report{}, err
	}

	now := svc.nowFunc().UTC()
	rep := Report{
		ClassID:     cls.ID,
		Kind:        kind,
		Filename:    Filename(cls.Name, kind, now),
		GeneratedAt: now,
		Content:     buf.Bytes(),
	}
	rep.Path = path.Join(Dir, rep.Filename)

	if rep.URL, err = svc.store.Save(ctx, rep.Path, bytes.NewReader(rep.Content), ContentType); err != nil {
		return Report{}, errors.Wrap(err, "storing report")
	}
	return rep, nil
}

// Email sends the report as an attachment.
func (svc *service) Email(rep Report, className string, to user.User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{to.MailAddress()},
		Subject:      className + " " + rep.Kind + " report",
		TemplateName: "report",
		TemplateData: map[string]string{
			"Name":      to.Name,
			"Kind":      rep.Kind,
			"ClassName": className,
			"URL":       rep.URL,
		},
	}
	if err := msg.Attach(bytes.NewReader(rep.Content), rep.Filename, ContentType); err != nil {
		svc.logger.Error("emailing report "+rep.Filename, err, to)
		return
	}
	svc.mailSvc.SendMessages(msg)
}
