package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Types
const (
	TypeAdmin      = "admin"
	TypeAttendance = "attendance"
	TypeResults    = "results"
	TypeGeneral    = "general"
)

// Broadcast targets
const (
	TargetAll   = "all"
	TargetClass = "class"
)

var Types = []string{TypeAdmin, TypeAttendance, TypeResults, TypeGeneral}

type Notification struct {
	ID        string     `json:"id" db:"id" firestore:"-"`
	StudentID string     `json:"student_id" db:"student_id" firestore:"studentId"` // recipient user ID
	Title     string     `json:"title" db:"title" firestore:"title"`
	Message   string     `json:"message" db:"message" firestore:"message"`
	Type      string     `json:"type" db:"type" firestore:"type"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp" firestore:"timestamp"`
	Read      bool       `json:"read" db:"read" firestore:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty" db:"read_at" firestore:"readAt"`
}

// NewNotification contains information needed to send a Notification.
type NewNotification struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"omitempty,notiftype"`
}

func (nn *NewNotification) clean() {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.clean()
	return validate.Struct(nn)
}

// SendBulk sends a NewNotification to the selected students.
type SendBulk struct {
	NewNotification
	StudentIDs []string `json:"student_ids"`
}

func (sb *SendBulk) Validate(validate *validator.Validate) error {
	sb.clean()
	sb.StudentIDs = core.UniqueStrings(sb.StudentIDs)
	if err := validate.Struct(sb); err != nil {
		return err
	}
	if len(sb.StudentIDs) == 0 {
		return core.NewValidationError(ErrNoRecipients, core.FieldError{Field: "student_ids", Error: ErrNoRecipients.Error()})
	}
	return nil
}

// Broadcast sends a NewNotification to all students, or to the students of a class.
type Broadcast struct {
	NewNotification
	Target  string `json:"target" validate:"required,broadcasttarget"`
	ClassID string `json:"class_id" validate:"required_if=Target class"`
}

func (b *Broadcast) Validate(validate *validator.Validate) error {
	b.clean()
	b.Target = core.CleanString(b.Target, true /* lower */)
	b.ClassID = core.CleanString(b.ClassID)
	return validate.Struct(b)
}
