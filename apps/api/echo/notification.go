package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/metrics"
)

type notificationApi struct {
	svc      notification.Service
	usrSvc   user.Service
	clsSvc   class.Service
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := notificationApi{
		svc:      deps.NotificationSvc,
		usrSvc:   deps.UserSvc,
		clsSvc:   deps.ClassSvc,
		validate: deps.Validate,
		metrics:  deps.Metrics,
	}

	ng := g.Group("/notifications", jwt, staffMiddleware(api.usrSvc))
	ng.POST("", api.send)
	ng.POST("/bulk", api.sendBulk)
	ng.POST("/broadcast", api.broadcast, adminMiddleware(api.usrSvc))
}

func (api *notificationApi) send(ctx echo.Context) error {
	var data SendNotificationRequest
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	std, err := api.usrSvc.GetStudent(ctx.Request().Context(), data.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if err := api.checkTeaches(ctx, std); err != nil {
		return err
	}
	notif, err := api.svc.Send(ctx.Request().Context(), std.ID, data.NewNotification)
	if err != nil {
		return errors.Wrap(err, "sending notification")
	}
	api.metrics.NotificationsSent.WithLabelValues(notif.Type).Inc()
	return ctx.JSON(http.StatusCreated, notif)
}

func (api *notificationApi) sendBulk(ctx echo.Context) error {
	var data notification.SendBulk
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.checkRecipients(ctx, data.StudentIDs); err != nil {
		return err
	}
	notifs, err := api.svc.SendBulk(ctx.Request().Context(), data.StudentIDs, data.NewNotification)
	if err != nil {
		return errors.Wrap(err, "sending notifications")
	}
	if len(notifs) > 0 {
		api.metrics.NotificationsSent.WithLabelValues(notifs[0].Type).Add(float64(len(notifs)))
	}
	return ctx.JSON(http.StatusCreated, CountResponse{Count: len(notifs)})
}

// checkRecipients rejects ids that are not students, then applies checkTeaches.
func (api *notificationApi) checkRecipients(ctx echo.Context, ids []string) error {
	stds, err := api.usrSvc.GetByIDs(ctx.Request().Context(), ids...)
	if err != nil {
		return errors.Wrap(err, "finding students")
	}
	found := make(map[string]bool, len(stds))
	for _, std := range stds {
		if std.IsStudent() {
			found[std.ID] = true
		}
	}
	var unknown []string
	for _, id := range ids {
		if !found[id] {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		msg := "unknown students: " + strings.Join(unknown, ", ")
		return core.NewValidationError(user.ErrNotFound, core.FieldError{Field: "student_ids", Error: msg})
	}

	for _, std := range stds {
		if err := api.checkTeaches(ctx, std); err != nil {
			return err
		}
	}
	return nil
}

// checkTeaches allows teachers to notify the students enrolled in the classes they own only.
func (api *notificationApi) checkTeaches(ctx echo.Context, std user.User) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if !usr.IsTeacher() {
		return nil
	}
	if std.ClassID != "" {
		cls, err := api.clsSvc.Get(ctx.Request().Context(), std.ClassID)
		if err == nil && cls.IsOwnedBy(usr.ID) && cls.HasStudent(std.ID) {
			return nil
		}
		if err != nil && errors.Cause(err) != class.ErrNotFound {
			return errors.Wrap(err, "finding class")
		}
	}
	return errHttpForbidden
}

func (api *notificationApi) broadcast(ctx echo.Context) error {
	var data notification.Broadcast
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	count, err := api.svc.Broadcast(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "broadcasting notification")
	}
	typ := data.Type
	if typ == "" {
		typ = notification.TypeAdmin
	}
	api.metrics.NotificationsSent.WithLabelValues(typ).Add(float64(count))
	return ctx.JSON(http.StatusCreated, CountResponse{Count: count})
}

type SendNotificationRequest struct {
	notification.NewNotification
	StudentID string `json:"student_id" validate:"required"`
}

func (r *SendNotificationRequest) Validate(validate *validator.Validate) error {
	r.StudentID = core.CleanString(r.StudentID)
	if err := r.NewNotification.Validate(validate); err != nil {
		return err
	}
	return validate.Struct(r)
}
