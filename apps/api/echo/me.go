package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

// meApi serves the student portal: everything is scoped to the authenticated student.
type meApi struct {
	usrSvc   user.Service
	attSvc   attendance.Service
	resSvc   result.Service
	notifSvc notification.Service
}

func registerMeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := meApi{
		usrSvc:   deps.UserSvc,
		attSvc:   deps.AttendanceSvc,
		resSvc:   deps.ResultSvc,
		notifSvc: deps.NotificationSvc,
	}

	mg := g.Group("/me", jwt, studentMiddleware(api.usrSvc))
	mg.GET("/attendance", api.attendance)
	mg.GET("/results", api.results)
	mg.GET("/grades", api.grades)
	mg.GET("/notifications", api.notifications)
	mg.GET("/notifications/unread-count", api.unreadCount)
	mg.POST("/notifications/:id/read", api.markAsRead)
}

func (api *meApi) attendance(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	records, err := api.attSvc.StudentAttendance(ctx.Request().Context(), usr.StudentID, ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "finding attendance")
	}
	return ctx.JSON(http.StatusOK, StudentAttendanceResponse{Records: records, Summary: attendance.Summarize(records)})
}

func (api *meApi) results(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	records, err := api.resSvc.StudentResults(ctx.Request().Context(), usr.StudentID, ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "finding results")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *meApi) grades(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	grades, err := api.resSvc.StudentGrades(ctx.Request().Context(), usr.StudentID)
	if err != nil {
		return errors.Wrap(err, "computing grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *meApi) notifications(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	notifs, err := api.notifSvc.StudentNotifications(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "finding notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *meApi) unreadCount(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	count, err := api.notifSvc.UnreadCount(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: count})
}

func (api *meApi) markAsRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	notif, err := api.notifSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding notification")
	}
	if notif.StudentID != usr.ID {
		return errHttpNotFound
	}
	if notif, err = api.notifSvc.MarkAsRead(ctx.Request().Context(), notif.ID); err != nil {
		return errors.Wrap(err, "marking notification as read")
	}
	return ctx.JSON(http.StatusOK, notif)
}
