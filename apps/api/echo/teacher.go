package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

type teacherApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerTeacherAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := teacherApi{svc: deps.UserSvc, validate: deps.Validate}

	tg := g.Group("/teachers", jwt, adminMiddleware(api.svc))
	tg.GET("", api.query)
	tg.POST("", api.create)
	tg.GET("/pending", api.pending)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update)
	tg.DELETE("/:id", api.destroy)
	tg.POST("/:id/approve", api.approve)
	tg.POST("/:id/reject", api.reject)
}

func (api *teacherApi) query(ctx echo.Context) error {
	teachers, err := api.svc.Teachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) pending(ctx echo.Context) error {
	teachers, err := api.svc.PendingTeachers(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending teachers")
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	data.Role = user.RoleTeacher
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	tch, err := api.svc.AddTeacher(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding teacher")
	}
	return ctx.JSON(http.StatusCreated, tch)
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	tch, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) update(ctx echo.Context) error {
	tch, err := api.svc.GetTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding teacher")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	data.Role = ""
	data.StudentID = nil
	data.ClassID = nil
	if err = data.Validate(tch, api.validate, api.svc); err != nil {
		return err
	}
	if tch, err = api.svc.Update(ctx.Request().Context(), tch, data); err != nil {
		return errors.Wrap(err, "updating teacher")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteTeacher(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *teacherApi) approve(ctx echo.Context) error {
	tch, err := api.svc.ApproveTeacher(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving teacher")
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *teacherApi) reject(ctx echo.Context) error {
	if err := api.svc.RejectTeacher(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "rejecting teacher")
	}
	return ctx.NoContent(http.StatusNoContent)
}
