package echoapi

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

type studentApi struct {
	svc      user.Service
	clsSvc   class.Service
	attSvc   attendance.Service
	resSvc   result.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := studentApi{
		svc:      deps.UserSvc,
		clsSvc:   deps.ClassSvc,
		attSvc:   deps.AttendanceSvc,
		resSvc:   deps.ResultSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/students", jwt)
	admin := adminMiddleware(api.svc)
	staff := staffMiddleware(api.svc)

	sg.GET("", api.query, admin)
	sg.POST("", api.create, admin)
	sg.GET("/:id", api.retrieve, staff)
	sg.PUT("/:id", api.update, admin)
	sg.DELETE("/:id", api.destroy, admin)

	sg.GET("/:id/attendance", api.attendance, staff)
	sg.GET("/:id/results", api.results, staff)
	sg.GET("/:id/grades", api.grades, staff)
}

func (api *studentApi) query(ctx echo.Context) error {
	var (
		students []user.User
		err      error
	)
	if classID := ctx.QueryParam("class_id"); classID != "" {
		students, err = api.svc.StudentsByClass(ctx.Request().Context(), classID)
	} else {
		students, err = api.svc.Students(ctx.Request().Context())
	}
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	data.Role = user.RoleStudent
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	std, err := api.svc.AddStudent(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) update(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	data.Role = "" // students stay students
	classID := data.ClassID
	data.ClassID = nil
	if err = data.Validate(std, api.validate, api.svc); err != nil {
		return err
	}
	if std, err = api.svc.Update(ctx.Request().Context(), std, data); err != nil {
		return errors.Wrap(err, "updating student")
	}
	if classID != nil {
		if std, err = moveStudent(ctx, api.clsSvc, api.svc, std, *classID); err != nil {
			return err
		}
	}
	return ctx.JSON(http.StatusOK, std)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteStudent(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) attendance(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	records, err := api.attSvc.StudentAttendance(ctx.Request().Context(), std.StudentID, ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "finding student attendance")
	}
	return ctx.JSON(http.StatusOK, StudentAttendanceResponse{Records: records, Summary: attendance.Summarize(records)})
}

func (api *studentApi) results(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	records, err := api.resSvc.StudentResults(ctx.Request().Context(), std.StudentID, ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "finding student results")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *studentApi) grades(ctx echo.Context) error {
	std, err := api.svc.GetStudent(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	grades, err := api.resSvc.StudentGrades(ctx.Request().Context(), std.StudentID)
	if err != nil {
		return errors.Wrap(err, "computing student grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

// moveStudent enrolls std in classID, or removes std from its class when classID is empty.
func moveStudent(ctx echo.Context, clsSvc class.Service, usrSvc user.Service, std user.User, classID string) (user.User, error) {
	classID = strings.TrimSpace(classID)
	if classID == std.ClassID {
		return std, nil
	}
	var err error
	if classID == "" {
		_, err = clsSvc.RemoveStudent(ctx.Request().Context(), std.ClassID, std.ID)
	} else {
		_, err = clsSvc.EnrollStudent(ctx.Request().Context(), classID, std.ID)
	}
	if err != nil {
		return user.User{}, errors.Wrap(err, "moving student")
	}
	return usrSvc.GetByID(ctx.Request().Context(), std.ID)
}

type StudentAttendanceResponse struct {
	Records []attendance.Record `json:"records"`
	Summary attendance.Summary  `json:"summary"`
}
