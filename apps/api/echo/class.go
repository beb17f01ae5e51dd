package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/core/report"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/metrics"
)

type classApi struct {
	conf     *core.Config
	svc      class.Service
	usrSvc   user.Service
	attSvc   attendance.Service
	resSvc   result.Service
	notifSvc notification.Service
	repSvc   report.Service
	validate *validator.Validate
	metrics  *metrics.Metrics
}

func registerClassAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, deps *Deps) {
	api := classApi{
		conf:     conf,
		svc:      deps.ClassSvc,
		usrSvc:   deps.UserSvc,
		attSvc:   deps.AttendanceSvc,
		resSvc:   deps.ResultSvc,
		notifSvc: deps.NotificationSvc,
		repSvc:   deps.ReportSvc,
		validate: deps.Validate,
		metrics:  deps.Metrics,
	}

	cg := g.Group("/classes", jwt)
	cg.GET("", api.query, roleMiddleware(api.usrSvc, user.RoleAdmin, user.RoleTeacher, user.RoleStudent))
	cg.POST("", api.create, staffMiddleware(api.usrSvc))

	// every class member may read
	rg := cg.Group("/:id", classMiddleware(api.svc, api.usrSvc, true))
	rg.GET("", api.retrieve)

	// only the class owner (or an admin) may write
	wg := cg.Group("/:id", classMiddleware(api.svc, api.usrSvc, false))
	wg.PUT("", api.update)
	wg.DELETE("", api.destroy)

	wg.GET("/students", api.students)
	wg.POST("/students", api.enroll)
	wg.DELETE("/students/:studentId", api.unenroll)

	wg.POST("/attendance", api.markAttendance)
	wg.GET("/attendance", api.attendance)
	wg.GET("/attendance/sheets", api.attendanceSheets)

	wg.POST("/results", api.saveResults)
	wg.GET("/results", api.results)
	wg.GET("/results/sheets", api.resultSheets)

	wg.POST("/reports", api.generateReport)
}

// Classes

func (api *classApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	filter := new(class.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []class.Class{})
	}
	filter.Clean()
	switch {
	case usr.IsTeacher():
		filter.TeacherID = usr.ID
	case usr.IsStudent():
		filter.TeacherID = ""
		filter.StudentID = usr.ID
	}

	classes, err := api.svc.All(ctx.Request().Context(), filter, bindOrdering(ctx, class.OrderingFields))
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) create(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data class.NewClass
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// teachers create their own classes, admins assign a teacher
	teacherID := usr.ID
	if usr.IsAdmin() {
		teacherID = data.TeacherID
	}
	cls, err := api.svc.Create(ctx.Request().Context(), teacherID, data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, getContextClass(ctx))
}

func (api *classApi) update(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data class.UpdateClass
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	if !usr.IsAdmin() {
		data.TeacherID = nil
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Update(ctx.Request().Context(), getContextClass(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), getContextClass(ctx).ID); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollment

func (api *classApi) students(ctx echo.Context) error {
	students, err := api.usrSvc.StudentsByClass(ctx.Request().Context(), getContextClass(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "finding class students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *classApi) enroll(ctx echo.Context) error {
	var data class.Enrollment
	if err := ctx.Bind(&data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.EnrollStudent(ctx.Request().Context(), getContextClass(ctx).ID, data.StudentID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) unenroll(ctx echo.Context) error {
	cls, err := api.svc.RemoveStudent(ctx.Request().Context(), getContextClass(ctx).ID, ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "removing student")
	}
	return ctx.JSON(http.StatusOK, cls)
}

// Attendance

func (api *classApi) markAttendance(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data attendance.MarkAttendance
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls := getContextClass(ctx)
	sheet, records, err := api.attSvc.Mark(ctx.Request().Context(), cls.ID, data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	api.metrics.AttendanceMarked.Add(float64(len(records)))

	resp := AttendanceResponse{Sheet: sheet, Records: records, Summary: attendance.Summarize(records)}
	if api.conf.Notify.OnAttendance {
		resp.Notified, err = api.notifSvc.NotifyAttendance(ctx.Request().Context(), cls.Name, sheet, records)
		if err != nil {
			// attendance is saved: report the failure without failing the request
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "notifying attendance"))
		}
		api.metrics.NotificationsSent.WithLabelValues(notification.TypeAttendance).Add(float64(resp.Notified))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *classApi) attendance(ctx echo.Context) error {
	cls := getContextClass(ctx)

	var (
		records []attendance.Record
		err     error
	)
	if date := ctx.QueryParam("date"); date != "" {
		records, err = api.attSvc.ByDate(ctx.Request().Context(), cls.ID, date)
	} else {
		var filter attendance.RecordFilter
		if err = ctx.Bind(&filter); err != nil {
			return err
		}
		records, err = api.attSvc.ClassAttendance(ctx.Request().Context(), cls.ID, filter)
	}
	if err != nil {
		return errors.Wrap(err, "finding class attendance")
	}
	return ctx.JSON(http.StatusOK, AttendanceResponse{Records: records, Summary: attendance.Summarize(records)})
}

func (api *classApi) attendanceSheets(ctx echo.Context) error {
	sheets, err := api.attSvc.Sheets(ctx.Request().Context(), getContextClass(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "finding attendance sheets")
	}
	return ctx.JSON(http.StatusOK, sheets)
}

// Results

func (api *classApi) saveResults(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data result.SaveResults
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cls := getContextClass(ctx)
	sheet, records, err := api.resSvc.Save(ctx.Request().Context(), cls.ID, data, usr.ID)
	if err != nil {
		return errors.Wrap(err, "saving results")
	}
	api.metrics.ResultsSaved.Add(float64(len(records)))

	resp := ResultsResponse{Sheet: sheet, Records: records}
	if api.conf.Notify.OnResults {
		resp.Notified, err = api.notifSvc.NotifyResults(ctx.Request().Context(), cls.Name, sheet, records)
		if err != nil {
			ctx.Logger().Errorf("%+v", errors.Wrap(err, "notifying results"))
		}
		api.metrics.NotificationsSent.WithLabelValues(notification.TypeResults).Add(float64(resp.Notified))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *classApi) results(ctx echo.Context) error {
	cls := getContextClass(ctx)

	var (
		records []result.Record
		err     error
	)
	if examType := ctx.QueryParam("exam_type"); examType != "" {
		records, err = api.resSvc.Results(ctx.Request().Context(), cls.ID, core.CleanString(examType, true /* lower */))
	} else {
		records, err = api.resSvc.ClassResults(ctx.Request().Context(), cls.ID)
	}
	if err != nil {
		return errors.Wrap(err, "finding class results")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *classApi) resultSheets(ctx echo.Context) error {
	sheets, err := api.resSvc.Sheets(ctx.Request().Context(), getContextClass(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "finding results sheets")
	}
	return ctx.JSON(http.StatusOK, sheets)
}

// Reports

func (api *classApi) generateReport(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}

	var data report.GenerateReport
	if err = ctx.Bind(&data); err != nil {
		return err
	}
	data.Kind = core.CleanString(data.Kind, true /* lower */)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	cls := getContextClass(ctx)
	rep, err := api.repSvc.Generate(ctx.Request().Context(), cls, data.Kind)
	if err != nil {
		return errors.Wrap(err, "generating report")
	}
	api.metrics.ReportsGenerated.WithLabelValues(rep.Kind).Inc()

	if data.Email {
		api.repSvc.Email(rep, cls.Name, usr)
	}
	return ctx.JSON(http.StatusCreated, rep)
}

type (
	AttendanceResponse struct {
		Sheet    attendance.Sheet    `json:"sheet"`
		Records  []attendance.Record `json:"records"`
		Summary  attendance.Summary  `json:"summary"`
		Notified int                 `json:"notified"`
	}

	ResultsResponse struct {
		Sheet    result.Sheet    `json:"sheet"`
		Records  []result.Record `json:"records"`
		Notified int             `json:"notified"`
	}
)
