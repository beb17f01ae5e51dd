package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/metrics"
	"github.com/trezcool/shule/services/ratelimit"
)

const contextClassKey = "class"

// roleMiddleware only lets users with one of roles through.
func roleMiddleware(svc user.Service, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			for _, role := range roles {
				if usr.Role == role {
					return next(ctx)
				}
			}
			if usr.IsPendingTeacher() {
				return errAccountPending
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleAdmin)
}

func staffMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleAdmin, user.RoleTeacher)
}

func studentMiddleware(svc user.Service) echo.MiddlewareFunc {
	return roleMiddleware(svc, user.RoleStudent)
}

// classMiddleware loads the `:id` Class into the context.
// Admins access every class, teachers the classes they own and, when readOnly, students the class they are enrolled in.
func classMiddleware(clsSvc class.Service, usrSvc user.Service, readOnly bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			cls, err := clsSvc.Get(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding class")
			}

			allowed := usr.IsAdmin() || (usr.IsTeacher() && cls.IsOwnedBy(usr.ID)) ||
				(readOnly && usr.IsStudent() && cls.HasStudent(usr.ID))
			if !allowed {
				return errHttpForbidden
			}
			ctx.Set(contextClassKey, cls)
			return next(ctx)
		}
	}
}

func getContextClass(ctx echo.Context) class.Class {
	cls, _ := ctx.Get(contextClassKey).(class.Class)
	return cls
}

// rateLimitMiddleware limits requests per client IP and route.
// The limiter failing lets the request through.
func rateLimitMiddleware(limiter ratelimit.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ok, err := limiter.Allow(ctx.Request().Context(), ctx.RealIP()+":"+ctx.Path())
			if err != nil {
				logger.Warn("rate limiter", err)
				return next(ctx)
			}
			if !ok {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

// metricsMiddleware records every request by route pattern.
func metricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveRequest(ctx.Request().Method, route, ctx.Response().Status, time.Since(start))
			return nil
		}
	}
}
