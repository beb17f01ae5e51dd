package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidToken         = echo.NewHTTPError(http.StatusUnauthorized, "missing, malformed or expired jwt")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errAccountPending       = echo.NewHTTPError(http.StatusForbidden, "account awaiting approval")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
	errTooManyRequests      = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")
)

// fieldMessages maps the invalid fields of a validation error to their messages.
func fieldMessages(err error, translator ut.Translator) (map[string]string, bool) {
	switch vErr := err.(type) {
	case validator.ValidationErrors:
		msgs := make(map[string]string, len(vErr))
		for _, fe := range vErr {
			msgs[fe.Field()] = fe.Translate(translator)
		}
		return msgs, true
	case *core.ValidationError:
		if len(vErr.Fields) == 0 {
			return nil, false
		}
		msgs := make(map[string]string, len(vErr.Fields))
		for _, fe := range vErr.Fields {
			msgs[fe.Field] = fe.Error
		}
		return msgs, true
	}
	return nil, false
}

// errorResponse returns the status code and the body to answer err with.
// ok is false for unexpected errors.
func errorResponse(err error, translator ut.Translator) (code int, body interface{}, ok bool) {
	cause := errors.Cause(err)

	if httpErr, isHTTP := cause.(*echo.HTTPError); isHTTP {
		if inner, isInner := httpErr.Internal.(*echo.HTTPError); isInner {
			httpErr = inner
		}
		return httpErr.Code, httpErr.Message, true
	}
	if msgs, isValidation := fieldMessages(cause, translator); isValidation {
		return http.StatusBadRequest, msgs, true
	}

	switch {
	case errors.As(err, new(*core.ValidationError)):
		return http.StatusBadRequest, cause.Error(), true
	case core.IsNotFound(err):
		return http.StatusNotFound, cause.Error(), true
	case cause == core.ErrForbidden:
		return http.StatusForbidden, core.ErrForbidden.Error(), true
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

// newAppHTTPErrorHandler returns an echo.HTTPErrorHandler answering domain errors with their status code.
// Unexpected errors are logged along with the authenticated user, and a core.shutdown error triggers signalShutdown.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, body, ok := errorResponse(err, translator)
		if !ok {
			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.User{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
			}
			logger.Error("unexpected error", errors.Wrap(err, ctx.Request().Method+" "+ctx.Path()), usr)
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				body = err.Error()
			}
		}
		if msg, isStr := body.(string); isStr {
			body = echo.Map{"error": msg}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, body)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
