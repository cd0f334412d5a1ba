package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
)

// Logger writes one line per request and attaches a request-scoped logger to
// the request context so zerolog.Ctx picks up the request id downstream.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			reqLogger := logger.With().Str("request_id", RequestIDFrom(c)).Logger()
			c.SetRequest(req.WithContext(reqLogger.WithContext(req.Context())))

			err := next(c)

			evt := reqLogger.Info()
			if err != nil {
				evt = reqLogger.Error().Err(err)
			}
			evt.
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status(c, err)).
				Dur("latency", time.Since(start)).
				Str("user", auth.UserIDFromContext(c.Request().Context())).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}

// status reports what the error handler will send when err has not been
// written yet.
func status(c echo.Context, err error) int {
	if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
		return he.Code
	}
	return c.Response().Status
}
