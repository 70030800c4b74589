package middleware

import (
	"time"

	xlogger "OptRoll/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request at debug level.
func RequestLogging(l *xlogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			l.Debug("http request",
				xlogger.String("method", req.Method),
				xlogger.String("uri", req.RequestURI),
				xlogger.String("remote", c.RealIP()),
				xlogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				xlogger.Int("status", res.Status),
				xlogger.Duration("duration_ms", time.Since(start)),
			)
			return nil
		}
	}
}
