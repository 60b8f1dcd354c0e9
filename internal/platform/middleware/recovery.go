package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// PanicObserver counts recovered panics per route.
type PanicObserver interface {
	ObservePanic(route string)
}

// Recovery turns a handler panic into a 500 and logs the stack. obs may be
// nil.
func Recovery(logger zerolog.Logger, obs PanicObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				route := c.Path()
				if route == "" {
					route = c.Request().URL.Path
				}
				if obs != nil {
					obs.ObservePanic(route)
				}
				logger.Error().
					Str("request_id", requestID(c)).
					Str("route", route).
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("handler panicked")
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
