package middleware

import (
	"github.com/labstack/echo/v4"
)

// HeaderTerminal names the terminal that served a response. With several
// front-desk terminals sharing one store it tells operators whose board
// answered.
const HeaderTerminal = "X-Frontdesk-Terminal"

// SecurityHeaders marks every response as non-cacheable and non-frameable
// and stamps it with terminalID when one is configured. Board views change
// every second.
func SecurityHeaders(terminalID string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderXFrameOptions, "DENY")
			h.Set(echo.HeaderReferrerPolicy, "no-referrer")
			h.Set(echo.HeaderCacheControl, "no-store")
			if terminalID != "" {
				h.Set(HeaderTerminal, terminalID)
			}
			return next(c)
		}
	}
}
