package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestObserver receives one observation per served request.
type RequestObserver interface {
	ObserveRequest(method, route, status string, elapsed time.Duration)
}

// Metrics reports method, matched route and status of every request to obs.
// The route template is used rather than the raw path to bound label
// cardinality.
func Metrics(obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(c.Request().Method, route, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}
