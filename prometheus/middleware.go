package prometheus

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware adds prometheus metrics to track HTTP requests
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()

			method := c.Request().Method
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)

			if HttpRequestsTotal != nil {
				HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
			}
			if HttpRequestDuration != nil {
				HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
			}

			return err
		}
	}
}
