// Package middleware wires the HTTP middleware chain for the market feed API
package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// SetupLoggerMiddleware installs request logging and panic recovery on the
// Echo instance. Recovery keeps a panicking REST handler from taking the
// websocket sessions down with it.
func SetupLoggerMiddleware(e *echo.Echo) {
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}: ip=${remote_ip}, req=${method}, uri=${uri}, status=${status}, error=${error}, latency=${latency_human}\n",
	}))
	e.Use(middleware.Recover())
}
