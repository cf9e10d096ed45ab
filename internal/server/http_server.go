package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	echoapi "github.com/coinkeep/finauth/api/echo"
	"github.com/coinkeep/finauth/config"
)

// NewHTTPServer creates and configures the Echo HTTP server hosting the
// auth endpoints.
func NewHTTPServer(cfg *config.ServerConfig, authAPI *echoapi.AuthAPI) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(requestLogger())

	authAPI.RegisterRoutes(e)

	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger logs one structured line per request.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			event := log.Info()
			if err != nil {
				event = log.Error().Err(err)
			}
			event.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Str("latency", time.Since(start).String()).
				Str("ip", c.RealIP()).
				Msg("HTTP request")

			return err
		}
	}
}
