package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) er(c echo.Context, statusCode int, msg string) error {
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	return c.JSON(statusCode, echo.Map{
		"error": msg,
	})
}
