package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) Healthcheck(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
