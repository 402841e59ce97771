package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"maclink/internal/models"
)

const msgSuccessful = "Successful"

// SuccessResponse is the envelope of every successful API response.
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Results int    `json:"results"`
	Data    any    `json:"data"`
}

func respond(c echo.Context, status int, data any, results int) error {
	return c.JSON(status, SuccessResponse{
		Status:  "success",
		Message: msgSuccessful,
		Results: results,
		Data:    data,
	})
}

func ok(c echo.Context, data any) error {
	return respond(c, http.StatusOK, data, 1)
}

func created(c echo.Context, data any) error {
	return respond(c, http.StatusCreated, data, 1)
}

func okPage[T any](c echo.Context, page models.Page[T]) error {
	return respond(c, http.StatusOK, page, len(page.Items))
}
