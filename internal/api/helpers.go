package api

import (
	"io"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": apiError{Message: msg, Type: errType},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	dec := json.NewDecoder(r)
	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
