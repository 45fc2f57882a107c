package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/kanbanboard/core/internal/domain/entities"
	"github.com/kanbanboard/core/internal/infrastructure/logger"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds an error body for code
func NewErrorResponse(code int, message string) ErrorResponse {
	return ErrorResponse{
		Status:    code,
		Error:     http.StatusText(code),
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// StatusForError maps domain errors onto HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation),
		errors.Is(err, entities.ErrNeighborNotFound),
		errors.Is(err, entities.ErrInvalidNeighbor):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrEmailAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler as an ErrorResponse.
// Server error messages are replaced by the status text unless echo runs in
// debug mode.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := StatusForError(err)
		message := err.Error()

		var (
			he  *echo.HTTPError
			ves validator.ValidationErrors
		)
		switch {
		case errors.As(err, &he):
			code = he.Code
			message = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		case errors.As(err, &ves):
			code = http.StatusBadRequest
			message = "validation failed: " + ves.Error()
		}

		if code >= http.StatusInternalServerError {
			fields := append([]interface{}{"error", err, "path", c.Request().URL.Path}, IdentityFields(c)...)
			log.Errorw("Internal server error", fields...)
			if !c.Echo().Debug {
				message = http.StatusText(code)
			}
		}

		if c.Response().Committed {
			return
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, NewErrorResponse(code, message))
		}
		if err != nil {
			log.Errorw("Error sending response", "error", err)
		}
	}
}
