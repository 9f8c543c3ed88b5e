package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"milk-delivery/internal/domain"
	"milk-delivery/internal/postgrest"
	"milk-delivery/internal/service/session"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func errorBody(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var loginErr *session.LoginError
	var restErr *postgrest.Error
	switch {
	case errors.As(err, &loginErr):
		c.JSON(http.StatusUnauthorized, errorBody(loginErr.Error()))
		return
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOffline):
		status = http.StatusServiceUnavailable
	case errors.As(err, &restErr):
		_ = c.Error(err)
		c.JSON(status, errorResponse{Error: restErr.Message, Code: restErr.Code})
		return
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, errorBody(err.Error()))
}
