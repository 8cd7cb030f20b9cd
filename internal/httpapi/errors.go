package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kanzleiwerk/aktenregister/internal/apperr"
)

// writeError renders an error as the structured wire payload. Unclassified
// errors are logged and hidden behind a generic 500 body so driver internals
// never leak to clients.
func (s *Server) writeError(c *gin.Context, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		s.logger.Error("unclassified error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, &apperr.Error{
			Kind:    apperr.KindDatabase,
			Code:    apperr.CodeInternal,
			Message: "internal error",
		})
		return
	}
	c.JSON(statusFor(e), e)
}

// statusFor maps an error kind to an HTTP status. The busy condition is 503
// so clients treat it as transient; other database faults are 500.
func statusFor(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindDatabase:
		if e.Code == apperr.CodeBusy {
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
