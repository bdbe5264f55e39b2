package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Map converts repo/infra errors into AppErrors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(CodeNotFound, "record not found", err)

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return Wrap(CodeAlreadyExists, "record already exists", err)

	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeDeadlineExceeded, "request timed out", err)

	case errors.Is(err, context.Canceled):
		return Wrap(CodeCanceled, "request was canceled", err)

	default:
		// fallback → bubble up error message for debugging
		return Wrap(CodeInternal, err.Error(), err)
	}
}

// HTTPStatus maps an error code to an HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeFailedPrecondition:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case CodeCanceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Respond writes err as a JSON error response in one place.
func Respond(c *gin.Context, err error) {
	mapped := Map(err)

	var appErr *AppError
	if !errors.As(mapped, &appErr) {
		appErr = &AppError{Code: CodeUnknown, Message: mapped.Error()}
	}

	c.AbortWithStatusJSON(HTTPStatus(appErr.Code), gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
	})
}
