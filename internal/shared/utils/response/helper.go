package response

import (
	"errors"
	"net/http"

	"fanclub/internal/shared/apperr"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// StatusFor maps an error code onto the HTTP status the fan client expects
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation, apperr.CodeInvalidCart:
		return http.StatusBadRequest
	case apperr.CodeAuth:
		return http.StatusUnauthorized
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeHoldExpired:
		return http.StatusGone
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeInvalidState, apperr.CodeInFlight:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err in the standard envelope. Conflicts carry the
// unavailable seats under errors.seatIds.
func RespondError(c *gin.Context, fallbackMessage string, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		RespondJSON(c, "error", http.StatusInternalServerError, fallbackMessage, nil, nil)
		return
	}

	code := StatusFor(appErr.Code)
	var details interface{}
	if len(appErr.SeatIDs) > 0 {
		details = gin.H{"code": appErr.Code, "seatIds": appErr.SeatIDs}
	} else {
		details = gin.H{"code": appErr.Code}
	}
	RespondJSON(c, "error", code, appErr.Message, nil, details)
}
