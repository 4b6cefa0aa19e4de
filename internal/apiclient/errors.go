package apiclient

import (
	"encoding/json"
	"net/http"

	"fanclub/internal/shared/apperr"
)

type errorDetails struct {
	SeatIDs []string `json:"seatIds"`
}

// errorFromResponse maps an HTTP failure onto the error taxonomy of the
// client core. A 404 carries notFound when set, CodeNotFound otherwise.
func errorFromResponse(status int, env envelope, notFound apperr.Code) error {
	message := env.Message
	if message == "" {
		message = http.StatusText(status)
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperr.New(apperr.CodeValidation, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.New(apperr.CodeAuth, message)
	case status == http.StatusGone:
		return apperr.New(apperr.CodeHoldExpired, message)
	case status == http.StatusNotFound:
		if notFound == "" {
			notFound = apperr.CodeNotFound
		}
		return apperr.New(notFound, message)
	case status == http.StatusConflict:
		var details errorDetails
		if len(env.Errors) > 0 {
			_ = json.Unmarshal(env.Errors, &details)
		}
		return apperr.Conflict(message, details.SeatIDs)
	default:
		// 429 and 5xx are worth another try
		return apperr.New(apperr.CodeServer, message)
	}
}
