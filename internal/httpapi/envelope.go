package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"accountd/internal/i18n"
)

// The response envelope is uniform across every endpoint: handlers only
// ever emit one of these two shapes, localized through the resolved
// request language.

type successEnvelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

type failureEnvelope struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"errorCode"`
	ErrorName    string `json:"errorName"`
	ErrorMessage string `json:"errorMessage"`
}

// Success writes the success envelope. data may be nil; messageKey is
// resolved against the i18n catalog.
func Success(w http.ResponseWriter, lang i18n.Language, status int, data any, messageKey string) {
	writeJSON(w, status, successEnvelope{
		Status:  "success",
		Data:    data,
		Message: i18n.T(lang, messageKey),
	})
}

// Fail writes the failure envelope for the given wire error name. The
// localized message is looked up by that same name.
func Fail(w http.ResponseWriter, lang i18n.Language, status int, errorName string) {
	writeJSON(w, status, failureEnvelope{
		Status:       "failed",
		ErrorCode:    strconv.Itoa(status),
		ErrorName:    errorName,
		ErrorMessage: i18n.T(lang, errorName),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
