package mercadolibre

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is a non-2xx answer from the MercadoLibre API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"error"`
	Message string `json:"message"`
	Body    string `json:"-"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = e.Body
	}
	return fmt.Sprintf("mercadolibre: status %d: %s", e.Status, msg)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: strings.TrimSpace(string(body))}
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		e.Message = parsed.Message
		e.Code = parsed.Error
	}
	return e
}

// StatusCode returns the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == 404
}
