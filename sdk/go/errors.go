package outreach

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes returned by the API
const (
	CodeConfiguration   = "configuration_error"
	CodeStaleAction     = "stale_action"
	CodeUnknownTemplate = "unknown_template"
	CodeNotFound        = "not_found"
	CodeUnauthorized    = "unauthorized"
	CodeRateLimited     = "rate_limit_exceeded"
)

// ErrEmptyID is returned when a campaign id argument is empty.
var ErrEmptyID = errors.New("outreach: campaign id is required")

// APIError represents an error response from the outreach API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("outreach: API error %d [%s]: %s", e.StatusCode, e.Code, e.Message)
}

// apiErrorWrapper matches the API error envelope.
type apiErrorWrapper struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func parseAPIError(statusCode int, body []byte) error {
	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Code != "" {
		return &APIError{
			StatusCode: statusCode,
			Code:       wrapper.Error.Code,
			Message:    wrapper.Error.Message,
			RequestID:  wrapper.Error.RequestID,
		}
	}

	return &APIError{
		StatusCode: statusCode,
		Code:       "unknown",
		Message:    string(body),
	}
}

// IsAPIError checks whether err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsStale reports whether err rejected a decision for a pause that is no
// longer open.
func IsStale(err error) bool {
	apiErr, ok := IsAPIError(err)
	return ok && apiErr.Code == CodeStaleAction
}
