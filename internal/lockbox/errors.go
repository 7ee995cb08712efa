package lockbox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// invalidRequest is the error string the backend uses for field-level validation failures.
const invalidRequest = "invalid request"

// APIError is a non-2xx answer from the backend.
//
// The backend replies with {"error": "...", "extra": ...}. When extra is an
// object it is flattened into Extra (field name to message); any other
// extra value is kept as Detail.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
	Extra      map[string]string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("lockbox api: %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("lockbox api: %d: %s", e.StatusCode, e.Message)
}

// IsValidation reports whether the error carries per-field messages.
func (e *APIError) IsValidation() bool {
	return e.Message == invalidRequest && len(e.Extra) > 0
}

// Fields returns the field names with messages, sorted.
func (e *APIError) Fields() []string {
	fields := make([]string, 0, len(e.Extra))
	for k := range e.Extra {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// parseAPIError builds an [APIError] from a failed response. Bodies that are
// not the backend's JSON error shape fall back to the HTTP status text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var raw struct {
		Error string          `json:"error"`
		Extra json.RawMessage `json:"extra"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.Error == "" {
		apiErr.Message = strings.ToLower(http.StatusText(statusCode))
		if apiErr.Message == "" {
			apiErr.Message = "unexpected response"
		}
		return apiErr
	}
	apiErr.Message = raw.Error

	if len(raw.Extra) == 0 || string(raw.Extra) == "null" {
		return apiErr
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw.Extra, &fields); err == nil {
		apiErr.Extra = make(map[string]string, len(fields))
		for name, msg := range fields {
			apiErr.Extra[name] = flattenMessage(msg)
		}
		return apiErr
	}

	apiErr.Detail = flattenMessage(raw.Extra)
	return apiErr
}

// flattenMessage renders a string or a list of strings as one message.
// Anything else is returned as compact JSON.
func flattenMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}

	return strings.TrimSpace(string(raw))
}
