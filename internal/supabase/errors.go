package supabase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// APIError is an error response from PostgREST or GoTrue.
type APIError struct {
	Status  int
	Message string
	Code    string
	Hint    string
	Details string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "supabase API error %d: %s", e.Status, e.Message)
	if e.Code != "" {
		fmt.Fprintf(&b, " (code %s)", e.Code)
	}
	return b.String()
}

// Rejected reports a definitive client-side refusal such as bad credentials,
// a revoked refresh token or a constraint violation.
func (e *APIError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// LogFields returns the error's parts as structured log fields.
func (e *APIError) LogFields() logrus.Fields {
	fields := logrus.Fields{"status": e.Status, "message": e.Message}
	if e.Code != "" {
		fields["code"] = e.Code
	}
	if e.Hint != "" {
		fields["hint"] = e.Hint
	}
	if e.Details != "" {
		fields["details"] = e.Details
	}
	return fields
}

// errorBody covers both the PostgREST and the GoTrue error shapes.
type errorBody struct {
	Message          string          `json:"message"`
	Code             json.RawMessage `json:"code"`
	Hint             string          `json:"hint"`
	Details          string          `json:"details"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	ErrorCode        string          `json:"error_code"`
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	apiErr := &APIError{Status: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	apiErr.Message = firstNonEmpty(body.Message, body.Msg, body.ErrorDescription, body.Error, http.StatusText(resp.StatusCode))
	apiErr.Code = firstNonEmpty(body.ErrorCode, rawCode(body.Code), body.Error)
	apiErr.Hint = body.Hint
	apiErr.Details = body.Details
	return apiErr
}

// rawCode renders a code that may be sent as a JSON string or number.
func rawCode(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
