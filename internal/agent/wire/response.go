package wire

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

// Response is an inbound agent message. The set of implementations is closed.
type Response interface {
	// RequestID returns the echoed correlation id, or "" if the agent
	// did not echo one.
	RequestID() string

	isResponse()
}

// SignSuccess is a completed signing call.
type SignSuccess struct {
	ID      string
	Results []string
}

// Signature returns the first result, which is the CMS signature.
func (r *SignSuccess) Signature() string {
	return r.Results[0]
}

// RequestID implements Response.
func (r *SignSuccess) RequestID() string { return r.ID }

func (*SignSuccess) isResponse() {}

// SignError is an error answered by the agent.
type SignError struct {
	ID      string
	Code    string
	Message string
	Details string
}

// RequestID implements Response.
func (r *SignError) RequestID() string { return r.ID }

func (*SignError) isResponse() {}

// Err converts the agent error into a domain error.
func (r *SignError) Err() error {
	details := "code=" + r.Code
	if r.Message != "" {
		details += " message=" + r.Message
	}
	if r.Details != "" {
		details += " details=" + r.Details
	}
	return domain.ErrAgentRejected.WithDetails(details)
}

// Unrecognized is valid JSON that matches no known shape. A user closing
// the certificate dialog produces one ({"status":true,"body":{}}).
type Unrecognized struct {
	ID  string
	Raw json.RawMessage
}

// RequestID implements Response.
func (r *Unrecognized) RequestID() string { return r.ID }

func (*Unrecognized) isResponse() {}

// envelope is the loose superset of every inbound shape.
type envelope struct {
	ID      string      `json:"id"`
	Status  *bool       `json:"status"`
	Code    flexString  `json:"code"`
	Message string      `json:"message"`
	Details string      `json:"details"`
	Body    *resultBody `json:"body"`
}

type resultBody struct {
	Result json.RawMessage `json:"result"`
}

// flexString accepts both "500" and 500.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = flexString(strconv.FormatFloat(n, 'f', -1, 64))
	return nil
}

// Decode classifies a raw text frame.
//
// Only frames that are not valid JSON return an error; every valid
// JSON document yields one of the Response variants.
func Decode(frame []byte) (Response, error) {
	if !json.Valid(frame) {
		return nil, domain.ErrProtocolParse.WithDetails(truncate(frame, 64))
	}

	raw := json.RawMessage(append([]byte(nil), frame...))

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		// Valid JSON of another shape (array, string, mistyped field).
		return &Unrecognized{Raw: raw}, nil
	}

	if env.Body != nil && len(env.Body.Result) > 0 {
		var results []string
		if err := json.Unmarshal(env.Body.Result, &results); err == nil && len(results) > 0 {
			return &SignSuccess{ID: env.ID, Results: results}, nil
		}
	}

	if env.Status != nil && !*env.Status && (env.Code != "" || env.Message != "") {
		return &SignError{
			ID:      env.ID,
			Code:    string(env.Code),
			Message: env.Message,
			Details: env.Details,
		}, nil
	}

	return &Unrecognized{ID: env.ID, Raw: raw}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
