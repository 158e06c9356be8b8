package wire

import (
	"errors"
	"testing"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
)

func TestDecode_Success(t *testing.T) {
	resp, err := Decode([]byte(`{"body":{"result":["sig123"]}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	success, ok := resp.(*SignSuccess)
	if !ok {
		t.Fatalf("Decode() = %T, want *SignSuccess", resp)
	}
	if success.Signature() != "sig123" {
		t.Errorf("Signature() = %q, want %q", success.Signature(), "sig123")
	}
	if success.RequestID() != "" {
		t.Errorf("RequestID() = %q, want empty", success.RequestID())
	}
}

func TestDecode_SuccessWithIDAndStatus(t *testing.T) {
	resp, err := Decode([]byte(`{"id":"sig-1","status":true,"body":{"result":["first","second"]}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	success, ok := resp.(*SignSuccess)
	if !ok {
		t.Fatalf("Decode() = %T, want *SignSuccess", resp)
	}
	if success.RequestID() != "sig-1" {
		t.Errorf("RequestID() = %q, want %q", success.RequestID(), "sig-1")
	}
	if success.Signature() != "first" {
		t.Errorf("Signature() = %q, want first element", success.Signature())
	}
}

func TestDecode_Unrecognized(t *testing.T) {
	frames := []string{
		`{"body":{}}`,
		`{"status":true,"body":{}}`,
		`{"body":{"result":[]}}`,
		`{"body":{"result":"not-a-list"}}`,
		`{"body":{"result":null}}`,
		`{"result":["top-level"]}`,
		`[1,2,3]`,
		`"just a string"`,
		`{}`,
	}

	for _, f := range frames {
		t.Run(f, func(t *testing.T) {
			resp, err := Decode([]byte(f))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if _, ok := resp.(*Unrecognized); !ok {
				t.Errorf("Decode() = %T, want *Unrecognized", resp)
			}
		})
	}
}

func TestDecode_ParseError(t *testing.T) {
	frames := []string{"not json", `{"body":`, "", "<html>"}

	for _, f := range frames {
		t.Run(f, func(t *testing.T) {
			resp, err := Decode([]byte(f))
			if err == nil {
				t.Fatalf("Decode() = %v, want error", resp)
			}
			if !errors.Is(err, domain.ErrProtocolParse) {
				t.Errorf("Decode() error = %v, want ErrProtocolParse", err)
			}
		})
	}
}

func TestDecode_AgentError(t *testing.T) {
	tests := []struct {
		name     string
		frame    string
		wantCode string
	}{
		{"string code", `{"status":false,"code":"500","message":"storage.empty"}`, "500"},
		{"numeric code", `{"status":false,"code":500,"message":"action.canceled"}`, "500"},
		{"message only", `{"status":false,"message":"boom"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			se, ok := resp.(*SignError)
			if !ok {
				t.Fatalf("Decode() = %T, want *SignError", resp)
			}
			if se.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", se.Code, tt.wantCode)
			}
			if !errors.Is(se.Err(), domain.ErrAgentRejected) {
				t.Errorf("Err() = %v, want ErrAgentRejected", se.Err())
			}
		})
	}
}

func TestDecode_StatusFalseWithoutDetailsIsUnrecognized(t *testing.T) {
	resp, err := Decode([]byte(`{"status":false}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, ok := resp.(*Unrecognized); !ok {
		t.Errorf("Decode() = %T, want *Unrecognized", resp)
	}
}
