// Package response defines the envelope returned by every tool invocation.
//
// An Envelope is either a success carrying data or an error carrying a
// message and an ErrorCode. Both variants carry a Unix timestamp taken when
// the envelope was built. No other shape crosses the tool boundary.
package response

import (
	"bytes"
	"encoding/json"
	"time"
)

// ErrorCode classifies a failed invocation.
type ErrorCode string

const (
	// CodeValidation marks malformed or missing caller arguments.
	CodeValidation ErrorCode = "VALIDATION_ERROR"

	// CodeUnknown covers everything else: file problems, encoding failures,
	// a missing vision client, remote faults and internal faults.
	CodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// Envelope is the tagged success/error result of one invocation.
type Envelope struct {
	Success   bool
	Data      any
	Message   string
	Code      ErrorCode
	Timestamp int64
}

type successWire struct {
	Success   bool  `json:"success"`
	Data      any   `json:"data"`
	Timestamp int64 `json:"timestamp"`
}

type errorWire struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	ErrorCode ErrorCode `json:"error_code"`
	Timestamp int64     `json:"timestamp"`
}

// MarshalJSON emits only the fields of the active variant:
//
//	{"success":true,"data":...,"timestamp":N}
//	{"success":false,"error":"...","error_code":"...","timestamp":N}
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Success {
		return marshalUnescaped(successWire{Success: true, Data: e.Data, Timestamp: e.Timestamp})
	}
	return marshalUnescaped(errorWire{
		Success:   false,
		Error:     e.Message,
		ErrorCode: e.Code,
		Timestamp: e.Timestamp,
	})
}

// marshalUnescaped is json.Marshal without HTML escaping. Encoders that
// escape HTML still apply it to the returned bytes.
func marshalUnescaped(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// JSON serializes the envelope as UTF-8 without escaping HTML characters.
// Non-ASCII text is written as-is.
func (e Envelope) JSON() (string, error) {
	b, err := marshalUnescaped(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Builder constructs envelopes stamped by its clock.
type Builder struct {
	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

func (b Builder) now() int64 {
	if b.Now == nil {
		return time.Now().Unix()
	}
	return b.Now().Unix()
}

// Success wraps data in a success envelope.
func (b Builder) Success(data any) Envelope {
	return Envelope{Success: true, Data: data, Timestamp: b.now()}
}

// Error builds an error envelope. An empty code means CodeUnknown.
func (b Builder) Error(message string, code ErrorCode) Envelope {
	if code == "" {
		code = CodeUnknown
	}
	return Envelope{Message: message, Code: code, Timestamp: b.now()}
}

// ValidationError builds an error envelope with CodeValidation.
func (b Builder) ValidationError(message string) Envelope {
	return b.Error(message, CodeValidation)
}

var std Builder

// Success wraps data in a success envelope stamped with the current time.
func Success(data any) Envelope { return std.Success(data) }

// Error builds an error envelope stamped with the current time.
func Error(message string, code ErrorCode) Envelope { return std.Error(message, code) }

// ValidationError builds a VALIDATION_ERROR envelope stamped with the current time.
func ValidationError(message string) Envelope { return std.ValidationError(message) }
