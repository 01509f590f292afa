// Package ustatus carries the outcome of a uProtocol RPC invocation, along
// with the canonical status-code space shared by every uProtocol language
// SDK.
package ustatus

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Code is a transport-agnostic outcome code, numerically aligned with
// google.rpc.Code so a UStatus can be carried unchanged across a gRPC
// bridge.
type Code int32

const (
	CodeOK                 Code = 0
	CodeCancelled          Code = 1
	CodeUnknown            Code = 2
	CodeInvalidArgument    Code = 3
	CodeDeadlineExceeded   Code = 4
	CodeNotFound           Code = 5
	CodeAlreadyExists      Code = 6
	CodePermissionDenied   Code = 7
	CodeResourceExhausted  Code = 8
	CodeFailedPrecondition Code = 9
	CodeAborted            Code = 10
	CodeOutOfRange         Code = 11
	CodeUnimplemented      Code = 12
	CodeInternal           Code = 13
	CodeUnavailable        Code = 14
	CodeDataLoss           Code = 15
	CodeUnauthenticated    Code = 16
)

var codeNames = map[Code]string{
	CodeOK:                 "OK",
	CodeCancelled:          "CANCELLED",
	CodeUnknown:            "UNKNOWN",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeDeadlineExceeded:   "DEADLINE_EXCEEDED",
	CodeNotFound:           "NOT_FOUND",
	CodeAlreadyExists:      "ALREADY_EXISTS",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeResourceExhausted:  "RESOURCE_EXHAUSTED",
	CodeFailedPrecondition: "FAILED_PRECONDITION",
	CodeAborted:            "ABORTED",
	CodeOutOfRange:         "OUT_OF_RANGE",
	CodeUnimplemented:      "UNIMPLEMENTED",
	CodeInternal:           "INTERNAL",
	CodeUnavailable:        "UNAVAILABLE",
	CodeDataLoss:           "DATA_LOSS",
	CodeUnauthenticated:    "UNAUTHENTICATED",
}

// String returns the canonical upper-snake-case name of c, or "UNKNOWN" for
// an unrecognized value.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Status reports the outcome of an operation: a code plus a human-readable
// message. The zero value is CodeOK with an empty message.
type Status struct {
	Code    Code   `cbor:"0,keyasint"`
	Message string `cbor:"1,keyasint"`
}

// New builds a Status with the given code and message.
func New(code Code, message string) *Status {
	return &Status{Code: code, Message: message}
}

// OK returns the canonical success status.
func OK() *Status {
	return &Status{Code: CodeOK}
}

// Fail is a convenience constructor equivalent to New(CodeInternal, ...),
// formatted like fmt.Errorf.
func Fail(format string, args ...interface{}) *Status {
	return &Status{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// IsOK reports whether s represents success. A nil Status is treated as OK.
func (s *Status) IsOK() bool {
	return s == nil || s.Code == CodeOK
}

// Error implements the error interface so a *Status can be returned and
// compared like any other Go error.
func (s *Status) Error() string {
	if s == nil {
		return CodeOK.String()
	}
	if s.Message == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// MarshalCBOR encodes s for use as an RPC error response payload.
func (s *Status) MarshalCBOR() ([]byte, error) {
	type alias Status
	return cbor.Marshal((*alias)(s))
}

// UnmarshalStatusCBOR decodes a Status previously produced by
// (*Status).MarshalCBOR, such as an error response payload.
func UnmarshalStatusCBOR(data []byte) (*Status, error) {
	var s Status
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
