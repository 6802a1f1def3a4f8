// Package ubus implements the JSON-RPC transport that LuCI uses to reach
// rpcd objects through uhttpd-mod-ubus.
package ubus

import (
	"errors"
	"fmt"
)

// NullSession is the session ID of an unauthenticated rpcd session.
const NullSession = "00000000000000000000000000000000"

// Status is a ubus status code as returned in the first element of a call
// result.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidCommand
	StatusInvalidArgument
	StatusMethodNotFound
	StatusNotFound
	StatusNoData
	StatusPermissionDenied
	StatusTimeout
	StatusNotSupported
	StatusUnknownError
	StatusConnectionFailed
)

var statusText = [...]string{
	StatusOK:               "Request successful",
	StatusInvalidCommand:   "Invalid command",
	StatusInvalidArgument:  "Invalid argument",
	StatusMethodNotFound:   "Method not found",
	StatusNotFound:         "Resource not found",
	StatusNoData:           "No data received",
	StatusPermissionDenied: "Permission denied",
	StatusTimeout:          "Request timeout",
	StatusNotSupported:     "Operation not supported",
	StatusUnknownError:     "Unspecified error",
	StatusConnectionFailed: "Connection failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusText) {
		return "Unknown error code"
	}
	return statusText[s]
}

// StatusError is returned when rpcd answered a call with a non-zero ubus
// status.
type StatusError struct {
	Object string
	Method string
	Code   Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("RPC call to %s/%s failed with ubus code %d: %s", e.Object, e.Method, int(e.Code), e.Code)
}

// JSON-RPC error codes used by uhttpd-mod-ubus.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAccessDenied   = -32002
)

// RPCError is a JSON-RPC level error, for example an expired session.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// ErrAccessDenied matches an *RPCError with CodeAccessDenied.
var ErrAccessDenied = errors.New("access denied")

func (e *RPCError) Is(target error) bool {
	return target == ErrAccessDenied && e.Code == CodeAccessDenied
}
