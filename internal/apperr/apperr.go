// Package apperr classifies every failure the booking client can see into a
// small closed set of kinds shared by the orchestrator and the presentation
// layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type Kind string

const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindNetwork    Kind = "network_error"
	KindServer     Kind = "server_error"
)

// Remote and synthesized error codes.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeInvalidEmail     = "INVALID_EMAIL"
	CodeInvalidSeatClass = "INVALID_SEAT_CLASS"
	CodeNameMismatch     = "NAME_MISMATCH"
	CodeUserNotFound     = "USER_NOT_FOUND"
	CodeFlightNotFound   = "FLIGHT_NOT_FOUND"
	CodeBookingNotFound  = "BOOKING_NOT_FOUND"
	CodeNoSeats          = "NO_SEATS_AVAILABLE"
	CodeAlreadyCancelled = "ALREADY_CANCELLED"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
	CodeBookingNotActive = "BOOKING_NOT_ACTIVE"
	CodeEmailExists      = "EMAIL_EXISTS"
	CodeNetwork          = "NETWORK_ERROR"
	CodeServer           = "SERVER_ERROR"
)

var codeKinds = map[string]Kind{
	CodeValidation:       KindValidation,
	CodeInvalidEmail:     KindValidation,
	CodeInvalidSeatClass: KindValidation,
	CodeNameMismatch:     KindValidation,
	CodeUserNotFound:     KindNotFound,
	CodeFlightNotFound:   KindNotFound,
	CodeBookingNotFound:  KindNotFound,
	CodeNoSeats:          KindConflict,
	CodeAlreadyCancelled: KindConflict,
	CodeAlreadyCompleted: KindConflict,
	CodeBookingNotActive: KindConflict,
	CodeEmailExists:      KindConflict,
	CodeNetwork:          KindNetwork,
}

var defaultMessages = map[Kind]string{
	KindValidation: "Some of the details you entered are not valid.",
	KindNotFound:   "We could not find what you were looking for.",
	KindConflict:   "That request conflicts with the current state of your booking.",
	KindNetwork:    "We could not reach the booking service. Check your connection and try again.",
	KindServer:     "The booking service ran into a problem. Please try again later.",
}

// Error is the single failure shape handed to callers. Message is meant for
// people, Kind and Code for code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, and by code when the target sets one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	if message == "" {
		message = defaultMessages[kind]
	}
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	if code == "" {
		code = CodeValidation
	}
	return New(KindValidation, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

// Envelope is the failure payload sent by the remote service.
type Envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"error_code"`
	Details string `json:"details,omitempty"`
}

// FromEnvelope maps a remote failure payload to its kind.
func FromEnvelope(env Envelope) *Error {
	code := strings.ToUpper(strings.TrimSpace(env.Code))
	kind, ok := codeKinds[code]
	if !ok {
		kind = KindServer
		if code == "" {
			code = CodeServer
		}
	}
	msg := strings.TrimSpace(env.Details)
	if msg == "" {
		msg = strings.TrimSpace(env.Error)
	}
	return New(kind, code, msg)
}

// FromStatus classifies a non-2xx response that carried no envelope.
func FromStatus(status int) *Error {
	switch {
	case status == http.StatusNotFound:
		return NotFound("HTTP_404", "")
	case status == http.StatusConflict:
		return Conflict("HTTP_409", "")
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return Validation(fmt.Sprintf("HTTP_%d", status), "")
	}
	return New(KindServer, fmt.Sprintf("HTTP_%d", status), "")
}

// Network wraps a failure where no response was received.
func Network(err error) *Error {
	e := New(KindNetwork, CodeNetwork, "")
	e.Err = err
	return e
}

// Classify turns any error into an *Error. Errors that already are one pass
// through unchanged; context and net errors become network errors; the rest
// are server errors.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return Network(err)
	}
	e := New(KindServer, CodeServer, "")
	e.Err = err
	return e
}

// KindOf reports the kind of err, or "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// MessageOf returns the human readable text for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	return Classify(err).Message
}
