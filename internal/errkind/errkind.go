// SPDX-License-Identifier: Apache-2.0

// Package errkind classifies gateway errors into the closed set of kinds
// the Execution Pipeline and ErrorResponse encoder need, and maps each
// kind to a PostgreSQL SQLSTATE code.
package errkind

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
)

// Kind is one of the nine error classifications the core distinguishes.
type Kind int

const (
	Protocol Kind = iota
	Parse
	Storage
	TypeConversion
	NotSupported
	AuthFailure
	InvalidParameter
	Io
	Validation
)

func (k Kind) String() string {
	switch k {
	case Protocol:
		return "protocol"
	case Parse:
		return "parse"
	case Storage:
		return "storage"
	case TypeConversion:
		return "type_conversion"
	case NotSupported:
		return "not_supported"
	case AuthFailure:
		return "auth_failure"
	case InvalidParameter:
		return "invalid_parameter"
	case Io:
		return "io"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// SQLSTATE returns the default SQLSTATE code for the kind, per spec §6.
// Some kinds (Storage, Validation) can be refined to a more specific code
// by the caller; this is only the fallback.
func (k Kind) SQLSTATE() string {
	switch k {
	case Protocol:
		return pgerrcode.ProtocolViolation
	case Parse:
		return pgerrcode.SyntaxError
	case Storage:
		return pgerrcode.SystemError // 58000; callers refine to 23505/23503 via WithCode
	case TypeConversion:
		return pgerrcode.InvalidTextRepresentation
	case NotSupported:
		return pgerrcode.FeatureNotSupported
	case AuthFailure:
		return pgerrcode.InvalidAuthorizationSpecification
	case InvalidParameter:
		return pgerrcode.InvalidParameterValue
	case Io:
		return "58030"
	case Validation:
		return pgerrcode.InvalidParameterValue
	default:
		return pgerrcode.InternalError
	}
}

// Error is a gateway error carrying its classification and an explicit
// SQLSTATE override (used when a single kind maps to several codes, e.g.
// Storage -> unique_violation vs foreign_key_violation).
type Error struct {
	Kind     Kind
	SQLSTATE string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the kind's default SQLSTATE.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, SQLSTATE: kind.SQLSTATE(), Message: message}
}

// Wrap builds an Error from an underlying error, with the kind's default
// SQLSTATE.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, SQLSTATE: kind.SQLSTATE(), Message: message, Err: err}
}

// WithCode overrides the SQLSTATE on an otherwise-classified error, for the
// cases in spec §6 where a kind has more than one possible code
// (UniqueViolation/ForeignKeyViolation both surface as Storage errors).
func WithCode(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, SQLSTATE: code, Message: message, Err: err}
}

// Code-specific constructors for the Storage sub-cases spec §6 enumerates.
func UniqueViolation(message string, err error) *Error {
	return WithCode(Storage, pgerrcode.UniqueViolation, message, err)
}

func ForeignKeyViolation(message string, err error) *Error {
	return WithCode(Storage, pgerrcode.ForeignKeyViolation, message, err)
}

func NumericOutOfRange(message string, err error) *Error {
	return WithCode(TypeConversion, pgerrcode.NumericValueOutOfRange, message, err)
}

func StringRightTruncation(message string, err error) *Error {
	return WithCode(TypeConversion, pgerrcode.StringDataRightTruncation, message, err)
}

// RateLimitExceeded is the SE rejection error, SQLSTATE 57P03 per spec §6.
func RateLimitExceeded(message string) *Error {
	return &Error{Kind: Protocol, SQLSTATE: "57P03", Message: message}
}

// As is a convenience wrapper over errors.As for extracting a classified
// Error from an arbitrary error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Classify returns the Error wrapped in err, or a generic Storage Error if
// err is not already classified. Used at the Execution Pipeline boundary
// (spec §4.9 step 7) where errors from the SQLite engine arrive unclassified.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Wrap(Storage, "storage operation failed", err)
}
