package serviceerrors

import (
	"errors"
	"fmt"
)

// NetworkError is a transport or HTTP status failure of an outbound call.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func NewNetworkError(url string, statusCode int, err error) *NetworkError {
	return &NetworkError{URL: url, StatusCode: statusCode, Err: err}
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError is a response from a source that does not have the expected shape.
type ParseError struct {
	Source string
	Err    error
}

func NewParseError(source string, format string, args ...any) *ParseError {
	return &ParseError{Source: source, Err: fmt.Errorf(format, args...)}
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StoreError is any failure raised by the relational store.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %q failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// OutputConflictError is returned when an export destination already exists.
type OutputConflictError struct {
	Destination string
}

func NewOutputConflictError(destination string) *OutputConflictError {
	return &OutputConflictError{Destination: destination}
}

func (e *OutputConflictError) Error() string {
	return fmt.Sprintf("%s exists!", e.Destination)
}

func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

func IsStoreError(err error) bool {
	var target *StoreError
	return errors.As(err, &target)
}

func IsOutputConflictError(err error) bool {
	var target *OutputConflictError
	return errors.As(err, &target)
}

// ExitCode is the process status for a failed command. Every error kind is fatal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
