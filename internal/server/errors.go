package server

import (
	"errors"
	"net/http"
)

// Numeric error codes, banded by category. These are part of the API
// contract: clients dispatch on them.
const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidQuery    = 1003
	ErrCodeInvalidTicket   = 1004
	ErrCodeMissingRequired = 1005
	ErrCodeInvalidRange    = 1006

	// Domain state (2xxx)
	ErrCodeRecordNotFound     = 2001
	ErrCodeContentNotFound    = 2002
	ErrCodeRangeUnsatisfiable = 2003

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3001

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeIngestFailed = 4002
	ErrCodeStoreFailure = 4003
)

type apiError struct {
	status  int
	code    string
	errCode int
	err     error
}

func (e apiError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e apiError) Unwrap() error {
	return e.err
}

func makeAPIError(status int, code string, errCode int, err error) error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}

	var existing apiError
	if errors.As(err, &existing) {
		if existing.status != 0 {
			return existing
		}
	}

	return apiError{status: status, code: code, errCode: errCode, err: err}
}

func badRequest(err error) error {
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func badRequestCode(err error, code int) error {
	return makeAPIError(http.StatusBadRequest, "invalid_argument", code, err)
}

func invalidTicket(err error) error {
	return makeAPIError(http.StatusBadRequest, "invalid_ticket", ErrCodeInvalidTicket, err)
}

func notFoundCode(err error, code int) error {
	return makeAPIError(http.StatusNotFound, "not_found", code, err)
}

func rangeUnsatisfiable(err error) error {
	return makeAPIError(http.StatusRequestedRangeNotSatisfiable, "range_unsatisfiable", ErrCodeRangeUnsatisfiable, err)
}

func internalError(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeInternal, err)
}

func ingestFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "ingest_failed", ErrCodeIngestFailed, err)
}

func storeFailure(err error) error {
	return makeAPIError(http.StatusInternalServerError, "internal", ErrCodeStoreFailure, err)
}

func httpStatusFromError(err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr.status
	}
	return http.StatusInternalServerError
}

func errorCode(status int, err error) string {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.code != "" {
		return apiErr.code
	}
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestedRangeNotSatisfiable:
		return "range_unsatisfiable"
	case http.StatusTooManyRequests:
		return "resource_exhausted"
	default:
		return "internal"
	}
}

func errorNumericCode(status int, err error) int {
	var apiErr apiError
	if errors.As(err, &apiErr) && apiErr.errCode != 0 {
		return apiErr.errCode
	}
	switch status {
	case http.StatusBadRequest:
		return ErrCodeInvalidArgument
	case http.StatusNotFound:
		return ErrCodeRecordNotFound
	case http.StatusRequestedRangeNotSatisfiable:
		return ErrCodeRangeUnsatisfiable
	case http.StatusTooManyRequests:
		return ErrCodeResourceExhausted
	default:
		return ErrCodeInternal
	}
}
