package service

import (
	"errors"

	"github.com/mfittko/gitdrop/internal/fetch"
	"github.com/mfittko/gitdrop/internal/source"
	"github.com/mfittko/gitdrop/internal/validation"
)

// Error is a request failure with a message fit for the caller.
type Error struct {
	// Invalid marks a problem with the request itself rather than with
	// fetching or delivering.
	Invalid bool

	Message  string
	Example  string
	Provided string
	Details  string

	Err error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(message, example, provided string, err error) *Error {
	return &Error{Invalid: true, Message: message, Example: example, Provided: provided, Err: err}
}

func fromValidation(err error, provided string) *Error {
	var valErr *validation.Error
	if errors.As(err, &valErr) {
		return invalid(valErr.Message, valErr.Example, provided, err)
	}
	return invalid(err.Error(), "", provided, err)
}

func fromResolution(err error, provided string) *Error {
	var resErr *source.ResolutionError
	if !errors.As(err, &resErr) {
		return invalid(err.Error(), "", provided, err)
	}
	msg := resErr.Error()
	switch resErr.Kind {
	case source.UnsupportedURL:
		msg = "Invalid GitHub URL format. Please provide a direct link to a file."
	case source.InvalidRepositoryURL:
		msg = "Invalid GitHub repository URL format"
	}
	return invalid(msg, resErr.Example(), provided, err)
}

func fromFetch(err error) *Error {
	if errors.Is(err, fetch.ErrUnexpectedHTMLContent) {
		return invalid("Received HTML instead of file content. Please use a direct link to a raw file.", source.ContentExample, "", err)
	}
	return &Error{Message: "Failed to fetch GitHub content", Details: err.Error(), Err: err}
}
