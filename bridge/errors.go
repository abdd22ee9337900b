package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrMissingPrerequisite   = errors.New("missing prerequisite")
	ErrMissingCredentials    = errors.New("please provide all required CiviCRM credentials")
	ErrAPINotAvailable       = errors.New("CiviCRM API v4 is not available")
	ErrTransport             = errors.New("could not reach CiviCRM")
	ErrMalformedResponse     = errors.New("invalid response from CiviCRM API")
	ErrAPI                   = errors.New("CiviCRM API error")
	ErrMissingRequiredFields = errors.New("required fields are missing")
	ErrNoSubmissionData      = errors.New("could not get form submission data")
	ErrCreateFailed          = errors.New("failed to create CiviCRM contact")
	ErrInvalidAction         = errors.New("invalid CiviCRM action")
	ErrInvalidFormID         = errors.New("invalid form id")
	ErrInvalidSettings       = errors.New("invalid settings")
	ErrNotFound              = errors.New("not found")
)

// APIError is an error reported by the remote API itself.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

func (e *APIError) Is(target error) bool { return target == ErrAPI }
