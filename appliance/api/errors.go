package api

import (
	"errors"
	"fmt"
)

// Error kinds the appliance tags application errors with.
const (
	ErrorKindExpiredKey = "expired_key"
	ErrorKindMissingKey = "missing_key"
)

const (
	TailscaleKeysURL = "https://login.tailscale.com/admin/settings/keys"
)

// TransportError is a network failure or a non-2xx HTTP response.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("request to %s failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ApplicationError is a response with success=false.
type ApplicationError struct {
	Endpoint string
	Message  string
	Kind     string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed", e.Endpoint)
	}
	return e.Message
}

// RemediableConfigError is an ApplicationError the user can fix by following a help
// link, such as an expired API key.
type RemediableConfigError struct {
	*ApplicationError
	HelpURL  string
	HelpText string
}

func (e *RemediableConfigError) Unwrap() error {
	return e.ApplicationError
}

// ValidationError is a client-side precondition failure. It is raised before any
// request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newApplicationError(endpoint, message, kind string) error {
	appErr := &ApplicationError{Endpoint: endpoint, Message: message, Kind: kind}

	switch kind {
	case ErrorKindExpiredKey:
		return &RemediableConfigError{
			ApplicationError: appErr,
			HelpURL:          TailscaleKeysURL,
			HelpText:         "The Tailscale API key has expired. Generate a new key and save it in the VPN settings.",
		}
	case ErrorKindMissingKey:
		return &RemediableConfigError{
			ApplicationError: appErr,
			HelpURL:          TailscaleKeysURL,
			HelpText:         "No Tailscale API key is configured. Generate a key and save it in the VPN settings.",
		}
	}

	return appErr
}

// UserMessage returns the text shown to the user for err. Application messages are
// surfaced verbatim.
func UserMessage(err error) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
