package auth

import (
	"errors"
	"fmt"
)

// ErrCredentialRejected marks a malformed, unknown or expired credential.
// The identity resolver turns it into an anonymous principal.
var ErrCredentialRejected = errors.New("credential rejected")

// ConfigError reports a required configuration value that is missing or invalid
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s not set", e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

// ExternalServiceError is a failure talking to the identity provider: a
// network error, an unexpected status, or a response that could not be decoded.
type ExternalServiceError struct {
	Step       string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	msg := fmt.Sprintf("identity provider %s failed", e.Step)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s with status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// OrgMembershipDeniedError means the provider answered definitively that the
// user is not a member of the configured organization.
type OrgMembershipDeniedError struct {
	Org      string
	Username string
}

func (e *OrgMembershipDeniedError) Error() string {
	return fmt.Sprintf("user is not a member of the %s organization", e.Org)
}

// AuthorizationError is returned by a failing Guard. Its message is safe to
// show to callers.
type AuthorizationError struct {
	Guard         Guard
	Authenticated bool
}

func (e *AuthorizationError) Error() string {
	return e.Guard.denialMessage()
}

// IsAuthorizationError reports whether err is a guard rejection
func IsAuthorizationError(err error) bool {
	var authzErr *AuthorizationError
	return errors.As(err, &authzErr)
}

// IsOrgMembershipDenied reports whether err is a definitive "not a member" answer
func IsOrgMembershipDenied(err error) bool {
	var denied *OrgMembershipDeniedError
	return errors.As(err, &denied)
}

// IsExternalServiceError reports whether err came from talking to the provider
func IsExternalServiceError(err error) bool {
	var extErr *ExternalServiceError
	return errors.As(err, &extErr)
}
