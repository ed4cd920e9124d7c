package oauth2client

import "fmt"

// ConfigurationError reports missing or invalid inputs. It is raised before any
// network call and is never worth retrying.
type ConfigurationError struct {
	// Field names the offending input (e.g. "client_id"), if any.
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// AuthenticationError reports a failed endpoint discovery or token exchange.
// The caller decides whether to retry the whole connection attempt.
type AuthenticationError struct {
	Msg string
	Err error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}
