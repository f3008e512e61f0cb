package mpesa

import "fmt"

// AuthError means the token endpoint was unreachable, returned a non-2xx
// status, or sent back a body without an access token. Status and Body hold
// the gateway's raw reply verbatim for the audit trail.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mpesa auth: %v", e.Err)
	}
	return fmt.Sprintf("mpesa auth: status %d body %s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RejectedError means the gateway was reachable but declined the push.
type RejectedError struct {
	Code        string
	Description string
	Message     string // gateway errorMessage, when present
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mpesa push rejected: code %q description %q message %q", e.Code, e.Description, e.Message)
}

// TransportError wraps a network or decode failure during submission. Its
// detail goes to the audit trail only; callers show a generic message.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("mpesa transport: %v", e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }
