package auth

import "errors"

// ErrInvalidCredentials covers every authentication failure: wrong password,
// wrong code, unknown or already-existing account, locked account, missing
// or expired pending record, held attempt lock, frozen login. Callers must
// present all of these identically so none of them becomes an oracle.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ValidationError reports malformed input (bad email shape, empty or
// oversized password). Unlike authentication failures its message may be
// shown to the caller; it leaks nothing an attacker could not see anyway.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}
