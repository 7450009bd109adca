package domain

import "fmt"

// Error types for consistent error handling across the auth client.
// Flow controllers classify with errors.As and map every one of these to a
// user-facing message; nothing propagates unhandled to the caller.

// ErrValidation indicates a local pre-network validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrPasswordMismatch indicates password and confirmation differ.
type ErrPasswordMismatch struct{}

func (e *ErrPasswordMismatch) Error() string {
	return "Las contraseñas no coinciden"
}

// ErrInvalidCredentials indicates the backend rejected the email/password pair.
type ErrInvalidCredentials struct {
	Message string
}

func (e *ErrInvalidCredentials) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Credenciales inválidas"
}

// ErrAccessDenied indicates the account authenticated but may not use this
// portal (wrong user type, or the backend applied a portal rule).
type ErrAccessDenied struct {
	UserType UserType
	Message  string
}

func (e *ErrAccessDenied) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("acceso denegado para user_type %q", string(e.UserType))
}

// ErrAccountDisabled indicates a deactivated account.
type ErrAccountDisabled struct {
	Message string
}

func (e *ErrAccountDisabled) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Cuenta desactivada"
}

// ErrDuplicateEmail indicates the email is already registered.
type ErrDuplicateEmail struct {
	Email string
}

func (e *ErrDuplicateEmail) Error() string {
	return fmt.Sprintf("email ya registrado: %s", e.Email)
}

// ErrMissingFields indicates the backend reported an incomplete payload.
type ErrMissingFields struct {
	Message string
}

func (e *ErrMissingFields) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Campos obligatorios incompletos"
}

// ErrNetwork indicates a transport failure: the request never produced an
// HTTP response (connection refused, DNS, timeout, circuit open).
type ErrNetwork struct {
	Op  string
	Err error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *ErrNetwork) Unwrap() error {
	return e.Err
}

// ErrGateway is the unclassified remainder: the backend answered with an
// error the client does not recognize. Message is surfaced as-is.
type ErrGateway struct {
	Status  int
	Code    string
	Message string
}

func (e *ErrGateway) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("gateway returned status %d", e.Status)
}

// ErrSubmissionInFlight indicates a submit was rejected because the
// controller already has one in flight.
type ErrSubmissionInFlight struct {
	Flow string
}

func (e *ErrSubmissionInFlight) Error() string {
	return fmt.Sprintf("%s: submission already in flight", e.Flow)
}

// ErrFlowClosed indicates the controller was torn down; the in-flight
// result was discarded.
type ErrFlowClosed struct {
	Flow string
}

func (e *ErrFlowClosed) Error() string {
	return fmt.Sprintf("%s: controller closed, result discarded", e.Flow)
}
