package domain

import (
	"strings"
	"time"
)

// ============================================================
// Auth: data model for the client portal auth flow
// ============================================================

// UserType discriminates which portal an account belongs to.
// The backend is authoritative; this portal only accepts "cliente".
type UserType string

const (
	UserTypeCliente UserType = "cliente"
	UserTypeStaff   UserType = "staff"
	UserTypeAdmin   UserType = "admin"
)

// Gender is the optional self-reported gender on registration.
// The zero value means the user did not pick one.
type Gender string

const (
	GenderUnset     Gender = ""
	GenderMasculino Gender = "masculino"
	GenderFemenino  Gender = "femenino"
	GenderOtro      Gender = "otro"
	GenderNoDecir   Gender = "prefiero-no-decir"
)

// Credentials are the transient login inputs. Never persisted.
type Credentials struct {
	Email    string
	Password string
}

// RegisterForm holds the transient registration inputs.
// Password must equal ConfirmPassword before submission is attempted.
type RegisterForm struct {
	Name            string
	Surname         string
	Email           string
	Password        string
	ConfirmPassword string
	Phone           string
	Gender          Gender
}

// FullName assembles the wire-level name field from name + surname.
func (f *RegisterForm) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(f.Name) + " " + strings.TrimSpace(f.Surname))
}

// AuthUser is the user record returned by the gateway on a successful login.
type AuthUser struct {
	ID         int64    `json:"user_id"`
	Email      string   `json:"email"`
	Name       string   `json:"name,omitempty"`
	UserType   UserType `json:"user_type"`
	IsVerified bool     `json:"is_verified"`
}

// AuthResult is the gateway's successful login payload: bearer token + user.
type AuthResult struct {
	Token string   `json:"token"`
	User  AuthUser `json:"user"`
}

// RegistrationReceipt is the gateway's successful register payload.
// Registration alone never yields a token.
type RegistrationReceipt struct {
	UserID               int64  `json:"user_id"`
	Email                string `json:"email"`
	Name                 string `json:"name"`
	IsVerified           bool   `json:"is_verified"`
	RequiresVerification bool   `json:"requires_verification"`
}

// SessionUser is the profile half of a persisted session.
type SessionUser struct {
	ID         int64    `json:"id"`
	Email      string   `json:"email"`
	Name       string   `json:"name"`
	Role       string   `json:"role"`
	UserType   UserType `json:"user_type"`
	IsVerified bool     `json:"is_verified"`
}

// Session is the durable, locally persisted proof of authentication.
// Token and user are written together; absence of either means no session.
type Session struct {
	Token   string      `json:"token"`
	User    SessionUser `json:"user"`
	SavedAt time.Time   `json:"saved_at"`
}

// RoleCliente is the fixed role recorded for sessions on this portal.
const RoleCliente = "cliente"

// DisplayNameFor returns the backend-provided name, falling back to the
// email local-part when the backend sent none.
func DisplayNameFor(name, email string) string {
	if name != "" {
		return name
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
