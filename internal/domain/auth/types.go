// Package auth contains domain-level types shared by the auth API client,
// the session service and the local auth stub. It is free of transport concerns.
package auth

import (
	"time"

	"github.com/target/tokenlab/internal/domain/token"
)

// Role is the authorization role carried in the token's role claim.
// The string form matches what the auth service issues.
type Role string

const (
	RoleAdmin Role = token.RoleAdmin
	RoleUser  Role = token.RoleUser
)

// Valid reports whether r is one of the roles the service accepts at registration.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleUser }

// Credentials are the login form inputs.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the register form inputs.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Response is a parsed auth service reply. Body holds the JSON fields when the
// reply was a JSON object; Raw holds the text otherwise.
type Response struct {
	Status int
	Body   map[string]any
	Raw    string
}

// Token returns the token field of a login/register reply, if any.
func (r Response) Token() string {
	v, _ := r.Body["token"].(string)
	return v
}

// Message returns the message field of the reply, if any.
func (r Response) Message() string {
	v, _ := r.Body["message"].(string)
	return v
}

// User is an account record held by the local auth stub.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
