package models

import "github.com/golang-jwt/jwt/v5"

// SystemActor is recorded when no operator identity accompanies a request,
// e.g. scanner or kiosk terminals using machine credentials.
const SystemActor = "system"

// ActorClaims carries the operator identity extracted from a bearer token.
// Token issuance and session management live outside this service.
type ActorClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns the identity recorded on attendance and absentee rows.
func (c *ActorClaims) Actor() string {
	if c == nil {
		return SystemActor
	}
	if c.Name != "" {
		return c.Name
	}
	if c.Subject != "" {
		return c.Subject
	}
	return SystemActor
}
