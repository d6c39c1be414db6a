package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Roles carried by access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID  string
	BrandID string
	Role    string
	JTI     string
}

// AccessTokenClaims represents the typed JWT presented by clients. BrandID is the
// storefront the buyer is shopping on.
type AccessTokenClaims struct {
	UserID  string `json:"user_id"`
	BrandID string `json:"brand_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token may call operator endpoints.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}
