// Package auth verifies the bearer tokens issued by the identity service. The
// engine only needs the opaque user id and the coarse role.
package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/commerce-engine/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by clients.
type AccessTokenClaims struct {
	UserID string         `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
