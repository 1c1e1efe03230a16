package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens issued by the identity provider.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Caller is the already-authenticated actor passed explicitly into every workflow operation.
type Caller struct {
	ID   string
	Role UserRole
}

// CallerFromClaims resolves the caller once at the request boundary.
func CallerFromClaims(claims *JWTClaims) Caller {
	if claims == nil {
		return Caller{}
	}
	return Caller{ID: claims.UserID, Role: claims.Role}
}

// HasRole reports whether the caller holds one of roles.
func (c Caller) HasRole(roles ...UserRole) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}
