package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the authenticated actor performing a request. Every
// mutating operation records the actor in audit fields; none is anonymous.
type JWTClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	FullName string `json:"full_name"`
	jwt.RegisteredClaims
}
