package types

import "github.com/golang-jwt/jwt/v5"

// Claims are issued by the auth provider; Subject holds the user's uuid.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

