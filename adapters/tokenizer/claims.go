package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims carry a session payload across untrusted transports.
type SessionClaims struct {
	jwt.RegisteredClaims
	Connected bool   `json:"connected"`
	Network   string `json:"network,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}
