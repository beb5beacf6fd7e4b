package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

const AudienceSession = "proofwatch:session"

// Session tokens ride alongside the bridge's own bounds; a short lifetime
// keeps replayed pushes from resurrecting stale sessions.
const tokenTTL = 2 * time.Minute

// JWTTokenizer signs and verifies session payloads as ES256 JWTs.
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
}

// NewJWTTokenizer creates a tokenizer around the given signing key.
func NewJWTTokenizer(signKey *ecdsa.PrivateKey) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey}
}

// SessionToToken converts a Session to its signed wire form.
func (j *JWTTokenizer) SessionToToken(session *core.Session) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Account.Address,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			Audience:  jwt.ClaimStrings{AudienceSession},
		},
		Connected: session.Connected,
		Network:   session.Account.Network,
		UpdatedAt: session.UpdatedAt,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signedToken, nil
}

// TokenToSession verifies a session token and returns the carried session.
func (j *JWTTokenizer) TokenToSession(tokenStr string) (*core.Session, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, jwt.WithAudience(AudienceSession))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, core.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok {
		return nil, core.ErrInvalidToken
	}

	session := &core.Session{
		Connected: claims.Connected,
		Account: core.Account{
			Address: claims.Subject,
			Network: claims.Network,
		},
		UpdatedAt: claims.UpdatedAt,
	}

	if err := session.Validate(); err != nil {
		return nil, err
	}

	return session, nil
}
