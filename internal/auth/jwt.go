package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the access token payload issued by the chat server.
type Claims struct {
	UserID int64 `json:"user_id,string"`
	jwt.RegisteredClaims
}

// TokenReader extracts the session user from an access token. With a secret
// it verifies the HMAC signature; without one it only decodes the claims
// and checks expiry, leaving signature checks to the issuing server.
type TokenReader struct {
	secret []byte
	now    func() time.Time
}

// NewTokenReader creates a TokenReader. An empty secret disables signature
// verification.
func NewTokenReader(secret string) *TokenReader {
	tr := &TokenReader{now: time.Now}
	if secret != "" {
		tr.secret = []byte(secret)
	}
	return tr
}

// Verifies reports whether signatures are checked.
func (tr *TokenReader) Verifies() bool {
	return tr.secret != nil
}

// SessionUserID returns the user id carried by tokenString.
func (tr *TokenReader) SessionUserID(tokenString string) (int64, error) {
	claims, err := tr.parse(tokenString)
	if err != nil {
		return 0, err
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	return claims.UserID, nil
}

func (tr *TokenReader) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if tr.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && !tr.now().Before(claims.ExpiresAt.Time) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return claims, nil
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tr.secret, nil
	}, jwt.WithTimeFunc(tr.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueToken signs an HS256 session token for userID, valid for ttl. It is
// meant for local development against a server sharing the secret.
func IssueToken(secret string, userID int64, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("issuing token: empty secret")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return signed, nil
}
