package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"messagely/internal/domain"
)

// Claims is the JWT payload. Username mirrors the subject for older clients.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenService wraps JWT creation and validation.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	now       func() time.Time
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
		now:       time.Now,
	}
}

// Issue signs a token for the given identity using the default TTL.
func (t *TokenService) Issue(id domain.Identity) (string, error) {
	if id.Username == "" {
		return "", fmt.Errorf("issue token: empty username")
	}
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
		Username: id.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a token and returns the identity it asserts. Every failure
// is reported as domain.ErrInvalidToken.
func (t *TokenService) Verify(tokenStr string) (domain.Identity, error) {
	if tokenStr == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !token.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	username := claims.Subject
	if username == "" {
		username = claims.Username
	}
	if username == "" || (claims.Username != "" && claims.Username != username) {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	return domain.Identity{Username: username}, nil
}
