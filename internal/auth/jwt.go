package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser  = "user"
	RoleOwner = "owner"
)

var ErrInvalidClaims = errors.New("token is missing required claims")

// Claims is what the API needs to know about a caller.
type Claims struct {
	Subject  string
	Role     string
	Username string
}

func (c Claims) IsOwner() bool {
	return c.Role == RoleOwner
}

type Authenticator interface {
	GenerateToken(c Claims, ttl time.Duration) (string, error)
	ValidateToken(token string) (Claims, error)
}

type JWTAuthenticator struct {
	secret string
	aud    string
	iss    string
}

func NewJWTAuthenticator(secret, aud, iss string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret, aud: aud, iss: iss}
}

// GenerateToken signs an HS256 access token. The API itself never issues
// tokens; this serves the delegated auth service and tooling.
func (a *JWTAuthenticator) GenerateToken(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  c.Subject,
		"role": c.Role,
		"name": c.Username,
		"exp":  now.Add(ttl).Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"iss":  a.iss,
		"aud":  a.aud,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.secret))
	if err != nil {
		return "", err
	}
	return signed, nil
}

// ValidateToken checks signature, expiry, issuer and audience and returns
// the caller's claims.
func (a *JWTAuthenticator) ValidateToken(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(a.iss),
		jwt.WithAudience(a.aud),
	)
	if err != nil {
		return Claims{}, err
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidClaims
	}
	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidClaims
	}
	role, _ := mc["role"].(string)
	name, _ := mc["name"].(string)
	if role == "" {
		role = RoleUser
	}
	return Claims{Subject: sub, Role: role, Username: name}, nil
}
