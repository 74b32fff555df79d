package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	a := NewJWTAuthenticator("secret", "outsy", "outsy")

	token, err := a.GenerateToken(Claims{Subject: "owner-1", Role: RoleOwner, Username: "ana"}, time.Hour)
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, Claims{Subject: "owner-1", Role: RoleOwner, Username: "ana"}, claims)
	assert.True(t, claims.IsOwner())
}

func TestValidateDefaultsRole(t *testing.T) {
	a := NewJWTAuthenticator("secret", "outsy", "outsy")
	token, err := a.GenerateToken(Claims{Subject: "u1"}, time.Hour)
	require.NoError(t, err)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, claims.Role)
	assert.False(t, claims.IsOwner())
}

func TestValidateRejects(t *testing.T) {
	a := NewJWTAuthenticator("secret", "outsy", "outsy")

	expired, err := a.GenerateToken(Claims{Subject: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = a.ValidateToken(expired)
	assert.Error(t, err)

	other, err := NewJWTAuthenticator("other", "outsy", "outsy").GenerateToken(Claims{Subject: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(other)
	assert.Error(t, err)

	wrongIss, err := NewJWTAuthenticator("secret", "outsy", "someone-else").GenerateToken(Claims{Subject: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(wrongIss)
	assert.Error(t, err)

	noSub, err := a.GenerateToken(Claims{}, time.Hour)
	require.NoError(t, err)
	_, err = a.ValidateToken(noSub)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = a.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestValidateRejectsNoneAlg(t *testing.T) {
	a := NewJWTAuthenticator("secret", "outsy", "outsy")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iss": "outsy",
		"aud": "outsy",
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = a.ValidateToken(signed)
	assert.Error(t, err)
}
