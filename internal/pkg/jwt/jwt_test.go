package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("secret", time.Hour)

	token, err := svc.GenerateToken(42, "owner")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "owner", claims.Role)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := New("secret", time.Hour)

	expired, err := New("secret", -time.Minute).GenerateToken(1, "renter")
	require.NoError(t, err)
	otherKey, err := New("other", time.Hour).GenerateToken(1, "renter")
	require.NoError(t, err)
	noneAlg, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, Claims{UserID: 1}).
		SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":   expired,
		"other key": otherKey,
		"none alg":  noneAlg,
		"garbage":   "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
