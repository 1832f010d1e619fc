package auth

import (
	"testing"
	"time"

	"quest-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wallet = "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd"

func TestTokenManager_RoundTrip(t *testing.T) {
	m, err := NewTokenManager("secret", time.Hour)
	require.NoError(t, err)

	token, err := m.GenerateToken(wallet)
	require.NoError(t, err)

	got, err := m.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, wallet, got)
}

func TestTokenManager_Expired(t *testing.T) {
	m, err := NewTokenManager("secret", time.Minute)
	require.NoError(t, err)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.GenerateToken(wallet)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestTokenManager_Rejects(t *testing.T) {
	m, _ := NewTokenManager("secret", time.Hour)
	other, _ := NewTokenManager("other-secret", time.Hour)

	token, err := other.GenerateToken(wallet)
	require.NoError(t, err)
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, models.ErrTokenInvalid, "wrong secret")

	_, err = m.ParseToken("not-a-token")
	assert.ErrorIs(t, err, models.ErrTokenInvalid, "garbage")

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		WalletAddress: "0x0000000000000000000000000000000000000000",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = m.ParseToken(signed)
	assert.ErrorIs(t, err, models.ErrTokenInvalid, "subject and claim differ")
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", time.Hour)
	assert.Error(t, err)
}
