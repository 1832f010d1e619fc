package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) (*gin.Engine, *TokenManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := NewTokenManager("secret", time.Hour)
	require.NoError(t, err)

	r := gin.New()
	mw := RequireWallet(tokens, zap.NewNop())
	handler := func(c *gin.Context) { c.String(http.StatusOK, WalletFromContext(c)) }
	r.GET("/me", mw, handler)
	r.GET("/wallet/:walletAddress", mw, handler)
	return r, tokens
}

func TestRequireWallet(t *testing.T) {
	r, tokens := newRouter(t)
	token, err := tokens.GenerateToken(wallet)
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"bad scheme", "/me", "Basic " + token, http.StatusUnauthorized},
		{"bad token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"ok", "/me", "Bearer " + token, http.StatusOK},
		{"query token", "/me?token=" + token, "", http.StatusOK},
		{"path matches", "/wallet/" + wallet, "Bearer " + token, http.StatusOK},
		{"path mismatch", "/wallet/0x0000000000000000000000000000000000000000", "Bearer " + token, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, wallet, w.Body.String())
			}
		})
	}
}
