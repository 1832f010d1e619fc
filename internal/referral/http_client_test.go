package referral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quest-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const httpWallet = "0x2222222222222222222222222222222222222222"

func newBackend(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/referral/status/"+httpWallet, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ReferralStatusResponse{Success: true, HasUsedInviteCode: true})
	})
	mux.HandleFunc("/api/referral/verify", func(w http.ResponseWriter, r *http.Request) {
		var req models.ReferralVerifyRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, httpWallet, req.WalletAddress)
		if req.Code != "PEAR-GOOD" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(models.ReferralVerifyResponse{Error: "Invalid or already used invite code"})
			return
		}
		_ = json.NewEncoder(w).Encode(models.ReferralVerifyResponse{
			Success:     true,
			InviteCodes: []string{"PEAR-1", "PEAR-2", "PEAR-3"},
		})
	})
	mux.HandleFunc("/api/referral/codes/"+httpWallet, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.ReferralCodesResponse{Success: true, Codes: []string{"PEAR-1"}})
	})
	mux.HandleFunc("/api/referral/status/0xdead", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_RoundTrip(t *testing.T) {
	srv := newBackend(t)
	c := NewHTTPClient(srv.URL+"/", nil, zap.NewNop())
	ctx := context.Background()

	used, err := c.Status(ctx, httpWallet)
	require.NoError(t, err)
	assert.True(t, used)

	codes, err := c.Verify(ctx, httpWallet, "PEAR-GOOD")
	require.NoError(t, err)
	assert.Equal(t, []string{"PEAR-1", "PEAR-2", "PEAR-3"}, codes)

	codes, err = c.Codes(ctx, httpWallet)
	require.NoError(t, err)
	assert.Equal(t, []string{"PEAR-1"}, codes)
}

func TestHTTPClient_RejectionCarriesReason(t *testing.T) {
	srv := newBackend(t)
	c := NewHTTPClient(srv.URL, nil, zap.NewNop())

	_, err := c.Verify(context.Background(), httpWallet, "PEAR-BAD")
	rej, ok := IsRejection(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid or already used invite code", rej.Reason)
}

func TestHTTPClient_ServerError(t *testing.T) {
	srv := newBackend(t)
	c := NewHTTPClient(srv.URL, nil, zap.NewNop())

	_, err := c.Status(context.Background(), "0xdead")
	require.Error(t, err)
	_, isRej := IsRejection(err)
	assert.False(t, isRej)
}
