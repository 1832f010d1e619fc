package referral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quest-server/internal/models"

	"go.uber.org/zap"
)

// HTTPClient обращается к реферальному бэкенду по HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient создает клиент для baseURL (например http://localhost:3000).
func NewHTTPClient(baseURL string, client *http.Client, logger *zap.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger.Named("ReferralHTTPClient"),
	}
}

func (c *HTTPClient) Status(ctx context.Context, wallet string) (bool, error) {
	var resp models.ReferralStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/referral/status/"+url.PathEscape(wallet), nil, &resp); err != nil {
		return false, err
	}
	if !resp.Success {
		return false, fmt.Errorf("referral status request was not successful")
	}
	return resp.HasUsedInviteCode, nil
}

func (c *HTTPClient) Verify(ctx context.Context, wallet, code string) ([]string, error) {
	body := models.ReferralVerifyRequest{Code: code, WalletAddress: wallet}
	var resp models.ReferralVerifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/referral/verify", body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = models.ErrInvalidInviteCode.Error()
		}
		return nil, &Rejection{Reason: reason, AlreadyRedeemed: resp.AlreadyRedeemed}
	}
	return resp.InviteCodes, nil
}

func (c *HTTPClient) Codes(ctx context.Context, wallet string) ([]string, error) {
	var resp models.ReferralCodesResponse
	if err := c.do(ctx, http.MethodGet, "/api/referral/codes/"+url.PathEscape(wallet), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("referral codes request was not successful")
	}
	return resp.Codes, nil
}

// do выполняет запрос; тело ответа декодируется и при 4xx, так как бэкенд кладет туда причину отказа.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode referral request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build referral request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("Referral backend request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("referral request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("referral backend returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode referral response: %w", err)
	}
	return nil
}
