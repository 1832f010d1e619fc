package models

// ErrorResponse стандартный ответ об ошибке API.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// LoginRequest тело запроса /api/users/login.
type LoginRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

// LoginResponse ответ /api/users/login.
type LoginResponse struct {
	Success       bool   `json:"success"`
	AuthToken     string `json:"auth_token"`
	WalletAddress string `json:"wallet_address"`
}

// ReferralStatusResponse ответ /api/referral/status/:walletAddress.
type ReferralStatusResponse struct {
	Success           bool `json:"success"`
	HasUsedInviteCode bool `json:"hasUsedInviteCode"`
}

// ReferralVerifyRequest тело запроса /api/referral/verify.
type ReferralVerifyRequest struct {
	Code          string `json:"code"`
	WalletAddress string `json:"walletAddress"`
}

// ReferralVerifyResponse ответ /api/referral/verify.
type ReferralVerifyResponse struct {
	Success         bool     `json:"success"`
	InviteCodes     []string `json:"inviteCodes,omitempty"`
	Error           string   `json:"error,omitempty"`
	AlreadyRedeemed bool     `json:"alreadyRedeemed,omitempty"`
}

// ReferralCodesResponse ответ /api/referral/codes/:walletAddress.
type ReferralCodesResponse struct {
	Success bool     `json:"success"`
	Codes   []string `json:"codes"`
}
