package models

import "errors"

// Application-wide standard errors
var (
	ErrNotFound       = errors.New("resource not found")
	ErrCorruptRecord  = errors.New("stored record is corrupt")
	ErrInvalidWallet  = errors.New("invalid wallet address")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenExpired   = errors.New("token has expired")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Invite codes
	ErrInvalidInviteCode = errors.New("Invalid or already used invite code")
	ErrAlreadyRedeemed   = errors.New("wallet has already used an invite code")
	ErrEmptyInviteCode   = errors.New("Please enter a valid invite code")
)
