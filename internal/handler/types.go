package handler

import "quest-server/internal/quest"

type redeemRequest struct {
	Code string `json:"code"`
}

type puzzleRequest struct {
	PuzzleID string `json:"puzzleId"`
	Answer   string `json:"answer" binding:"required"`
}

type initialCodesRequest struct {
	Target int `json:"target"`
}

type viewResponse struct {
	Success bool       `json:"success"`
	View    quest.View `json:"view"`
}

type redeemResponse struct {
	Success         bool       `json:"success"`
	AlreadyVerified bool       `json:"alreadyVerified"`
	InviteCodes     []string   `json:"inviteCodes"`
	Message         string     `json:"message"`
	View            quest.View `json:"view"`
}

type choiceResponse struct {
	Success bool          `json:"success"`
	Outcome quest.Outcome `json:"outcome"`
	View    quest.View    `json:"view"`
}

type puzzleResponse struct {
	Success bool               `json:"success"`
	Result  quest.PuzzleResult `json:"result"`
}

type hintResponse struct {
	Success bool             `json:"success"`
	Hint    quest.HintResult `json:"hint"`
}

type balanceResponse struct {
	Success       bool  `json:"success"`
	Balance       int64 `json:"balance"`
	ShadowBalance int64 `json:"shadowBalance"`
}

type initialCodesResponse struct {
	Success bool     `json:"success"`
	Created []string `json:"created"`
}
