package narration

import (
	"context"
	"strings"
)

// Канонические ответы офлайн-режима.
const (
	OfflineOpening = "The Green Mist swirls through the digital garden, obscuring pathways and hiding secrets. " +
		"Welcome to the mysterious realm of L3M0N, where blockchain and nature intertwine. What path will you choose, explorer?"
	OfflineChoices = "Investigate the strange glowing rune near the fountain.\n" +
		"Follow the trail of corrupted data nodes deeper into the mist.\n" +
		"Seek out the keeper of digital seeds who might have answers.\n" +
		"Analyze the pattern of the mist's movement for clues."
	OfflineContinuation = "As you venture deeper, the Green Mist parts momentarily, revealing fractured code patterns in the air. " +
		"Could this be connected to the L3M0N protocol? The garden seems to respond to your blockchain signature, opening new pathways forward."
	OfflineHint = "Count the rows before the columns, and remember that the mist always names the grid first."
)

var _ Provider = (*OfflineProvider)(nil)

// OfflineProvider детерминированно подбирает заготовленный ответ по подстрокам промпта.
type OfflineProvider struct{}

func NewOfflineProvider() *OfflineProvider { return &OfflineProvider{} }

func (p *OfflineProvider) Name() string { return "offline" }

func (p *OfflineProvider) Generate(_ context.Context, req Request) (string, error) {
	system := strings.ToLower(req.SystemPrompt)
	switch {
	case strings.Contains(req.UserPrompt, "Begin the story"):
		return OfflineOpening, nil
	case req.Purpose == PurposeChoices || strings.Contains(system, "to choose from"):
		return OfflineChoices, nil
	case req.Purpose == PurposeHint || strings.Contains(system, "hint"):
		return OfflineHint, nil
	default:
		return OfflineContinuation, nil
	}
}
