package narration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quest-server/internal/narration"
	"quest-server/internal/narration/mocks"
)

const (
	storySystem   = "You are PerryAI, a mysterious guardian of a digital garden."
	choicesSystem = "Generate 4 different possible responses or actions for the user to choose from."
)

func newClient(t *testing.T, p narration.Provider, size int) *narration.Client {
	t.Helper()
	c, err := narration.NewClient(p, narration.Options{CacheSize: size}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestComplete_CacheDeterminism(t *testing.T) {
	provider := new(mocks.Provider)
	req := narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "User chose: look"}
	provider.On("Generate", mock.Anything, req).Return("Mist reveals a grid.", nil).Once()

	c := newClient(t, provider, 8)

	first, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, narration.SourceLive, first.Source)
	assert.Equal(t, narration.SourceCache, second.Source)
	provider.AssertNumberOfCalls(t, "Generate", 1)
}

func TestComplete_DistinctPromptsAreDistinctKeys(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("text", nil)

	c := newClient(t, provider, 8)
	ctx := context.Background()

	_, _ = c.Complete(ctx, narration.Request{SystemPrompt: "a", UserPrompt: "bc"})
	_, _ = c.Complete(ctx, narration.Request{SystemPrompt: "ab", UserPrompt: "c"})

	provider.AssertNumberOfCalls(t, "Generate", 2)
}

func TestComplete_CacheIsBounded(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("text", nil)

	c := newClient(t, provider, 2)
	ctx := context.Background()
	for _, u := range []string{"one", "two", "three", "one"} {
		_, err := c.Complete(ctx, narration.Request{SystemPrompt: storySystem, UserPrompt: u})
		require.NoError(t, err)
	}

	// "one" вытеснен при добавлении "three"
	provider.AssertNumberOfCalls(t, "Generate", 4)
}

func TestComplete_StoryFailureFallsBack(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("503"))

	c := newClient(t, provider, 8)
	reply, err := c.Complete(context.Background(), narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "x"})

	require.NoError(t, err)
	assert.True(t, reply.Degraded)
	assert.Equal(t, narration.SourceFallback, reply.Source)
	assert.Equal(t, narration.HoldingLine, reply.Text)
}

func TestComplete_FailureIsNotCached(t *testing.T) {
	provider := new(mocks.Provider)
	req := narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "retry me"}
	provider.On("Generate", mock.Anything, req).Return("", errors.New("timeout")).Once()
	provider.On("Generate", mock.Anything, req).Return("Recovered.", nil).Once()

	c := newClient(t, provider, 8)
	first, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.Degraded)

	second, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Recovered.", second.Text)
	assert.False(t, second.Degraded)
}

func TestComplete_ConfiguredFallbackPerSystemPrompt(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	c := newClient(t, provider, 8)
	c.SetFallback(storySystem, "The garden holds its breath.")

	reply, err := c.Complete(context.Background(), narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "The garden holds its breath.", reply.Text)

	other, err := c.Complete(context.Background(), narration.Request{Purpose: narration.PurposeHint, SystemPrompt: "hint system", UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, narration.HoldingLine, other.Text)
}

func TestComplete_ChoicesFailureIsRecoverableError(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	c := newClient(t, provider, 8)
	_, err := c.Complete(context.Background(), narration.Request{Purpose: narration.PurposeChoices, SystemPrompt: choicesSystem, UserPrompt: "x"})
	assert.ErrorIs(t, err, narration.ErrGenerationFailed)
}

func TestComplete_EmptyReplyIsFailure(t *testing.T) {
	provider := new(mocks.Provider)
	provider.On("Generate", mock.Anything, mock.Anything).Return("   ", nil)

	c := newClient(t, provider, 8)
	reply, err := c.Complete(context.Background(), narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "x"})
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
}

func TestComplete_OfflineMode(t *testing.T) {
	c := newClient(t, nil, 8)
	require.True(t, c.Offline())
	ctx := context.Background()

	opening, err := c.Complete(ctx, narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "Begin the story in an engaging way."})
	require.NoError(t, err)
	assert.Equal(t, narration.OfflineOpening, opening.Text)
	assert.Equal(t, narration.SourceOffline, opening.Source)

	choices, err := c.Complete(ctx, narration.Request{Purpose: narration.PurposeChoices, SystemPrompt: choicesSystem, UserPrompt: "Current situation: x"})
	require.NoError(t, err)
	assert.Len(t, narration.ParseChoices(choices.Text), 4)

	cont, err := c.Complete(ctx, narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "User chose: y"})
	require.NoError(t, err)
	assert.Equal(t, narration.OfflineContinuation, cont.Text)

	again, err := c.Complete(ctx, narration.Request{Purpose: narration.PurposeStory, SystemPrompt: storySystem, UserPrompt: "User chose: y"})
	require.NoError(t, err)
	assert.Equal(t, narration.SourceCache, again.Source)
	assert.Equal(t, cont.Text, again.Text)
}

func TestOfflineProvider_SubstringSelection(t *testing.T) {
	p := narration.NewOfflineProvider()
	ctx := context.Background()

	text, _ := p.Generate(ctx, narration.Request{SystemPrompt: choicesSystem, UserPrompt: "anything"})
	assert.Equal(t, narration.OfflineChoices, text)

	text, _ = p.Generate(ctx, narration.Request{SystemPrompt: "Create a subtle hint about the puzzle solution."})
	assert.Equal(t, narration.OfflineHint, text)
}
