package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey_LowerCases(t *testing.T) {
	assert.Equal(t, "questState_0xabcdef", StorageKey(" 0xABCdef "))
}

func TestNormalizeWallet(t *testing.T) {
	w, err := NormalizeWallet("0xABCDEF0123456789abcdef0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef0123456789abcdef0123456789abcdef01", w)

	_, err = NormalizeWallet("0x123")
	assert.ErrorIs(t, err, ErrInvalidWallet)
}

func TestQuestState_SetsAreDeduplicated(t *testing.T) {
	var q QuestState
	assert.True(t, q.AddSolvedPuzzle("mist_pattern"))
	assert.False(t, q.AddSolvedPuzzle("mist_pattern"))
	assert.Equal(t, []string{"mist_pattern"}, q.SolvedPuzzles)

	assert.True(t, q.UnlockArea("Garden Entrance"))
	assert.True(t, q.UnlockArea("Mist Grid"))
	assert.False(t, q.UnlockArea("Garden Entrance"))
	assert.Equal(t, []string{"Garden Entrance", "Mist Grid"}, q.UnlockedAreas)
}

func TestQuestState_RecentHistory(t *testing.T) {
	var q QuestState
	for i := 0; i < 7; i++ {
		q.AppendHistory(RoleUser, string(rune('a'+i)))
	}
	recent := q.RecentHistory(5)
	require.Len(t, recent, 5)
	assert.Equal(t, "c", recent[0].Text)
	assert.Equal(t, "g", recent[4].Text)

	recent[0].Text = "changed"
	assert.Equal(t, "c", q.ConversationHistory[2].Text)
}

func TestSessionRecord_CloneIsDeep(t *testing.T) {
	r := &SessionRecord{InviteCodes: []string{"PEAR-AAAA"}}
	r.AvailableChoices = []Choice{{ID: "choice_0", Text: "go", Kind: ChoiceKindStory}}

	c := r.Clone()
	c.InviteCodes[0] = "x"
	c.AvailableChoices[0].Text = "y"

	assert.Equal(t, "PEAR-AAAA", r.InviteCodes[0])
	assert.Equal(t, "go", r.AvailableChoices[0].Text)
}
