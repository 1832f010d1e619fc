package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// storageKeyPrefix префикс ключа сохраненной сессии.
const storageKeyPrefix = "questState_"

var walletRe = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// SessionRecord сохраняемое состояние сессии кошелька.
type SessionRecord struct {
	QuestState

	TokenBalanceShadow int64     `json:"tokenBalanceShadow"`
	ReferralVerified   bool      `json:"referralVerified"`
	InviteCodes        []string  `json:"inviteCodes"`
	CurrentPuzzle      string    `json:"currentPuzzle,omitempty"`
	HintsUsed          int       `json:"hintsUsed"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Clone возвращает глубокую копию записи.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.QuestState = r.QuestState.Clone()
	c.InviteCodes = cloneSlice(r.InviteCodes)
	return &c
}

// StorageKey возвращает ключ хранилища для кошелька.
func StorageKey(wallet string) string {
	return storageKeyPrefix + strings.ToLower(strings.TrimSpace(wallet))
}

// NormalizeWallet приводит адрес кошелька к нижнему регистру и проверяет формат.
func NormalizeWallet(addr string) (string, error) {
	w := strings.ToLower(strings.TrimSpace(addr))
	if !walletRe.MatchString(w) {
		return "", fmt.Errorf("%w: %q is not a wallet address", ErrInvalidWallet, addr)
	}
	return w, nil
}
