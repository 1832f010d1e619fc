package models

// ChoiceKindStory единственный тип выбора, который генерирует квест.
const ChoiceKindStory = "story_choice"

// Роли записей истории диалога.
const (
	RoleUser     = "user"
	RoleNarrator = "narrator"
)

// Choice вариант продолжения истории, доступный пользователю.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Kind string `json:"type"`
}

// HistoryEntry запись в истории диалога.
type HistoryEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// QuestState состояние квеста одного кошелька.
// Множества хранятся упорядоченными срезами; элементы только добавляются.
type QuestState struct {
	DiscoveredRunes     []string       `json:"discoveredRunes"`
	SolvedPuzzles       []string       `json:"solvedPuzzles"`
	UnlockedAreas       []string       `json:"unlockedAreas"`
	CurrentPlotPoint    string         `json:"currentPlotPoint"`
	AvailableChoices    []Choice       `json:"availableChoices"`
	ConversationHistory []HistoryEntry `json:"conversationHistory"`
}

// AddRune добавляет руну, если ее еще нет. Возвращает true, если руна новая.
func (q *QuestState) AddRune(id string) bool {
	return appendUnique(&q.DiscoveredRunes, id)
}

// AddSolvedPuzzle отмечает головоломку решенной. Возвращает true при первом решении.
func (q *QuestState) AddSolvedPuzzle(id string) bool {
	return appendUnique(&q.SolvedPuzzles, id)
}

// UnlockArea открывает локацию. Возвращает true, если локация новая.
func (q *QuestState) UnlockArea(area string) bool {
	return appendUnique(&q.UnlockedAreas, area)
}

func (q *QuestState) IsPuzzleSolved(id string) bool { return contains(q.SolvedPuzzles, id) }

// AppendHistory добавляет запись в конец истории.
func (q *QuestState) AppendHistory(role, text string) {
	q.ConversationHistory = append(q.ConversationHistory, HistoryEntry{Role: role, Text: text})
}

// FindChoice ищет вариант по идентификатору среди доступных.
func (q *QuestState) FindChoice(id string) (Choice, bool) {
	for _, c := range q.AvailableChoices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}

// RecentHistory возвращает последние n записей истории (копию).
func (q *QuestState) RecentHistory(n int) []HistoryEntry {
	h := q.ConversationHistory
	if n >= 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out
}

// Clone возвращает глубокую копию состояния.
func (q QuestState) Clone() QuestState {
	return QuestState{
		DiscoveredRunes:     cloneSlice(q.DiscoveredRunes),
		SolvedPuzzles:       cloneSlice(q.SolvedPuzzles),
		UnlockedAreas:       cloneSlice(q.UnlockedAreas),
		CurrentPlotPoint:    q.CurrentPlotPoint,
		AvailableChoices:    cloneSlice(q.AvailableChoices),
		ConversationHistory: cloneSlice(q.ConversationHistory),
	}
}

func appendUnique(set *[]string, v string) bool {
	if contains(*set, v) {
		return false
	}
	*set = append(*set, v)
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
