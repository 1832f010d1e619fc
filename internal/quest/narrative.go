package quest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"quest-server/internal/models"
	"quest-server/internal/narration"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Narrator источник текста повествования.
type Narrator interface {
	Complete(ctx context.Context, req narration.Request) (narration.Reply, error)
}

// narrative базовый модуль повествования: вступление, продолжение, варианты выбора и загадки.
// Он ничего не знает о реферальных кодах и списании токенов.
type narrative struct {
	narrator    Narrator
	catalog     *Catalog
	counter     narration.TokenCounter
	tokenBudget int
}

// step результат шага повествования.
type step struct {
	Text           string
	Degraded       bool
	ChoicesWarning bool
	Choices        []models.Choice
	Triggered      *Puzzle
	NewRunes       []string
}

// opening генерирует вступление и первый набор вариантов.
func (n *narrative) opening(ctx context.Context, st *models.QuestState) (step, error) {
	reply, err := n.narrator.Complete(ctx, narration.Request{
		Purpose:      narration.PurposeStory,
		SystemPrompt: n.catalog.Prompts.Story,
		UserPrompt:   n.catalog.Prompts.Opening,
	})
	if err != nil {
		return step{}, err
	}
	return n.advance(ctx, st, reply), nil
}

// continueStory продолжает историю после выбора пользователя.
// Запись пользователя в истории уже добавлена вызывающим кодом.
func (n *narrative) continueStory(ctx context.Context, st *models.QuestState, chosen string) (step, error) {
	reply, err := n.narrator.Complete(ctx, narration.Request{
		Purpose:      narration.PurposeStory,
		SystemPrompt: n.catalog.Prompts.Story,
		UserPrompt:   n.continuationPrompt(st, chosen),
	})
	if err != nil {
		return step{}, err
	}
	if reply.Degraded {
		// Сюжет не продвигается: варианты строятся от прежней точки.
		s := step{Text: reply.Text, Degraded: true}
		s.Choices, s.ChoicesWarning = n.choicesFor(ctx, st, st.CurrentPlotPoint)
		return s, nil
	}
	return n.advance(ctx, st, reply), nil
}

// advance применяет новую реплику рассказчика к состоянию.
func (n *narrative) advance(ctx context.Context, st *models.QuestState, reply narration.Reply) step {
	s := step{Text: reply.Text, Degraded: reply.Degraded}
	if reply.Degraded {
		s.Choices, s.ChoicesWarning = n.choicesFor(ctx, st, st.CurrentPlotPoint)
		return s
	}
	st.CurrentPlotPoint = reply.Text
	st.AppendHistory(models.RoleNarrator, reply.Text)
	s.NewRunes = n.discoverRunes(st, reply.Text)
	s.Choices, s.ChoicesWarning = n.choicesFor(ctx, st, reply.Text)
	s.Triggered = n.detectPuzzle(st, reply.Text)
	return s
}

// choicesFor генерирует варианты; при сбое отдает запасные и флаг предупреждения.
func (n *narrative) choicesFor(ctx context.Context, st *models.QuestState, situation string) ([]models.Choice, bool) {
	reply, err := n.narrator.Complete(ctx, narration.Request{
		Purpose:      narration.PurposeChoices,
		SystemPrompt: n.catalog.Prompts.Choices,
		UserPrompt:   fmt.Sprintf("Current situation: %s\nDiscovered clues: %s", situation, strings.Join(st.DiscoveredRunes, ", ")),
	})
	if err == nil && !reply.Degraded {
		if lines := narration.ParseChoices(reply.Text); len(lines) > 0 {
			return n.batch(lines), false
		}
	}
	return n.fallbackChoices(), true
}

func (n *narrative) fallbackChoices() []models.Choice {
	return n.batch(n.catalog.Fallbacks.Choices)
}

// batch строит набор вариантов с id, уникальными в пределах партии и между партиями.
func (n *narrative) batch(lines []string) []models.Choice {
	prefix := uuid.NewString()[:8]
	out := make([]models.Choice, 0, len(lines))
	for i, text := range lines {
		out = append(out, models.Choice{
			ID:   fmt.Sprintf("choice_%d_%s", i, prefix),
			Text: text,
			Kind: models.ChoiceKindStory,
		})
	}
	return out
}

// continuationPrompt собирает контекст: прежняя точка сюжета, выбор и хвост истории в пределах бюджета токенов.
func (n *narrative) continuationPrompt(st *models.QuestState, chosen string) string {
	window := st.RecentHistory(n.catalog.Economy.HistoryWindow)
	if n.counter != nil && n.tokenBudget > 0 {
		for len(window) > 1 && n.counter.Count(historyJSON(window)) > n.tokenBudget {
			window = window[1:]
		}
	}
	return fmt.Sprintf("Previous context: %s\nUser chose: %s\nConversation history: %s",
		st.CurrentPlotPoint, chosen, historyJSON(window))
}

func historyJSON(entries []models.HistoryEntry) string {
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// detectPuzzle простое сопоставление ключевых слов, не движок правил.
func (n *narrative) detectPuzzle(st *models.QuestState, text string) *Puzzle {
	lower := strings.ToLower(text)
	for i := range n.catalog.Puzzles {
		p := &n.catalog.Puzzles[i]
		if st.IsPuzzleSolved(p.ID) {
			continue
		}
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				return p
			}
		}
	}
	return nil
}

func (n *narrative) discoverRunes(st *models.QuestState, text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, r := range n.catalog.Runes {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				if st.AddRune(r.ID) {
					found = append(found, r.ID)
				}
				break
			}
		}
	}
	return found
}

// hint запрашивает подсказку к загадке.
func (n *narrative) hint(ctx context.Context, p Puzzle, hintsUsed int) (narration.Reply, error) {
	return n.narrator.Complete(ctx, narration.Request{
		Purpose:      narration.PurposeHint,
		SystemPrompt: n.catalog.Prompts.Hint,
		UserPrompt: fmt.Sprintf("Puzzle type: %s\nHints used: %d\nSolution related to: %s",
			p.PuzzleType, hintsUsed, p.HintTopic),
	})
}

// normalizeSolution Caser не потокобезопасен, поэтому создается на каждый вызов.
func normalizeSolution(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}
