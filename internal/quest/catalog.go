package quest

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog контент квеста: промпты, запасные ответы, загадки и руны.
type Catalog struct {
	Prompts   Prompts   `yaml:"prompts"`
	Fallbacks Fallbacks `yaml:"fallbacks"`
	Messages  Messages  `yaml:"messages"`
	StartArea string    `yaml:"start_area"`
	Puzzles   []Puzzle  `yaml:"puzzles"`
	Runes     []Rune    `yaml:"runes"`
	Economy   Economy   `yaml:"economy"`
}

type Prompts struct {
	Story   string `yaml:"story"`
	Choices string `yaml:"choices"`
	Hint    string `yaml:"hint"`
	Opening string `yaml:"opening"`
}

type Fallbacks struct {
	Choices          []string `yaml:"choices"`
	NarrationWarning string   `yaml:"narration_warning"`
	ChoicesWarning   string   `yaml:"choices_warning"`
}

type Messages struct {
	ReferralRequired  string `yaml:"referral_required"`
	ReferralAccepted  string `yaml:"referral_accepted"`
	AlreadyVerified   string `yaml:"already_verified"`
	WrongNetwork      string `yaml:"wrong_network"`
	SelectionNotFound string `yaml:"selection_not_found"`
	ChoiceInProgress  string `yaml:"choice_in_progress"`
	WrongAnswer       string `yaml:"wrong_answer"`
	CorrectAnswer     string `yaml:"correct_answer"`
	NotEnoughForHint  string `yaml:"not_enough_for_hint"`
	HintLimit         string `yaml:"hint_limit"`
	NoActivePuzzle    string `yaml:"no_active_puzzle"`
}

// Puzzle загадка, которая активируется ключевыми словами в повествовании.
type Puzzle struct {
	ID         string   `yaml:"id"`
	Keywords   []string `yaml:"keywords"`
	Solution   string   `yaml:"solution"`
	Bonus      int64    `yaml:"bonus"`
	Notice     string   `yaml:"notice"`
	PuzzleType string   `yaml:"puzzle_type"`
	HintTopic  string   `yaml:"hint_topic"`
	Unlocks    string   `yaml:"unlocks"`
}

// Rune улика, которая записывается при упоминании в повествовании.
type Rune struct {
	ID       string   `yaml:"id"`
	Keywords []string `yaml:"keywords"`
}

type Economy struct {
	InteractionCost      int64 `yaml:"interaction_cost"`
	InitialShadowBalance int64 `yaml:"initial_shadow_balance"`
	HintCost             int64 `yaml:"hint_cost"`
	MaxHintsPerPuzzle    int   `yaml:"max_hints_per_puzzle"`
	HistoryWindow        int   `yaml:"history_window"`
}

// DefaultCatalog возвращает встроенный каталог.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded quest catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog читает каталог из файла; пустой путь дает встроенный каталог.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quest catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog разбирает YAML и проверяет обязательные поля.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse quest catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	for i := range c.Puzzles {
		c.Puzzles[i].Keywords = lowerAll(c.Puzzles[i].Keywords)
		c.Puzzles[i].Solution = normalizeSolution(c.Puzzles[i].Solution)
	}
	for i := range c.Runes {
		c.Runes[i].Keywords = lowerAll(c.Runes[i].Keywords)
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []error
	if c.Prompts.Story == "" || c.Prompts.Choices == "" || c.Prompts.Opening == "" {
		errs = append(errs, errors.New("story, choices and opening prompts are required"))
	}
	if len(c.Fallbacks.Choices) == 0 {
		errs = append(errs, errors.New("at least one fallback choice is required"))
	}
	if c.Economy.InteractionCost <= 0 {
		errs = append(errs, errors.New("economy.interaction_cost must be positive"))
	}
	if c.Economy.HistoryWindow <= 0 {
		errs = append(errs, errors.New("economy.history_window must be positive"))
	}
	seen := make(map[string]bool)
	for _, p := range c.Puzzles {
		if p.ID == "" || p.Solution == "" {
			errs = append(errs, errors.New("puzzle id and solution are required"))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate puzzle id %q", p.ID))
		}
		seen[p.ID] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid quest catalog: %w", errors.Join(errs...))
	}
	return nil
}

// Puzzle ищет загадку по id.
func (c *Catalog) Puzzle(id string) (Puzzle, bool) {
	for _, p := range c.Puzzles {
		if p.ID == id {
			return p, true
		}
	}
	return Puzzle{}, false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
