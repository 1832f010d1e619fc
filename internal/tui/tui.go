// Package tui терминальный клиент квеста поверх сессии движка.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quest-server/internal/models"
	"quest-server/internal/quest"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const defaultOpTimeout = 3 * time.Minute

// Engine операции сессии, которые использует клиент. *quest.Session его реализует.
type Engine interface {
	Initialize(ctx context.Context) (quest.View, error)
	RedeemReferralCode(ctx context.Context, code string) (quest.RedeemResult, error)
	SelectChoice(ctx context.Context, choiceID string) (quest.Outcome, error)
	SubmitPuzzleSolution(ctx context.Context, puzzleID, answer string) (quest.PuzzleResult, error)
	RequestHint(ctx context.Context) (quest.HintResult, error)
	RefreshBalance(ctx context.Context) (int64, error)
	View() quest.View
}

var _ Engine = (*quest.Session)(nil)

type outputLine struct {
	text string
	kind lineKind
}

// Model модель Bubble Tea для клиента квеста.
type Model struct {
	engine    Engine
	opTimeout time.Duration

	viewport viewport.Model
	input    textinput.Model

	lines []outputLine
	view  quest.View

	width    int
	height   int
	ready    bool
	busy     bool
	quitting bool
}

// resultMsg результат операции движка, выполненной вне цикла Update.
type resultMsg struct {
	lines []outputLine
	view  quest.View
}

// EventMsg событие сессии, доставленное в программу через Sink.
type EventMsg struct {
	Event quest.Event
}

// New создает модель клиента для сессии.
func New(engine Engine) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		engine:    engine,
		opTimeout: defaultOpTimeout,
		input:     ti,
		view:      engine.View(),
	}
}

// Run запускает программу. Сессия должна быть создана заранее; события
// сессии подключаются к программе через Sink.
func Run(session *quest.Session) error {
	p := tea.NewProgram(New(session), tea.WithAltScreen())
	session.AddSink(Sink(p))
	_, err := p.Run()
	return err
}

// Sink пересылает события сессии в программу.
func Sink(p *tea.Program) quest.EventSink {
	return quest.SinkFunc(func(_ context.Context, ev quest.Event) error {
		p.Send(EventMsg{Event: ev})
		return nil
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run(func(ctx context.Context) []outputLine {
		view, err := m.engine.Initialize(ctx)
		if err != nil {
			return errorLines(err)
		}
		return viewLines(view)
	}))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.handleEnter()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case resultMsg:
		m.busy = false
		m.view = msg.view
		m = m.appendLines(msg.lines...)
		return m, nil

	case EventMsg:
		if lines := eventLines(msg.Event); len(lines) > 0 {
			m = m.appendLines(lines...)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}

	m = m.appendLines(outputLine{text: "> " + input, kind: kindInput})
	if m.busy {
		return m.appendLines(outputLine{text: "Still working on the previous action.", kind: kindSystem}), nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	choiceID, ok := m.resolveChoice(input)
	if !ok {
		return m.appendLines(outputLine{text: "Type a choice number or /help.", kind: kindSystem}), nil
	}
	m.busy = true
	return m, m.run(func(ctx context.Context) []outputLine {
		out, err := m.engine.SelectChoice(ctx, choiceID)
		if err != nil {
			return errorLines(err)
		}
		return outcomeLines(out)
	})
}

// resolveChoice принимает номер варианта (с 1) или его идентификатор.
func (m Model) resolveChoice(input string) (string, bool) {
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(m.view.Choices) {
			return "", false
		}
		return m.view.Choices[n-1].ID, true
	}
	for _, c := range m.view.Choices {
		if c.ID == input {
			return c.ID, true
		}
	}
	return "", false
}

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	var op func(ctx context.Context) []outputLine
	switch cmd {
	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/help":
		return m.appendLines(helpLines()...), nil

	case "/code":
		if arg == "" {
			return m.appendLines(outputLine{text: "Usage: /code <invite code>", kind: kindSystem}), nil
		}
		op = func(ctx context.Context) []outputLine {
			res, err := m.engine.RedeemReferralCode(ctx, arg)
			if err != nil {
				return errorLines(err)
			}
			lines := []outputLine{{text: res.Message, kind: kindSystem}}
			if len(res.InviteCodes) > 0 {
				lines = append(lines, outputLine{text: "Your invite codes: " + strings.Join(res.InviteCodes, ", "), kind: kindSystem})
			}
			if !res.AlreadyVerified {
				lines = append(lines, viewLines(res.View)...)
			}
			return lines
		}

	case "/solve":
		puzzleID := m.view.CurrentPuzzle
		if puzzleID == "" {
			return m.appendLines(outputLine{text: "There is no puzzle to solve right now.", kind: kindSystem}), nil
		}
		op = func(ctx context.Context) []outputLine {
			res, err := m.engine.SubmitPuzzleSolution(ctx, puzzleID, arg)
			if err != nil {
				return errorLines(err)
			}
			kind := kindSystem
			if !res.Solved && !res.AlreadySolved {
				kind = kindWarning
			}
			return []outputLine{{text: res.Message, kind: kind}}
		}

	case "/hint":
		op = func(ctx context.Context) []outputLine {
			res, err := m.engine.RequestHint(ctx)
			if err != nil {
				return errorLines(err)
			}
			return []outputLine{{text: res.Text, kind: kindNarration}}
		}

	case "/balance":
		op = func(ctx context.Context) []outputLine {
			balance, err := m.engine.RefreshBalance(ctx)
			if err != nil {
				return errorLines(err)
			}
			return []outputLine{{text: fmt.Sprintf("Balance: %d PEAR", balance), kind: kindSystem}}
		}

	default:
		return m.appendLines(outputLine{text: fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd), kind: kindSystem}), nil
	}

	m.busy = true
	return m, m.run(op)
}

// run выполняет операцию движка в отдельной горутине Bubble Tea.
func (m Model) run(op func(ctx context.Context) []outputLine) tea.Cmd {
	engine, timeout := m.engine, m.opTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		lines := op(ctx)
		return resultMsg{lines: lines, view: engine.View()}
	}
}

func (m Model) appendLines(lines ...outputLine) Model {
	m.lines = append(m.lines, lines...)
	m.refreshViewport()
	return m
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := m.width
	if width < 10 {
		width = 10
	}
	styled := make([]string, 0, len(m.lines))
	for _, l := range m.lines {
		if l.text == "" {
			styled = append(styled, "")
			continue
		}
		styled = append(styled, renderLine(lipgloss.NewStyle().Width(width).Render(l.text), l.kind))
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

func (m Model) renderStatusBar() string {
	left := fmt.Sprintf(" %s | %s", shortWallet(m.view.Wallet), m.view.State)
	if m.view.CurrentPuzzle != "" {
		left += " | Puzzle: " + m.view.CurrentPuzzle
	}
	right := fmt.Sprintf("Runes: %d | %d PEAR ", len(m.view.DiscoveredRunes), m.view.Balance)
	if m.busy {
		right = "working... | " + right
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return styleStatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func viewLines(v quest.View) []outputLine {
	var lines []outputLine
	for _, h := range v.Transcript {
		if h.Role == models.RoleUser {
			lines = append(lines, outputLine{text: "> " + h.Text, kind: kindInput})
			continue
		}
		lines = append(lines, outputLine{text: h.Text, kind: kindNarration})
	}
	if v.State == quest.StateAwaitingReferral {
		return append(lines, outputLine{text: "Enter an invite code with /code <code> to begin.", kind: kindSystem})
	}
	if len(v.Transcript) == 0 && v.Narration != "" {
		lines = append(lines, outputLine{text: v.Narration, kind: kindNarration})
	}
	return append(lines, choiceLines(v.Choices)...)
}

func outcomeLines(out quest.Outcome) []outputLine {
	lines := []outputLine{{text: out.Narration, kind: kindNarration}}
	if out.Warning != "" {
		lines = append(lines, outputLine{text: out.Warning, kind: kindWarning})
	}
	for _, n := range out.Notices {
		lines = append(lines, outputLine{text: n, kind: kindSystem})
	}
	return append(lines, choiceLines(out.Choices)...)
}

func choiceLines(choices []models.Choice) []outputLine {
	lines := []outputLine{{}}
	for i, c := range choices {
		lines = append(lines, outputLine{text: fmt.Sprintf("%d. %s", i+1, c.Text), kind: kindChoice})
	}
	return append(lines, outputLine{})
}

func errorLines(err error) []outputLine {
	return []outputLine{{text: quest.UserMessage(err), kind: kindError}}
}

// eventLines показывает события, которых нет в результатах операций.
func eventLines(ev quest.Event) []outputLine {
	switch ev.Type {
	case quest.EventTokensDeducted:
		line := fmt.Sprintf("Spent %v PEAR", ev.Data["amount"])
		if tx, _ := ev.Data["txHash"].(string); tx != "" {
			line += " (tx " + tx + ")"
		}
		return []outputLine{{text: line, kind: kindSystem}}
	case quest.EventNotice:
		if runes, ok := ev.Data["runes"].([]string); ok && len(runes) > 0 {
			return []outputLine{{text: "Runes discovered: " + strings.Join(runes, ", "), kind: kindSystem}}
		}
		if area, ok := ev.Data["unlockedArea"].(string); ok && area != "" {
			return []outputLine{{text: "New area unlocked: " + area, kind: kindSystem}}
		}
	}
	return nil
}

func helpLines() []outputLine {
	text := []string{
		"1, 2, 3...      pick a choice",
		"/code <code>    redeem an invite code",
		"/solve <answer> answer the current puzzle",
		"/hint           ask for a hint",
		"/balance        refresh the token balance",
		"/quit           exit",
		"PgUp/PgDn to scroll",
	}
	lines := make([]outputLine, 0, len(text))
	for _, t := range text {
		lines = append(lines, outputLine{text: t, kind: kindSystem})
	}
	return lines
}

func shortWallet(w string) string {
	if len(w) <= 12 {
		return w
	}
	return w[:6] + "..." + w[len(w)-4:]
}

// viewportKeyMap отключает стрелки: они нужны полю ввода.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
