package tui

import "github.com/charmbracelet/lipgloss"

var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))
)

// lineKind определяет оформление строки вывода.
type lineKind int

const (
	kindNarration lineKind = iota
	kindChoice
	kindSystem
	kindWarning
	kindError
	kindInput
)

func renderLine(text string, kind lineKind) string {
	switch kind {
	case kindChoice:
		return styleChoice.Render(text)
	case kindSystem:
		return styleSystem.Render("[" + text + "]")
	case kindWarning:
		return styleWarning.Render(text)
	case kindError:
		return styleError.Render(text)
	case kindInput:
		return stylePlayerInput.Render(text)
	default:
		return styleNarration.Render(text)
	}
}
