package chat

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Terminal palette: blue user label, green assistant label, cyan
// assistant text, dim system lines.
var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	assistantTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// UserLabel renders the speaker label for transcribed user text.
func UserLabel() string { return userLabelStyle.Render("You:") }

// AssistantLabel renders the speaker label for agent replies.
func AssistantLabel() string { return assistantLabelStyle.Render("Assistant:") }

// AssistantText styles an agent reply for terminal output.
func AssistantText(text string) string { return assistantTextStyle.Render(text) }

// NewStatusWriter returns a status func that writes one dim line per call.
// lipgloss degrades to plain text on non-TTY output and under NO_COLOR.
func NewStatusWriter(w io.Writer) func(string) {
	return func(line string) {
		fmt.Fprintln(w, statusStyle.Render(line))
	}
}
