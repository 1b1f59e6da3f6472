package helpers

import "github.com/charmbracelet/lipgloss"

var (
	// Styles.
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	HintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Field renders a "label: value" line.
func Field(label, value string) string {
	return LabelStyle.Render(label+":") + " " + value
}
