package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rustyorb/auto-chat/model"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	// Speaker names cycle through these, in participant order.
	speakerColors = []lipgloss.Color{successColor, accentColor, lipgloss.Color("14"), lipgloss.Color("208")}

	// System/timestamp style
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	PausedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	NarratorStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Italic(true)

	SystemStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)
)

// speakerStyle picks the name style for a message. Injected roles have fixed
// styles; participants are coloured by position.
func speakerStyle(msg model.Message, index map[string]int) lipgloss.Style {
	switch msg.Role {
	case model.RoleNarrator:
		return NarratorStyle
	case model.RoleSystem:
		return SystemStyle
	}
	i, ok := index[msg.SpeakerName]
	if !ok {
		return DimStyle.Bold(true)
	}
	return lipgloss.NewStyle().Foreground(speakerColors[i%len(speakerColors)]).Bold(true)
}

// FormatFooter formats a footer string with alternating keys and descriptions.
// Usage: FormatFooter("Space", "Pause", "q", "Quit")
func FormatFooter(parts ...string) string {
	descStyle := lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	var result []string
	for i := 0; i < len(parts); i += 2 {
		if i+1 < len(parts) {
			result = append(result, parts[i]+" "+descStyle.Render(parts[i+1]))
		}
	}
	return strings.Join(result, "  ")
}
