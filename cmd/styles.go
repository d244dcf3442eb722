package cmd

import "github.com/charmbracelet/lipgloss"

// LipGloss signature purple/pink palette
var (
	headerColor  = lipgloss.Color("#F780FF") // Bright pink
	accentColor  = lipgloss.Color("#8BE9FD") // Cyan
	answerColor  = lipgloss.Color("#E9E9F4") // Light purple/white
	mutedColor   = lipgloss.Color("#6272A4") // Muted purple
	numberColor  = lipgloss.Color("#FF79C6") // Pink
	titleColor   = lipgloss.Color("#BD93F9") // Purple
	errorColor   = lipgloss.Color("#FF5555") // Red
	successColor = lipgloss.Color("#50FA7B") // Green
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(headerColor).Bold(true)
	accentStyle  = lipgloss.NewStyle().Foreground(accentColor).Italic(true)
	answerStyle  = lipgloss.NewStyle().Foreground(answerColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	borderStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
)
