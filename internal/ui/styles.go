package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/drgolem/chipplay/internal/soundengine"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	pathStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	panelStyle    = lipgloss.NewStyle().Padding(0, 1)
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	folderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	playingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))  // Green
	pausedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226")) // Yellow
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")) // Bright red
	stoppedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))            // Gray
)

func stateStyle(s soundengine.State) lipgloss.Style {
	switch s {
	case soundengine.Started:
		return playingStyle
	case soundengine.Paused:
		return pausedStyle
	case soundengine.Error:
		return errorStyle
	}
	return stoppedStyle
}
