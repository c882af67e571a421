package main

import "github.com/charmbracelet/lipgloss"

// Terminal styles.  lipgloss drops colour when stdout is not a terminal.
var (
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	styleFail   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
)
