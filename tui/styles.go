// Package tui is the OtoAnaliz terminal interface built on Charm libraries
package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"otoanaliz/appraisal"
	"otoanaliz/present"
)

// Color palette, slate based to match the dashboard look of the web client
var (
	// Primary colors
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#2563EB", Dark: "#60A5FA"} // Blue
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Amber

	// Semantic colors
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"} // Emerald
	ColorWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Amber
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"} // Red
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"} // Indigo

	// Neutral colors
	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}

	// Body panel statuses
	ColorPanelOriginal = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#475569"} // Slate
	ColorPanelLocal    = lipgloss.AdaptiveColor{Light: "#CA8A04", Dark: "#EAB308"} // Yellow
	ColorPanelPainted  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A855F7"} // Purple
	ColorPanelChanged  = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#EF4444"} // Red

	ColorBrand = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#3B82F6"}
)

// Base styles
var (
	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// Status styles
	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	// Component styles
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2).
			MarginTop(1)

	FocusedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(1, 2).
			MarginTop(1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	// Badge styles
	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF"))

	BadgeWarningStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorWarning).
				Foreground(lipgloss.Color("#000000"))
)

// Logo is the application header
var Logo = `
   ___  _         _               _ _
  / _ \| |_ ___  / \   _ __   __ _| (_)____
 | | | | __/ _ \/ _ \ | '_ \ / _' | | |_  /
 | |_| | || (_) / ___ \| | | | (_| | | |/ /
  \___/ \__\___/_/   \_\_| |_|\__,_|_|_/___|
`

// Header returns the styled logo with its tagline
func Header() string {
	logo := lipgloss.NewStyle().Foreground(ColorBrand).Bold(true).Render(Logo)
	tagline := MutedStyle.Render("  Yapay zeka destekli araç ekspertiz ve fiyat analizi")
	return logo + "\n" + tagline
}

// PanelColor returns the schematic color of a panel status
func PanelColor(s appraisal.PartStatus) lipgloss.AdaptiveColor {
	switch s {
	case appraisal.StatusLocal:
		return ColorPanelLocal
	case appraisal.StatusPainted:
		return ColorPanelPainted
	case appraisal.StatusChanged:
		return ColorPanelChanged
	default:
		return ColorPanelOriginal
	}
}

// ConfidenceBadge renders "%90 Yüksek Güven" on the level's color.
func ConfidenceBadge(confidence int, level present.ConfidenceLevel) string {
	return lipgloss.NewStyle().
		Padding(0, 1).
		Bold(true).
		Background(level.Color()).
		Foreground(lipgloss.Color("#0F172A")).
		Render("%" + strconv.Itoa(confidence) + " " + level.Label())
}

// wizardSteps are the labels of the five wizard steps, in order
var wizardSteps = []string{"Yükleme", "Analiz", "Detaylar", "Fiyatlama", "Sonuç"}

// StepIndicator renders the wizard progress line
func StepIndicator(current appraisal.Step) string {
	var parts []string
	for i, name := range wizardSteps {
		step := appraisal.Step(i)
		var icon string
		var style lipgloss.Style

		switch {
		case step < current:
			icon = "[x]"
			style = lipgloss.NewStyle().Foreground(ColorSuccess)
		case step == current:
			icon = "[>]"
			style = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
		default:
			icon = "[ ]"
			style = lipgloss.NewStyle().Foreground(ColorMuted)
		}
		parts = append(parts, style.Render(icon+" "+name))

		if i < len(wizardSteps)-1 {
			color := ColorBorder
			if step < current {
				color = ColorSuccess
			}
			parts = append(parts, lipgloss.NewStyle().Foreground(color).Render(" --- "))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, parts...)
}

// Card renders a titled box
func Card(title, content string, width int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		MarginBottom(1)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)
	if width > 0 {
		cardStyle = cardStyle.Width(width)
	}

	return cardStyle.Render(titleStyle.Render(title) + "\n" + BodyStyle.Render(content))
}

// KeyHelp renders key/description pairs in order
func KeyHelp(pairs ...string) string {
	helpStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	keyStyle := lipgloss.NewStyle().Foreground(ColorSubtle).Bold(true)

	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+" "+helpStyle.Render(pairs[i+1]))
	}
	return helpStyle.Render(strings.Join(parts, "  |  "))
}
