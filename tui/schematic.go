package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"otoanaliz/appraisal"
)

// schematicLayout places the panels on a top-down view of the car, front
// first. Empty cells are zero panels.
var schematicLayout = [][]appraisal.Panel{
	{{}, appraisal.FrontBumper, {}},
	{appraisal.FLFender, appraisal.Hood, appraisal.FRFender},
	{appraisal.FLDoor, appraisal.Roof, appraisal.FRDoor},
	{appraisal.RLDoor, {}, appraisal.RRDoor},
	{appraisal.RLFender, appraisal.Trunk, appraisal.RRFender},
	{{}, appraisal.RearBumper, {}},
}

const schematicCellWidth = 19

// Schematic is the cursor over the damage grid. The statuses themselves live
// in the controller's body map.
type Schematic struct {
	row, col int
}

// NewSchematic starts on the hood
func NewSchematic() Schematic {
	return Schematic{row: 1, col: 1}
}

// Selected is the panel under the cursor
func (s Schematic) Selected() appraisal.Panel {
	return schematicLayout[s.row][s.col]
}

// Move shifts the cursor by one cell, skipping empty cells. A move that
// would leave the grid is ignored.
func (s Schematic) Move(dRow, dCol int) Schematic {
	r, c := s.row, s.col
	for {
		r, c = r+dRow, c+dCol
		if r < 0 || r >= len(schematicLayout) || c < 0 || c >= len(schematicLayout[r]) {
			break
		}
		if schematicLayout[r][c].Key != "" {
			return Schematic{row: r, col: c}
		}
		// vertical moves through an empty cell fall back to the centre column
		if dCol == 0 && schematicLayout[r][1].Key != "" {
			return Schematic{row: r, col: 1}
		}
	}
	return s
}

// HandleKey moves the cursor for arrow and vim keys and reports whether the
// key asked for the selected panel to be toggled.
func (s Schematic) HandleKey(key string) (Schematic, bool) {
	switch key {
	case "up", "k":
		return s.Move(-1, 0), false
	case "down", "j":
		return s.Move(1, 0), false
	case "left", "h":
		return s.Move(0, -1), false
	case "right", "l":
		return s.Move(0, 1), false
	case " ", "enter":
		return s, true
	}
	return s, false
}

// View draws the grid colored by parts. The cursor is shown when focused.
func (s Schematic) View(parts appraisal.BodyPartsMap, focused bool) string {
	var rows []string
	for r, line := range schematicLayout {
		var cells []string
		for c, p := range line {
			cells = append(cells, renderPanelCell(p, parts, focused && r == s.row && c == s.col))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderPanelCell(p appraisal.Panel, parts appraisal.BodyPartsMap, selected bool) string {
	style := lipgloss.NewStyle().
		Width(schematicCellWidth).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder())

	if p.Key == "" {
		return style.Border(lipgloss.HiddenBorder()).Render("")
	}

	status := parts.Status(p)
	color := PanelColor(status)
	label := p.Name
	if code := status.Code(); code != "" {
		label = code + " · " + p.Name
	}
	style = style.BorderForeground(color).Foreground(color)
	if selected {
		style = style.BorderForeground(ColorPrimary).Bold(true).Border(lipgloss.DoubleBorder())
	}
	return style.Render(truncate(label, schematicCellWidth))
}

// SchematicLegend explains the status colors and codes
func SchematicLegend() string {
	var items []string
	for _, st := range []appraisal.PartStatus{
		appraisal.StatusOriginal,
		appraisal.StatusLocal,
		appraisal.StatusPainted,
		appraisal.StatusChanged,
	} {
		label := st.Label()
		if code := st.Code(); code != "" {
			label = code + " " + label
		}
		items = append(items, lipgloss.NewStyle().Foreground(PanelColor(st)).Render("■ "+label))
	}
	return strings.Join(items, "   ")
}

// DamagePreview lists the schematic's damage report, or the clean notice.
func DamagePreview(parts appraisal.BodyPartsMap) string {
	report := parts.DamageReport()
	if len(report) == 0 {
		return SuccessStyle.Render("Hatasız / Orijinal seçildi.")
	}
	var b strings.Builder
	for _, line := range report {
		b.WriteString(WarningStyle.Render("• "+line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
