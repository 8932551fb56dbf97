package present

import (
	"context"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"otoanaliz/gateway"
	"otoanaliz/geo"
)

// MsgLocationDenied replaces the listing when no position is available
const MsgLocationDenied = "Konum izni verilmedi."

// NearbyFinder is the nearby-services contract of the AI gateway
type NearbyFinder interface {
	FindNearbyServices(ctx context.Context, lat, lng float64, query string) string
}

// LookupNearby resolves the position and asks finder for places matching
// query. It returns Markdown and never fails.
func LookupNearby(ctx context.Context, locator geo.Locator, finder NearbyFinder, query string) string {
	if locator == nil {
		return MsgLocationDenied
	}
	pos, err := locator.Locate(ctx)
	if err != nil {
		return MsgLocationDenied
	}
	if strings.TrimSpace(query) == "" {
		query = gateway.DefaultNearbyQuery
	}
	return finder.FindNearbyServices(ctx, pos.Lat, pos.Lng, query)
}

// MarkdownStyle is the glamour style used by RenderMarkdown. A fixed style
// avoids glamour probing the terminal while Bubble Tea owns it.
var MarkdownStyle = "dark"

// RenderMarkdown renders md for a terminal of the given width, falling back
// to plain wrapped text when glamour fails.
func RenderMarkdown(md string, width int) string {
	return renderMarkdown(md, width, MarkdownStyle)
}

func renderMarkdown(md string, width int, style string) string {
	if width < 10 {
		width = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return wrap(md, width)
	}
	out, err := r.Render(md)
	if err != nil {
		return wrap(md, width)
	}
	return strings.TrimSpace(out)
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}
