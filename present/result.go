// Package present turns a finished appraisal into display values: formatted
// prices, confidence styling, the photo carousel, nearby listings and the
// exportable Markdown report.
package present

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"otoanaliz/appraisal"
)

// NoDamageText is shown when neither the photos nor the user reported damage
const NoDamageText = "Belirgin bir hasar tespit edilmedi."

// ConfidenceLevel buckets the identification confidence for styling
type ConfidenceLevel int

const (
	ConfidenceLow ConfidenceLevel = iota
	ConfidenceMedium
	ConfidenceHigh
)

// LevelFor maps a 0-100 confidence to its level.
func LevelFor(confidence int) ConfidenceLevel {
	switch {
	case confidence >= 85:
		return ConfidenceHigh
	case confidence >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (l ConfidenceLevel) String() string {
	switch l {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

// Label is the Turkish badge text
func (l ConfidenceLevel) Label() string {
	switch l {
	case ConfidenceHigh:
		return "Yüksek Güven"
	case ConfidenceMedium:
		return "Orta Güven"
	default:
		return "Düşük Güven"
	}
}

// Color is green, amber or orange.
func (l ConfidenceLevel) Color() lipgloss.Color {
	switch l {
	case ConfidenceHigh:
		return lipgloss.Color("#22C55E")
	case ConfidenceMedium:
		return lipgloss.Color("#F59E0B")
	default:
		return lipgloss.Color("#F97316")
	}
}

// Result is a completed analysis and estimate ready for display.
type Result struct {
	Analysis appraisal.VehicleAnalysis
	Estimate appraisal.PriceEstimate
	Year     int
	Km       int
	Images   []appraisal.Image
}

// NewResult combines the pieces of a finished session.
func NewResult(analysis *appraisal.VehicleAnalysis, estimate *appraisal.PriceEstimate, year, km int, images []appraisal.Image) (*Result, error) {
	if analysis == nil || estimate == nil {
		return nil, errors.New("result needs both an analysis and an estimate")
	}
	r := &Result{
		Analysis: *analysis.Clone(),
		Estimate: *estimate,
		Year:     year,
		Km:       km,
		Images:   append([]appraisal.Image(nil), images...),
	}
	r.Estimate.ComparableListingsSource = append([]string(nil), estimate.ComparableListingsSource...)
	return r, nil
}

// FromSession builds the result of a session on the result step.
func FromSession(s appraisal.Session) (*Result, error) {
	if s.Step != appraisal.StepResult {
		return nil, fmt.Errorf("%w: no result on step %s", appraisal.ErrInvalidTransition, s.Step)
	}
	return NewResult(s.Analysis, s.Estimate, s.Year, s.Km, s.Images)
}

// Title is "<make> <model>".
func (r *Result) Title() string {
	return strings.TrimSpace(r.Analysis.Make + " " + r.Analysis.Model)
}

// Confidence is the identification confidence on the 0-100 scale.
// The analysis is already normalized, so this only rounds and clamps.
func (r *Result) Confidence() int {
	c := r.Analysis.Confidence
	if math.IsNaN(c) || c <= 0 {
		return 0
	}
	return int(math.Min(math.Round(c), 100))
}

// ConfidenceLevel buckets Confidence.
func (r *Result) ConfidenceLevel() ConfidenceLevel {
	return LevelFor(r.Confidence())
}

// ExpectedPrice is the average price minus the bargaining margin.
func (r *Result) ExpectedPrice() float64 {
	return r.Estimate.ExpectedPrice()
}

// TrendLabel is the Turkish market trend label
func (r *Result) TrendLabel() string {
	return r.Estimate.MarketTrend.Label()
}

// DamageLines lists the damages, or NoDamageText when there are none.
func (r *Result) DamageLines() []string {
	if len(r.Analysis.IdentifiedDamages) == 0 {
		return []string{NoDamageText}
	}
	return append([]string(nil), r.Analysis.IdentifiedDamages...)
}

// RangeBar draws the min..max band with a marker at the average, e.g.
// "├───────●──────┤". Width counts the runes between the end caps.
func RangeBar(minPrice, avgPrice, maxPrice float64, width int) string {
	if width < 3 {
		width = 3
	}
	pos := width / 2
	if span := maxPrice - minPrice; span > 0 {
		frac := (avgPrice - minPrice) / span
		frac = math.Max(0, math.Min(1, frac))
		pos = int(math.Round(frac * float64(width-1)))
	}
	return "├" + strings.Repeat("─", pos) + "●" + strings.Repeat("─", width-1-pos) + "┤"
}

// Carousel walks the result photos with wraparound.
type Carousel struct {
	Len   int
	Index int
}

// Next moves to the next photo, wrapping to the first.
func (c *Carousel) Next() {
	if c.Len <= 0 {
		return
	}
	c.Index = (c.Index + 1) % c.Len
}

// Prev moves to the previous photo, wrapping to the last.
func (c *Carousel) Prev() {
	if c.Len <= 0 {
		return
	}
	c.Index = (c.Index - 1 + c.Len) % c.Len
}

// Position is "2 / 5", or "" for an empty carousel.
func (c Carousel) Position() string {
	if c.Len <= 0 {
		return ""
	}
	return fmt.Sprintf("%d / %d", c.Index+1, c.Len)
}
