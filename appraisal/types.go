// Package appraisal holds the vehicle appraisal domain: the wizard session,
// the body panel damage schematic and the flow controller that drives both.
package appraisal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
)

// Step is a stage of the appraisal wizard.
type Step int

const (
	StepUpload Step = iota
	StepAnalyzingImage
	StepDetailsInput
	StepCalculatingPrice
	StepResult
)

// String returns the wire id of the step
func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepAnalyzingImage:
		return "analyzing_image"
	case StepDetailsInput:
		return "details_input"
	case StepCalculatingPrice:
		return "calculating_price"
	case StepResult:
		return "result"
	default:
		return "unknown"
	}
}

// EntryMode is the workflow the user picked on the first screen.
type EntryMode int

const (
	// ModeNone means no workflow has been picked yet
	ModeNone EntryMode = iota
	// ModeSmart is the photo-first, AI-guided workflow
	ModeSmart
	// ModeManual is the details-first workflow where photos are optional
	ModeManual
)

func (m EntryMode) String() string {
	switch m {
	case ModeSmart:
		return "smart"
	case ModeManual:
		return "manual"
	default:
		return "none"
	}
}

// MarketTrend is the qualitative direction of prices.
type MarketTrend string

const (
	TrendRising  MarketTrend = "rising"
	TrendStable  MarketTrend = "stable"
	TrendFalling MarketTrend = "falling"
)

// Valid reports whether t is one of the three known trends
func (t MarketTrend) Valid() bool {
	switch t {
	case TrendRising, TrendStable, TrendFalling:
		return true
	}
	return false
}

// Label returns the Turkish display label
func (t MarketTrend) Label() string {
	switch t {
	case TrendRising:
		return "Yükselişte"
	case TrendFalling:
		return "Düşüşte"
	default:
		return "Stabil"
	}
}

// Image is an encoded photo ready to be sent upstream.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// VehicleAnalysis is what the vision model (or the manual form) knows about the car.
type VehicleAnalysis struct {
	Make              string   `json:"make"`
	Model             string   `json:"model"`
	Generation        string   `json:"generation,omitempty"`
	Color             string   `json:"color"`
	VisualCondition   string   `json:"visualCondition"`
	IdentifiedDamages []string `json:"identifiedDamages"`
	IsRare            bool     `json:"isRare"`
	Confidence        float64  `json:"confidence"`
}

// Normalize replaces a nil damage list with an empty one and puts the
// confidence on the 0-100 scale.
func (a *VehicleAnalysis) Normalize() {
	if a.IdentifiedDamages == nil {
		a.IdentifiedDamages = []string{}
	}
	a.Confidence = float64(NormalizeConfidence(a.Confidence))
}

// Validate checks the record shape after decoding.
func (a *VehicleAnalysis) Validate() error {
	var errs []error
	if a.Make == "" {
		errs = append(errs, errors.New("make is empty"))
	}
	if a.Model == "" {
		errs = append(errs, errors.New("model is empty"))
	}
	if a.VisualCondition == "" {
		errs = append(errs, errors.New("visualCondition is empty"))
	}
	if math.IsNaN(a.Confidence) || math.IsInf(a.Confidence, 0) || a.Confidence < 0 {
		errs = append(errs, fmt.Errorf("confidence %v out of range", a.Confidence))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: vehicle analysis: %w", ErrMalformedResponse, errors.Join(errs...))
	}
	return nil
}

// Clone returns a deep copy
func (a *VehicleAnalysis) Clone() *VehicleAnalysis {
	if a == nil {
		return nil
	}
	c := *a
	if a.IdentifiedDamages != nil {
		c.IdentifiedDamages = append([]string{}, a.IdentifiedDamages...)
	}
	return &c
}

// PriceEstimate is the search-grounded market valuation.
type PriceEstimate struct {
	MinPrice                 float64     `json:"minPrice"`
	MaxPrice                 float64     `json:"maxPrice"`
	AvgPrice                 float64     `json:"avgPrice"`
	Currency                 string      `json:"currency"`
	BargainingMargin         float64     `json:"bargainingMargin"`
	Reasoning                string      `json:"reasoning"`
	MarketTrend              MarketTrend `json:"marketTrend"`
	ComparableListingsSource []string    `json:"comparableListingsSource,omitempty"`
}

// ExpectedPrice is the likely transaction price after bargaining.
func (e *PriceEstimate) ExpectedPrice() float64 {
	return e.AvgPrice - e.BargainingMargin
}

// Validate checks the record shape after decoding.
func (e *PriceEstimate) Validate() error {
	var errs []error
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"minPrice", e.MinPrice},
		{"maxPrice", e.MaxPrice},
		{"avgPrice", e.AvgPrice},
		{"bargainingMargin", e.BargainingMargin},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			errs = append(errs, fmt.Errorf("%s %v out of range", f.name, f.v))
		}
	}
	if e.MinPrice > e.MaxPrice {
		errs = append(errs, fmt.Errorf("minPrice %v above maxPrice %v", e.MinPrice, e.MaxPrice))
	}
	if e.AvgPrice < e.MinPrice || e.AvgPrice > e.MaxPrice {
		errs = append(errs, fmt.Errorf("avgPrice %v outside [%v, %v]", e.AvgPrice, e.MinPrice, e.MaxPrice))
	}
	if e.Currency == "" {
		errs = append(errs, errors.New("currency is empty"))
	}
	if !e.MarketTrend.Valid() {
		errs = append(errs, fmt.Errorf("unknown marketTrend %q", e.MarketTrend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: price estimate: %w", ErrMalformedResponse, errors.Join(errs...))
	}
	return nil
}

// EstimateRequest is the input of a price estimation.
type EstimateRequest struct {
	Analysis VehicleAnalysis
	Year     int
	Km       int
}

// Session is the state of one appraisal run.
type Session struct {
	Step     Step
	Images   []Image
	Analysis *VehicleAnalysis
	Year     int
	Km       int
	Estimate *PriceEstimate
	Error    string
}

func (s Session) clone() Session {
	c := s
	c.Images = append([]Image(nil), s.Images...)
	c.Analysis = s.Analysis.Clone()
	if s.Estimate != nil {
		e := *s.Estimate
		if s.Estimate.ComparableListingsSource != nil {
			e.ComparableListingsSource = append([]string{}, s.Estimate.ComparableListingsSource...)
		}
		c.Estimate = &e
	}
	return c
}

var (
	// ErrMalformedResponse marks an upstream payload that decoded but does not have the expected shape
	ErrMalformedResponse = errors.New("malformed upstream response")
	// ErrInvalidTransition is returned when an operation is not allowed from the current step
	ErrInvalidTransition = errors.New("invalid wizard transition")
	// ErrMissingDetails is returned when a submit lacks required inputs
	ErrMissingDetails = errors.New("missing required details")
	// ErrNoImages is returned when an analysis is started without photos
	ErrNoImages = errors.New("no images selected")
	// ErrStaleTicket is returned when a response arrived after a reset or a newer request
	ErrStaleTicket = errors.New("response superseded")
)
