package appraisal

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Defaults used when the analysis is synthesized from the manual form.
const (
	UnknownValue        = "Bilinmiyor"
	UnspecifiedColor    = "Belirtilmedi"
	CleanCondition      = "Temiz"
	UserDamageCondition = "Kullanıcı tarafından belirtilen hasarlar mevcut."
)

// Appraiser is the part of the AI gateway the wizard depends on.
type Appraiser interface {
	AnalyzeImages(ctx context.Context, images []Image) (*VehicleAnalysis, error)
	EstimatePrice(ctx context.Context, req EstimateRequest) (*PriceEstimate, error)
}

// Ticket fences an in-flight request. A response is applied only if its
// ticket still matches the controller's generation.
type Ticket struct {
	gen uint64
}

// Inputs are the raw text fields of the forms.
type Inputs struct {
	Make  string
	Model string
	Year  string
	Km    string
}

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	Session Session
	Mode    EntryMode
	Inputs  Inputs
	Parts   BodyPartsMap
}

// Controller owns the wizard state machine.
type Controller struct {
	mu        sync.Mutex
	appraiser Appraiser
	session   Session
	mode      EntryMode
	inputs    Inputs
	parts     BodyPartsMap
	gen       uint64
}

// NewController creates a controller in its initial state
func NewController(appraiser Appraiser) *Controller {
	return &Controller{
		appraiser: appraiser,
		session:   Session{Step: StepUpload},
		parts:     NewBodyPartsMap(),
	}
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Session: c.session.clone(),
		Mode:    c.mode,
		Inputs:  c.inputs,
		Parts:   c.parts.Clone(),
	}
}

// Step returns the active wizard step
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Step
}

// Mode returns the entry mode
func (c *Controller) Mode() EntryMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SelectMode fixes the entry mode. It can only be chosen once per session.
func (c *Controller) SelectMode(mode EntryMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mode == ModeNone || c.mode != ModeNone || c.session.Step != StepUpload {
		return fmt.Errorf("%w: select mode %s", ErrInvalidTransition, mode)
	}
	c.mode = mode
	return nil
}

// makeLocked reports whether make/model are read-only: in smart mode the
// AI's identification is kept once it exists.
func (c *Controller) makeLocked() bool {
	return c.mode == ModeSmart && c.session.Analysis != nil
}

// SetMake updates the make field. It returns false when the field is locked.
func (c *Controller) SetMake(v string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.makeLocked() {
		return false
	}
	c.inputs.Make = v
	return true
}

// SetModel updates the model field. It returns false when the field is locked.
func (c *Controller) SetModel(v string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.makeLocked() {
		return false
	}
	c.inputs.Model = v
	return true
}

func (c *Controller) SetYear(v string) {
	c.mu.Lock()
	c.inputs.Year = v
	c.mu.Unlock()
}

func (c *Controller) SetKm(v string) {
	c.mu.Lock()
	c.inputs.Km = v
	c.mu.Unlock()
}

// TogglePanel cycles one body panel. Only the manual workflow edits the schematic.
func (c *Controller) TogglePanel(p Panel) (PartStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeManual {
		return StatusOriginal, fmt.Errorf("%w: schematic is only editable in manual mode", ErrInvalidTransition)
	}
	if c.session.Step != StepUpload && c.session.Step != StepDetailsInput {
		return c.parts.Status(p), fmt.Errorf("%w: schematic locked in step %s", ErrInvalidTransition, c.session.Step)
	}
	return c.parts.Toggle(p), nil
}

// SetPanel puts one body panel in status s, with the same restrictions as TogglePanel.
func (c *Controller) SetPanel(p Panel, s PartStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeManual {
		return fmt.Errorf("%w: schematic is only editable in manual mode", ErrInvalidTransition)
	}
	if c.session.Step != StepUpload && c.session.Step != StepDetailsInput {
		return fmt.Errorf("%w: schematic locked in step %s", ErrInvalidTransition, c.session.Step)
	}
	if _, ok := c.parts[p.Key]; !ok {
		return fmt.Errorf("unknown panel %q", p.Key)
	}
	c.parts[p.Key] = s
	return nil
}

// BeginAnalysis moves upload → analyzing_image and returns the ticket of the request.
func (c *Controller) BeginAnalysis(images []Image) (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeNone || c.session.Step != StepUpload {
		return Ticket{}, fmt.Errorf("%w: analyze from %s", ErrInvalidTransition, c.session.Step)
	}
	if len(images) == 0 {
		return Ticket{}, ErrNoImages
	}
	c.gen++
	c.session.Step = StepAnalyzingImage
	c.session.Images = append([]Image(nil), images...)
	c.session.Error = ""
	return Ticket{gen: c.gen}, nil
}

// FinishAnalysis applies the outcome of an image analysis. It returns false
// when the ticket is stale and the outcome was dropped.
func (c *Controller) FinishAnalysis(t Ticket, analysis *VehicleAnalysis, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.gen != c.gen || c.session.Step != StepAnalyzingImage {
		return false
	}
	if err == nil && analysis == nil {
		err = fmt.Errorf("%w: empty analysis", ErrMalformedResponse)
	}
	if err != nil {
		c.session.Step = StepUpload
		c.session.Error = err.Error()
		return true
	}

	a := analysis.Clone()
	a.Normalize()
	switch c.mode {
	case ModeManual:
		if s := strings.TrimSpace(c.inputs.Make); s != "" {
			a.Make = s
		}
		if s := strings.TrimSpace(c.inputs.Model); s != "" {
			a.Model = s
		}
	case ModeSmart:
		c.inputs.Make = a.Make
		c.inputs.Model = a.Model
	}
	c.session.Analysis = a
	c.session.Step = StepDetailsInput
	return true
}

// CanSubmit reports whether the price estimation can be started.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSubmitLocked() == nil
}

func (c *Controller) canSubmitLocked() error {
	switch {
	case c.session.Step == StepDetailsInput:
	case c.session.Step == StepUpload && c.mode == ModeManual:
		if strings.TrimSpace(c.inputs.Make) == "" || strings.TrimSpace(c.inputs.Model) == "" {
			return fmt.Errorf("%w: make and model are required", ErrMissingDetails)
		}
	default:
		return fmt.Errorf("%w: estimate from %s", ErrInvalidTransition, c.session.Step)
	}
	if strings.TrimSpace(c.inputs.Year) == "" || strings.TrimSpace(c.inputs.Km) == "" {
		return fmt.Errorf("%w: year and mileage are required", ErrMissingDetails)
	}
	return nil
}

// ManualDamages is the damage report derived from the schematic.
func (c *Controller) ManualDamages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parts.DamageReport()
}

// BeginEstimate validates the details, builds the final analysis and moves
// to calculating_price.
func (c *Controller) BeginEstimate() (Ticket, EstimateRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.canSubmitLocked(); err != nil {
		return Ticket{}, EstimateRequest{}, err
	}
	year, err := ParseYear(c.inputs.Year)
	if err != nil {
		return Ticket{}, EstimateRequest{}, err
	}
	km, err := ParseMileage(c.inputs.Km)
	if err != nil {
		return Ticket{}, EstimateRequest{}, err
	}

	final := c.finalAnalysisLocked()
	c.gen++
	c.session.Step = StepCalculatingPrice
	c.session.Year = year
	c.session.Km = km
	c.session.Analysis = final
	c.session.Error = ""
	return Ticket{gen: c.gen}, EstimateRequest{Analysis: *final.Clone(), Year: year, Km: km}, nil
}

func (c *Controller) finalAnalysisLocked() *VehicleAnalysis {
	damages := []string{}
	if c.session.Analysis != nil && c.session.Analysis.IdentifiedDamages != nil {
		damages = append(damages, c.session.Analysis.IdentifiedDamages...)
	}
	if c.mode == ModeManual {
		if manual := c.parts.DamageReport(); len(manual) > 0 {
			damages = manual
		}
	}

	var final *VehicleAnalysis
	if c.session.Analysis != nil {
		final = c.session.Analysis.Clone()
	} else {
		condition := CleanCondition
		if len(damages) > 0 {
			condition = UserDamageCondition
		}
		final = &VehicleAnalysis{
			Color:           UnspecifiedColor,
			VisualCondition: condition,
			IsRare:          false,
			Confidence:      1.0,
		}
		final.Confidence = float64(NormalizeConfidence(final.Confidence))
	}
	final.Make = firstNonEmpty(c.inputs.Make, final.Make, UnknownValue)
	final.Model = firstNonEmpty(c.inputs.Model, final.Model, UnknownValue)
	final.IdentifiedDamages = damages
	return final
}

// FinishEstimate applies the outcome of a price estimation. It returns false
// when the ticket is stale and the outcome was dropped.
func (c *Controller) FinishEstimate(t Ticket, estimate *PriceEstimate, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.gen != c.gen || c.session.Step != StepCalculatingPrice {
		return false
	}
	if err == nil && estimate == nil {
		err = fmt.Errorf("%w: empty estimate", ErrMalformedResponse)
	}
	if err != nil {
		c.session.Step = StepDetailsInput
		c.session.Error = err.Error()
		return true
	}
	e := *estimate
	c.session.Estimate = &e
	c.session.Step = StepResult
	return true
}

// RunAnalysis calls the appraiser for an already begun analysis and applies the result.
func (c *Controller) RunAnalysis(ctx context.Context, t Ticket, images []Image) (bool, error) {
	analysis, err := c.appraiser.AnalyzeImages(ctx, images)
	return c.FinishAnalysis(t, analysis, err), err
}

// RunEstimate calls the appraiser for an already begun estimation and applies the result.
func (c *Controller) RunEstimate(ctx context.Context, t Ticket, req EstimateRequest) (bool, error) {
	estimate, err := c.appraiser.EstimatePrice(ctx, req)
	return c.FinishEstimate(t, estimate, err), err
}

// Analyze runs upload → analyzing_image → details_input (or back to upload) synchronously.
func (c *Controller) Analyze(ctx context.Context, images []Image) error {
	t, err := c.BeginAnalysis(images)
	if err != nil {
		return err
	}
	applied, err := c.RunAnalysis(ctx, t, images)
	if !applied && err == nil {
		return ErrStaleTicket
	}
	return err
}

// Estimate runs details_input → calculating_price → result (or back) synchronously.
func (c *Controller) Estimate(ctx context.Context) error {
	t, req, err := c.BeginEstimate()
	if err != nil {
		return err
	}
	applied, err := c.RunEstimate(ctx, t, req)
	if !applied && err == nil {
		return ErrStaleTicket
	}
	return err
}

// Reset returns everything to the initial state and invalidates in-flight requests.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.session = Session{Step: StepUpload}
	c.mode = ModeNone
	c.inputs = Inputs{}
	c.parts.Reset()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
