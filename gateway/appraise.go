package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"otoanaliz/appraisal"
	"otoanaliz/gemini"
)

// analysisWire mirrors the analysis JSON with pointers so that missing
// required fields can be told apart from zero values.
type analysisWire struct {
	Make              *string   `json:"make"`
	Model             *string   `json:"model"`
	Generation        *string   `json:"generation"`
	Color             *string   `json:"color"`
	VisualCondition   *string   `json:"visualCondition"`
	IdentifiedDamages *[]string `json:"identifiedDamages"`
	IsRare            *bool     `json:"isRare"`
	Confidence        *float64  `json:"confidence"`
}

type priceWire struct {
	MinPrice                 *float64 `json:"minPrice"`
	MaxPrice                 *float64 `json:"maxPrice"`
	AvgPrice                 *float64 `json:"avgPrice"`
	Currency                 *string  `json:"currency"`
	BargainingMargin         *float64 `json:"bargainingMargin"`
	Reasoning                *string  `json:"reasoning"`
	MarketTrend              *string  `json:"marketTrend"`
	ComparableListingsSource []string `json:"comparableListingsSource"`
}

// field pairs a JSON field name with whether it was present
type field struct {
	name    string
	present bool
}

// missing reports absent fields in the order given.
func missing(fields ...field) error {
	var errs []error
	for _, f := range fields {
		if !f.present {
			errs = append(errs, fmt.Errorf("%s is missing", f.name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", appraisal.ErrMalformedResponse, errors.Join(errs...))
}

func (w *analysisWire) toAnalysis() (*appraisal.VehicleAnalysis, error) {
	if err := missing(
		field{"make", w.Make != nil},
		field{"model", w.Model != nil},
		field{"visualCondition", w.VisualCondition != nil},
		field{"identifiedDamages", w.IdentifiedDamages != nil},
		field{"isRare", w.IsRare != nil},
		field{"confidence", w.Confidence != nil},
	); err != nil {
		return nil, err
	}
	a := &appraisal.VehicleAnalysis{
		Make:              *w.Make,
		Model:             *w.Model,
		VisualCondition:   *w.VisualCondition,
		IdentifiedDamages: append([]string{}, (*w.IdentifiedDamages)...),
		IsRare:            *w.IsRare,
		Confidence:        *w.Confidence,
	}
	if w.Generation != nil {
		a.Generation = *w.Generation
	}
	if w.Color != nil {
		a.Color = *w.Color
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (w *priceWire) toEstimate() (*appraisal.PriceEstimate, error) {
	if err := missing(
		field{"minPrice", w.MinPrice != nil},
		field{"maxPrice", w.MaxPrice != nil},
		field{"avgPrice", w.AvgPrice != nil},
		field{"currency", w.Currency != nil},
		field{"bargainingMargin", w.BargainingMargin != nil},
		field{"reasoning", w.Reasoning != nil},
		field{"marketTrend", w.MarketTrend != nil},
	); err != nil {
		return nil, err
	}
	e := &appraisal.PriceEstimate{
		MinPrice:                 *w.MinPrice,
		MaxPrice:                 *w.MaxPrice,
		AvgPrice:                 *w.AvgPrice,
		Currency:                 *w.Currency,
		BargainingMargin:         *w.BargainingMargin,
		Reasoning:                *w.Reasoning,
		MarketTrend:              appraisal.MarketTrend(*w.MarketTrend),
		ComparableListingsSource: w.ComparableListingsSource,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// AnalyzeImages identifies the vehicle and its visible condition from photos.
func (g *Gateway) AnalyzeImages(ctx context.Context, images []appraisal.Image) (*appraisal.VehicleAnalysis, error) {
	model := g.models.Vision
	if len(images) == 0 {
		return nil, g.fail(OpAnalyze, model, MsgAnalyzeFailed, KindEmpty, appraisal.ErrNoImages)
	}

	parts := make([]*gemini.Part, 0, len(images)+1)
	for _, img := range images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, gemini.InlinePart(mime, img.Data))
	}
	parts = append(parts, &gemini.Part{Text: analyzePrompt})

	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{{Role: "user", Parts: parts}},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   analysisSchema,
		},
	}

	g.logger.Info("analyzing images", "model", model, "count", len(images))
	var wire analysisWire
	if err := g.generateJSON(gemini.WithOperation(ctx, OpAnalyze), OpAnalyze, model, MsgAnalyzeFailed, req, &wire, nil); err != nil {
		return nil, err
	}
	a, err := wire.toAnalysis()
	if err != nil {
		return nil, g.fail(OpAnalyze, model, MsgAnalyzeFailed, KindMalformed, err)
	}
	return a, nil
}

// EstimatePrice returns a search-grounded valuation for the Turkish market.
func (g *Gateway) EstimatePrice(ctx context.Context, r appraisal.EstimateRequest) (*appraisal.PriceEstimate, error) {
	model := g.models.Price
	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{gemini.TextContent("user", pricePrompt(r))},
		GenerationConfig: &gemini.GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   priceSchema,
		},
		Tools: []*gemini.Tool{{GoogleSearch: &gemini.GoogleSearch{}}},
	}

	g.logger.Info("estimating price",
		"model", model,
		"make", r.Analysis.Make,
		"vehicle_model", r.Analysis.Model,
		"year", r.Year,
		"km", r.Km)

	var wire priceWire
	var sources []string
	if err := g.generateJSON(gemini.WithOperation(ctx, OpPrice), OpPrice, model, MsgPriceFailed, req, &wire, &sources); err != nil {
		return nil, err
	}
	e, err := wire.toEstimate()
	if err != nil {
		return nil, g.fail(OpPrice, model, MsgPriceFailed, KindMalformed, err)
	}
	if len(e.ComparableListingsSource) == 0 {
		e.ComparableListingsSource = sources
	}
	return e, nil
}

// generateJSON runs req and decodes the cleaned response text into out.
// When sources is not nil it receives the grounding web URIs.
func (g *Gateway) generateJSON(ctx context.Context, op, model, message string, req *gemini.GenerateContentRequest, out any, sources *[]string) error {
	resp, err := g.client.GenerateContent(ctx, model, req)
	if err != nil {
		return g.fail(op, model, message, KindTransport, err)
	}
	text := gemini.CleanJSON(resp.Text())
	if text == "" {
		return g.fail(op, model, message, KindEmpty, ErrEmptyResponse)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return g.fail(op, model, message, KindDecode, fmt.Errorf("decode response: %w", err))
	}
	if sources != nil {
		*sources = resp.WebSources()
	}
	return nil
}
