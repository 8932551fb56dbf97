// Package gemini provides a client for the Google Gemini API: multimodal
// generateContent calls with structured output and grounding tools, and a
// Live websocket session for streamed text chat.
package gemini

import (
	"context"
	"strings"
	"time"
)

// Model constants for Gemini models
const (
	// ModelGemini3Pro is the most capable multimodal model
	ModelGemini3Pro = "gemini-3-pro-preview"
	// ModelGemini3Flash is the fast model used for search-grounded answers
	ModelGemini3Flash = "gemini-3-flash-preview"
	// ModelGemini25Flash supports the Google Maps grounding tool
	ModelGemini25Flash = "gemini-2.5-flash"
	// ModelLive is the default model for Live sessions
	ModelLive = "gemini-live-2.5-flash-preview"
)

// ImageFile is an image loaded from disk
type ImageFile struct {
	Path     string
	Filename string
	Size     int64
	MIMEType string
	Data     []byte
}

// APIError represents an error from the Gemini API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// GenerateContentRequest is the request structure for the Gemini API
type GenerateContentRequest struct {
	Contents          []*Content        `json:"contents"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []*SafetySetting  `json:"safetySettings,omitempty"`
	SystemInstruction *Content          `json:"systemInstruction,omitempty"`
	Tools             []*Tool           `json:"tools,omitempty"`
	ToolConfig        *ToolConfig       `json:"toolConfig,omitempty"`
}

// Content represents a content block in the API
type Content struct {
	Role  string  `json:"role,omitempty"`
	Parts []*Part `json:"parts"`
}

// Part represents a part of content (text or inline data)
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData represents binary data (images) inline
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // Base64 encoded
}

// TextContent builds a single-part text content with the given role
func TextContent(role, text string) *Content {
	return &Content{Role: role, Parts: []*Part{{Text: text}}}
}

// GenerationConfig contains generation parameters
type GenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

// Schema types understood by responseSchema
const (
	TypeObject  = "OBJECT"
	TypeArray   = "ARRAY"
	TypeString  = "STRING"
	TypeNumber  = "NUMBER"
	TypeInteger = "INTEGER"
	TypeBoolean = "BOOLEAN"
)

// Schema is the OpenAPI subset used to constrain JSON output
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
}

// Tool enables a grounding tool for one request
type Tool struct {
	GoogleSearch *GoogleSearch `json:"googleSearch,omitempty"`
	GoogleMaps   *GoogleMaps   `json:"googleMaps,omitempty"`
}

// GoogleSearch grounds answers on web search results
type GoogleSearch struct{}

// GoogleMaps grounds answers on Google Maps places
type GoogleMaps struct{}

// ToolConfig carries per-request tool settings
type ToolConfig struct {
	RetrievalConfig *RetrievalConfig `json:"retrievalConfig,omitempty"`
}

// RetrievalConfig biases retrieval towards a location
type RetrievalConfig struct {
	LatLng *LatLng `json:"latLng,omitempty"`
}

// LatLng is a WGS84 coordinate
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SafetySetting configures content safety filters
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GenerateContentResponse is the response from the Gemini API
type GenerateContentResponse struct {
	Candidates     []*Candidate    `json:"candidates"`
	UsageMetadata  *UsageMetadata  `json:"usageMetadata,omitempty"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Candidate represents a generated response candidate
type Candidate struct {
	Content           *Content           `json:"content"`
	FinishReason      string             `json:"finishReason"`
	SafetyRatings     []*SafetyRating    `json:"safetyRatings,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// SafetyRating represents a content safety rating
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

// PromptFeedback is set when the prompt itself was blocked
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// GroundingMetadata lists the sources a grounded answer used
type GroundingMetadata struct {
	WebSearchQueries []string          `json:"webSearchQueries,omitempty"`
	GroundingChunks  []*GroundingChunk `json:"groundingChunks,omitempty"`
}

// GroundingChunk is one source. Exactly one field is set.
type GroundingChunk struct {
	Web  *WebChunk  `json:"web,omitempty"`
	Maps *MapsChunk `json:"maps,omitempty"`
}

// WebChunk is a web search source
type WebChunk struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// MapsChunk is a Google Maps place source
type MapsChunk struct {
	URI     string `json:"uri"`
	Title   string `json:"title,omitempty"`
	PlaceID string `json:"placeId,omitempty"`
}

// UsageMetadata contains token usage information
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// Text concatenates the text parts of the first candidate. It returns ""
// when there is no candidate or no text.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	c := r.Candidates[0]
	if c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// WebSources returns the distinct web URIs from the grounding metadata of the
// first candidate, in order of appearance.
func (r *GenerateContentResponse) WebSources() []string {
	if r == nil || len(r.Candidates) == 0 || r.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, chunk := range r.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		out = append(out, chunk.Web.URI)
	}
	return out
}

// ============================================
// Exchange observation for UI transparency
// ============================================

// Phase is the stage of an observed exchange
type Phase int

const (
	PhaseRequest Phase = iota
	PhaseResponse
	PhaseError
)

// String returns a human-readable phase name
func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "request"
	case PhaseResponse:
		return "response"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Exchange describes one side of an API round trip
type Exchange struct {
	Phase Phase

	// Operation is the label attached to the context with WithOperation
	Operation string

	Model string
	Time  time.Time

	// Request is set for PhaseRequest
	Request *RequestInfo

	// Response is set for PhaseResponse and PhaseError
	Response *ResponseInfo
}

// RequestInfo contains transparency details about a request
type RequestInfo struct {
	// Endpoint URL (no API key)
	Endpoint string

	Method string

	// ImageCount is the number of inline images
	ImageCount int

	// TotalDataSize is the request body size in bytes
	TotalDataSize int64

	// PromptPreview shows the first characters of the last text part
	PromptPreview string

	// Tools lists enabled grounding tools
	Tools []string
}

// ResponseInfo contains transparency details about a response
type ResponseInfo struct {
	StatusCode int

	Latency time.Duration

	TokensInput  int
	TokensOutput int
	TokensTotal  int

	// ContentPreview shows the first characters of the response text
	ContentPreview string

	ErrorMessage string
}

// Observer receives exchanges. It is called synchronously from the request
// goroutine and must not block.
type Observer func(Exchange)

type operationKey struct{}

// WithOperation labels all requests made with ctx
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFrom returns the label set by WithOperation
func OperationFrom(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}
