// Package gateway wraps the four Gemini calls the appraisal app makes:
// image analysis, price estimation, nearby services and expert chat.
//
// Analysis and estimation fail with a *Error whose message is a fixed
// Turkish sentence fit for display. Nearby lookup and chat never fail; they
// substitute a fixed fallback string instead.
package gateway

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"otoanaliz/gemini"
)

// Messages shown to the user.
const (
	MsgAnalyzeFailed     = "Araç fotoğrafları analiz edilemedi."
	MsgPriceFailed       = "Fiyat analizi yapılamadı."
	MsgNoNearby          = "Yakınlarda servis bulunamadı."
	MsgNearbyUnavailable = "Harita servisine şu an ulaşılamıyor."
	MsgChatEmpty         = "Anlayamadım."
	MsgChatFailed        = "Üzgünüm, şu an cevap veremiyorum."
)

// Operation labels attached to requests for logs and the activity feed.
const (
	OpAnalyze = "analyze"
	OpPrice   = "price"
	OpNearby  = "nearby"
	OpChat    = "chat"
)

// ChatTransport selects how chat turns reach the model
type ChatTransport string

const (
	// TransportREST sends the whole history with generateContent
	TransportREST ChatTransport = "rest"
	// TransportLive replays the history over a Live websocket session
	TransportLive ChatTransport = "live"
)

// ParseChatTransport maps a config value to a transport; unknown values are an error.
func ParseChatTransport(s string) (ChatTransport, error) {
	switch ChatTransport(strings.ToLower(strings.TrimSpace(s))) {
	case "", TransportREST:
		return TransportREST, nil
	case TransportLive:
		return TransportLive, nil
	}
	return "", fmt.Errorf("chat transport %q: must be rest or live", s)
}

// Models names the model used for each operation
type Models struct {
	Vision string
	Price  string
	Maps   string
	Chat   string
	Live   string
}

// DefaultModels returns the models each operation is tuned for
func DefaultModels() Models {
	return Models{
		Vision: gemini.ModelGemini3Pro,
		Price:  gemini.ModelGemini3Flash,
		Maps:   gemini.ModelGemini25Flash,
		Chat:   gemini.ModelGemini3Pro,
		Live:   gemini.ModelLive,
	}
}

func (m Models) withDefaults() Models {
	d := DefaultModels()
	if m.Vision == "" {
		m.Vision = d.Vision
	}
	if m.Price == "" {
		m.Price = d.Price
	}
	if m.Maps == "" {
		m.Maps = d.Maps
	}
	if m.Chat == "" {
		m.Chat = d.Chat
	}
	if m.Live == "" {
		m.Live = d.Live
	}
	return m
}

// Options configures a Gateway
type Options struct {
	Models        Models
	Logger        *slog.Logger
	ChatTransport ChatTransport
}

// Gateway is the AI gateway
type Gateway struct {
	client    *gemini.Client
	models    Models
	logger    *slog.Logger
	transport ChatTransport
}

// New creates a gateway on top of client
func New(client *gemini.Client, opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	transport := opts.ChatTransport
	if transport == "" {
		transport = TransportREST
	}
	return &Gateway{
		client:    client,
		models:    opts.Models.withDefaults(),
		logger:    logger.With("component", "gateway"),
		transport: transport,
	}
}

// Models returns the effective model names
func (g *Gateway) Models() Models {
	return g.models
}

// Kind classifies a gateway failure
type Kind int

const (
	// KindTransport is a network or API status failure
	KindTransport Kind = iota + 1
	// KindEmpty is a response without text
	KindEmpty
	// KindDecode is a response that is not the requested JSON
	KindDecode
	// KindMalformed is JSON that lacks required fields or has invalid values
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindEmpty:
		return "empty"
	case KindDecode:
		return "decode"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ErrEmptyResponse is wrapped by KindEmpty errors
var ErrEmptyResponse = errors.New("no response from AI")

// Error is a failed gateway call. Error() returns the display message only;
// the cause is available through Unwrap.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (g *Gateway) fail(op, model, message string, kind Kind, err error) *Error {
	g.logger.Error("ai call failed", "op", op, "model", model, "kind", kind.String(), "err", err)
	return &Error{Op: op, Kind: kind, Message: message, Err: err}
}
