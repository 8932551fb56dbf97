package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// LiveConfig configures a Live session
type LiveConfig struct {
	// Model is the bare model id; the "models/" prefix is added when missing
	Model string

	// SystemInstruction is sent once in the setup message
	SystemInstruction string
}

// LiveSession is a text-only BidiGenerateContent websocket session
type LiveSession struct {
	conn   *websocket.Conn
	model  string
	client *Client
	mu     sync.Mutex
	closed bool
}

type liveSetupMessage struct {
	Setup liveSetup `json:"setup"`
}

type liveSetup struct {
	Model             string               `json:"model"`
	GenerationConfig  liveGenerationConfig `json:"generationConfig"`
	SystemInstruction *Content             `json:"systemInstruction,omitempty"`
}

type liveGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
}

type liveClientContentMessage struct {
	ClientContent liveClientContent `json:"clientContent"`
}

type liveClientContent struct {
	Turns        []*Content `json:"turns"`
	TurnComplete bool       `json:"turnComplete"`
}

type liveServerMessage struct {
	SetupComplete *struct{}          `json:"setupComplete,omitempty"`
	ServerContent *liveServerContent `json:"serverContent,omitempty"`
	UsageMetadata *UsageMetadata     `json:"usageMetadata,omitempty"`
	GoAway        *struct {
		TimeLeft string `json:"timeLeft"`
	} `json:"goAway,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type liveServerContent struct {
	ModelTurn    *Content `json:"modelTurn,omitempty"`
	TurnComplete bool     `json:"turnComplete"`
	Interrupted  bool     `json:"interrupted"`
}

// ConnectLive dials the Live endpoint, sends the setup message and waits for
// the server to acknowledge it.
func (c *Client) ConnectLive(ctx context.Context, cfg LiveConfig) (*LiveSession, error) {
	model := cfg.Model
	if model == "" {
		model = ModelLive
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	u, err := url.Parse(c.liveURL)
	if err != nil {
		return nil, fmt.Errorf("invalid live url: %w", err)
	}
	q := u.Query()
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	c.logger.Debug("gemini live connect", "op", OperationFrom(ctx), "model", model, "endpoint", c.liveURL)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket connection failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket connection failed: %w", err)
	}

	s := &LiveSession{conn: conn, model: strings.TrimPrefix(model, "models/"), client: c}

	setup := liveSetupMessage{Setup: liveSetup{
		Model:            model,
		GenerationConfig: liveGenerationConfig{ResponseModalities: []string{"TEXT"}},
	}}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = TextContent("", cfg.SystemInstruction)
	}

	stop := s.watch(ctx)
	defer stop()

	if err := conn.WriteJSON(setup); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to send setup message: %w", err)
	}

	for {
		msg, err := s.read()
		if err != nil {
			s.Close()
			return nil, ctxErr(ctx, err)
		}
		if msg.SetupComplete != nil {
			return s, nil
		}
	}
}

// Send replays turns as one clientContent message and collects the model's
// text until the server reports turnComplete.
func (s *LiveSession) Send(ctx context.Context, turns []*Content) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("live session closed")
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("at least one turn is required")
	}

	op := OperationFrom(ctx)
	stop := s.watch(ctx)
	defer stop()

	s.client.emit(Exchange{
		Phase:     PhaseRequest,
		Operation: op,
		Model:     s.model,
		Request: &RequestInfo{
			Endpoint:      s.client.liveURL,
			Method:        "WS",
			PromptPreview: truncate(lastText(turns), previewLen),
		},
	})

	start := time.Now()
	msg := liveClientContentMessage{ClientContent: liveClientContent{Turns: turns, TurnComplete: true}}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.client.fail(op, s.model, 0, start, err)
		return "", fmt.Errorf("failed to send turns: %w", err)
	}

	var sb strings.Builder
	info := &ResponseInfo{}
	for {
		m, err := s.read()
		if err != nil {
			err = ctxErr(ctx, err)
			s.client.fail(op, s.model, 0, start, err)
			return "", err
		}
		if m.UsageMetadata != nil {
			info.TokensInput = m.UsageMetadata.PromptTokenCount
			info.TokensOutput = m.UsageMetadata.CandidatesTokenCount
			info.TokensTotal = m.UsageMetadata.TotalTokenCount
		}
		sc := m.ServerContent
		if sc == nil {
			continue
		}
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p != nil {
					sb.WriteString(p.Text)
				}
			}
		}
		if sc.TurnComplete || sc.Interrupted {
			break
		}
	}

	info.Latency = time.Since(start)
	info.ContentPreview = truncate(sb.String(), previewLen)
	s.client.emit(Exchange{Phase: PhaseResponse, Operation: op, Model: s.model, Response: info})
	return sb.String(), nil
}

func (s *LiveSession) read() (*liveServerMessage, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket read error: %w", err)
	}
	var msg liveServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse live message: %w", err)
	}
	if msg.Error != nil {
		return nil, &APIError{StatusCode: msg.Error.Code, Message: msg.Error.Message, Details: msg.Error.Status}
	}
	if msg.GoAway != nil {
		s.client.logger.Debug("gemini live go away", "time_left", msg.GoAway.TimeLeft)
	}
	return &msg, nil
}

// watch closes the connection when ctx is done before stop is called, which
// unblocks a pending read.
func (s *LiveSession) watch(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Close closes the websocket connection
func (s *LiveSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}

// LiveGenerate opens a session, sends turns once and closes it
func (c *Client) LiveGenerate(ctx context.Context, cfg LiveConfig, turns []*Content) (string, error) {
	s, err := c.ConnectLive(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer s.Close()
	return s.Send(ctx, turns)
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func lastText(turns []*Content) string {
	for i := len(turns) - 1; i >= 0; i-- {
		for _, p := range turns[i].Parts {
			if p != nil && p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
