package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"otoanaliz/gemini"
)

// AIFeedMessageType represents the type of AI feed message
type AIFeedMessageType string

const (
	// MsgTypeRequest indicates an outgoing AI request
	MsgTypeRequest AIFeedMessageType = "request"
	// MsgTypeResponse indicates an incoming AI response
	MsgTypeResponse AIFeedMessageType = "response"
	// MsgTypeStatus indicates a status update
	MsgTypeStatus AIFeedMessageType = "status"
	// MsgTypeError indicates an error occurred
	MsgTypeError AIFeedMessageType = "error"
)

// operationTitles names the gateway operations in the feed
var operationTitles = map[string]string{
	"analyze": "Görsel analizi",
	"price":   "Fiyat tahmini",
	"nearby":  "Yakındaki servisler",
	"chat":    "Asistan",
}

// AIFeedMessage represents a single message in the AI transparency feed
type AIFeedMessage struct {
	Timestamp time.Time
	Type      AIFeedMessageType
	Operation string
	Model     string
	Title     string

	// Request is set for outgoing requests
	Request *gemini.RequestInfo

	// Response is set for responses and errors
	Response *gemini.ResponseInfo
}

// AIFeed is a scrolling log of the Gemini calls made on the user's behalf
type AIFeed struct {
	Messages    []AIFeedMessage
	Viewport    viewport.Model
	Width       int
	Height      int
	MaxMessages int
}

// NewAIFeed creates a new AI feed with the given dimensions
func NewAIFeed(width, height int) *AIFeed {
	vp := viewport.New(width, height)
	return &AIFeed{
		Messages:    make([]AIFeedMessage, 0),
		Viewport:    vp,
		Width:       width,
		Height:      height,
		MaxMessages: 100,
	}
}

// AddMessage adds a new message to the feed
func (f *AIFeed) AddMessage(msg AIFeedMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	f.Messages = append(f.Messages, msg)
	if f.MaxMessages > 0 && len(f.Messages) > f.MaxMessages {
		f.Messages = f.Messages[len(f.Messages)-f.MaxMessages:]
	}

	f.Viewport.SetContent(f.Render())
	f.Viewport.GotoBottom()
}

// AddExchange records one observed side of a Gemini call
func (f *AIFeed) AddExchange(ex gemini.Exchange) {
	op := operationTitles[ex.Operation]
	if op == "" {
		op = ex.Operation
	}
	if op == "" {
		op = "Gemini"
	}

	msg := AIFeedMessage{
		Timestamp: ex.Time,
		Operation: ex.Operation,
		Model:     ex.Model,
		Request:   ex.Request,
		Response:  ex.Response,
	}
	switch ex.Phase {
	case gemini.PhaseRequest:
		msg.Type = MsgTypeRequest
		msg.Title = fmt.Sprintf("%s → %s", op, ex.Model)
	case gemini.PhaseResponse:
		msg.Type = MsgTypeResponse
		msg.Title = fmt.Sprintf("%s ← %s", op, ex.Model)
	default:
		msg.Type = MsgTypeError
		msg.Title = op + " başarısız"
	}
	f.AddMessage(msg)
}

// AddStatus adds a status line to the feed
func (f *AIFeed) AddStatus(title string) {
	f.AddMessage(AIFeedMessage{Type: MsgTypeStatus, Title: title})
}

// SetSize updates the feed dimensions
func (f *AIFeed) SetSize(width, height int) {
	f.Width = width
	f.Height = height
	f.Viewport.Width = width
	f.Viewport.Height = height
	f.Viewport.SetContent(f.Render())
}

// Clear removes all messages from the feed
func (f *AIFeed) Clear() {
	f.Messages = make([]AIFeedMessage, 0)
	f.Viewport.SetContent(f.Render())
}

// View returns the viewport view for Bubble Tea
func (f *AIFeed) View() string {
	return f.Viewport.View()
}

// Render renders all messages to a string
func (f *AIFeed) Render() string {
	if len(f.Messages) == 0 {
		return MutedStyle.Render("  Henüz yapay zeka çağrısı yok.")
	}

	lines := make([]string, 0, len(f.Messages))
	for _, msg := range f.Messages {
		lines = append(lines, f.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

// renderMessage renders a single message on one line
func (f *AIFeed) renderMessage(msg AIFeedMessage) string {
	icon, style := f.getMessageStyle(msg.Type)
	timestamp := lipgloss.NewStyle().Foreground(ColorMuted).Render(msg.Timestamp.Format("15:04:05"))

	var suffix string
	switch {
	case msg.Response != nil && msg.Response.ErrorMessage != "":
		suffix = " " + lipgloss.NewStyle().Foreground(ColorError).
			Render("- "+truncate(msg.Response.ErrorMessage, 60))
	case msg.Response != nil:
		var parts []string
		if msg.Response.Latency > 0 {
			parts = append(parts, fmt.Sprintf("%.1fs", msg.Response.Latency.Seconds()))
		}
		if msg.Response.TokensTotal > 0 {
			parts = append(parts, fmt.Sprintf("%d token", msg.Response.TokensTotal))
		}
		if len(parts) > 0 {
			suffix = " " + MutedStyle.Render("("+strings.Join(parts, ", ")+")")
		}
	case msg.Request != nil:
		var parts []string
		if msg.Request.ImageCount > 0 {
			parts = append(parts, fmt.Sprintf("%d görsel", msg.Request.ImageCount))
		}
		if msg.Request.TotalDataSize > 0 {
			parts = append(parts, gemini.FormatSize(msg.Request.TotalDataSize))
		}
		if len(msg.Request.Tools) > 0 {
			parts = append(parts, strings.Join(msg.Request.Tools, "+"))
		}
		if len(parts) > 0 {
			suffix = " " + MutedStyle.Render("("+strings.Join(parts, ", ")+")")
		}
	}

	return fmt.Sprintf("%s %s %s%s", timestamp, style.Render(icon), style.Render(msg.Title), suffix)
}

// getMessageStyle returns icon and style for a message type
func (f *AIFeed) getMessageStyle(msgType AIFeedMessageType) (string, lipgloss.Style) {
	switch msgType {
	case MsgTypeRequest:
		return "[>]", lipgloss.NewStyle().Foreground(ColorSecondary)
	case MsgTypeResponse:
		return "[<]", lipgloss.NewStyle().Foreground(ColorSuccess)
	case MsgTypeError:
		return "[!]", lipgloss.NewStyle().Foreground(ColorError)
	default:
		return "[-]", lipgloss.NewStyle().Foreground(ColorPrimary)
	}
}

// exchangeMsg carries one observed exchange into the update loop
type exchangeMsg gemini.Exchange

// waitForExchange blocks on the observer channel. It is re-armed after
// every delivered exchange; a closed channel ends the subscription.
func waitForExchange(ch <-chan gemini.Exchange) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ex, ok := <-ch
		if !ok {
			return nil
		}
		return exchangeMsg(ex)
	}
}

// ExchangeChannel returns an observer that forwards exchanges to a buffered
// channel for the feed. Exchanges are dropped when the feed falls behind.
func ExchangeChannel(size int) (gemini.Observer, <-chan gemini.Exchange) {
	ch := make(chan gemini.Exchange, size)
	obs := func(ex gemini.Exchange) {
		select {
		case ch <- ex:
		default:
		}
	}
	return obs, ch
}

// RenderFeedBox renders the feed in a styled box
func RenderFeedBox(feed *AIFeed, title string, width int) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(width).
		Padding(0, 1)

	titleStr := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render(title)
	return titleStr + "\n" + boxStyle.Render(feed.View())
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
