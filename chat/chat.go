// Package chat holds the transcript of the floating expert assistant.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Greeting is the first model message of every transcript.
const Greeting = "Merhaba! Ben OtoAnaliz asistanı. Araç hakkında veya piyasa durumuyla ilgili ne sormak istersiniz?"

// Role is the author of a message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one transcript entry
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time
}

// Turn is a message as sent upstream as conversation history
type Turn struct {
	Role Role
	Text string
}

// Backend answers a message given the prior conversation. It never fails:
// errors are reported as a fallback reply.
type Backend interface {
	Chat(ctx context.Context, history []Turn, message string) string
}

// Assistant is an append-only transcript plus open/typing state. It is safe
// for concurrent use.
type Assistant struct {
	mu       sync.Mutex
	backend  Backend
	messages []Message
	pending  int
	open     bool
	now      func() time.Time
}

// NewAssistant creates an assistant seeded with the greeting
func NewAssistant(backend Backend) *Assistant {
	a := &Assistant{backend: backend, now: time.Now}
	a.messages = []Message{a.newMessage(RoleModel, Greeting)}
	return a
}

func (a *Assistant) newMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: a.now(),
	}
}

// Messages returns a copy of the transcript
func (a *Assistant) Messages() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Message(nil), a.messages...)
}

// Typing reports whether a reply is outstanding
func (a *Assistant) Typing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending > 0
}

// IsOpen reports whether the panel is visible
func (a *Assistant) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// Toggle flips the panel visibility and returns the new state. Closing does
// not cancel an outstanding reply.
func (a *Assistant) Toggle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = !a.open
	return a.open
}

// Post appends a user message and returns it with the history to send:
// every message before it, greeting included. Blank input is ignored and
// ok is false.
func (a *Assistant) Post(text string) (msg Message, history []Turn, ok bool) {
	if strings.TrimSpace(text) == "" {
		return Message{}, nil, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	history = make([]Turn, 0, len(a.messages))
	for _, m := range a.messages {
		history = append(history, Turn{Role: m.Role, Text: m.Text})
	}
	msg = a.newMessage(RoleUser, text)
	a.messages = append(a.messages, msg)
	a.pending++
	return msg, history, true
}

// Receive appends the model reply to an earlier Post
func (a *Assistant) Receive(reply string) Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	msg := a.newMessage(RoleModel, reply)
	a.messages = append(a.messages, msg)
	if a.pending > 0 {
		a.pending--
	}
	return msg
}

// Ask calls the backend for a posted message. It does not touch the transcript.
func (a *Assistant) Ask(ctx context.Context, history []Turn, text string) string {
	return a.backend.Chat(ctx, history, text)
}

// Send posts text, waits for the backend and appends the reply.
func (a *Assistant) Send(ctx context.Context, text string) (Message, bool) {
	msg, history, ok := a.Post(text)
	if !ok {
		return Message{}, false
	}
	return a.Receive(a.Ask(ctx, history, msg.Text)), true
}
