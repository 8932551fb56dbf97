package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"otoanaliz/chat"
	"otoanaliz/present"
)

const chatTimeout = 90 * time.Second

// chatReplyMsg delivers the backend's answer
type chatReplyMsg struct {
	text string
}

// ChatPanel is the floating assistant: a transcript viewport above an input line
type ChatPanel struct {
	assistant *chat.Assistant
	viewport  viewport.Model
	input     textinput.Model
	width     int
	height    int
}

// NewChatPanel wraps assistant in a panel of the given size
func NewChatPanel(assistant *chat.Assistant, width, height int) ChatPanel {
	ti := textinput.New()
	ti.Placeholder = "Bir soru sorun..."
	ti.CharLimit = 500
	ti.Prompt = "› "

	p := ChatPanel{
		assistant: assistant,
		viewport:  viewport.New(width, height),
		input:     ti,
	}
	p.SetSize(width, height)
	return p
}

// Open reports whether the panel is shown
func (p ChatPanel) Open() bool {
	return p.assistant.IsOpen()
}

// Toggle opens or closes the panel and focuses the input when opening
func (p ChatPanel) Toggle() (ChatPanel, tea.Cmd) {
	if p.assistant.Toggle() {
		p.refresh()
		cmd := p.input.Focus()
		return p, cmd
	}
	p.input.Blur()
	return p, nil
}

// SetSize resizes the panel; height includes the input line
func (p *ChatPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.viewport.Width = width
	p.viewport.Height = max(height-3, 3)
	p.input.Width = max(width-4, 10)
	p.refresh()
}

// Update handles input while the panel is open. Replies arriving while it is
// closed are still appended.
func (p ChatPanel) Update(msg tea.Msg) (ChatPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case chatReplyMsg:
		p.assistant.Receive(msg.text)
		p.refresh()
		return p, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			_, history, ok := p.assistant.Post(p.input.Value())
			if !ok {
				return p, nil
			}
			text := p.input.Value()
			p.input.SetValue("")
			p.refresh()
			return p, askCmd(p.assistant, history, text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			p.viewport, cmd = p.viewport.Update(msg)
			return p, cmd
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func askCmd(a *chat.Assistant, history []chat.Turn, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
		defer cancel()
		return chatReplyMsg{text: a.Ask(ctx, history, text)}
	}
}

func (p *ChatPanel) refresh() {
	p.viewport.SetContent(p.renderTranscript())
	p.viewport.GotoBottom()
}

func (p ChatPanel) renderTranscript() string {
	userStyle := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	modelStyle := lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	width := max(p.width-2, 10)

	var b strings.Builder
	for _, m := range p.assistant.Messages() {
		stamp := MutedStyle.Render(m.Timestamp.Format("15:04"))
		if m.Role == chat.RoleUser {
			b.WriteString(userStyle.Render("Siz") + " " + stamp + "\n")
			b.WriteString(lipgloss.NewStyle().Width(width).Render(m.Text) + "\n\n")
			continue
		}
		b.WriteString(modelStyle.Render("OtoAnaliz") + " " + stamp + "\n")
		b.WriteString(present.RenderMarkdown(m.Text, width) + "\n\n")
	}
	if p.assistant.Typing() {
		b.WriteString(MutedStyle.Render("OtoAnaliz yazıyor..."))
	}
	return strings.TrimRight(b.String(), "\n")
}

// View renders the panel box
func (p ChatPanel) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Render("OtoAnaliz Asistan")
	hint := MutedStyle.Render("ctrl+t kapat")
	header := title + "  " + hint

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1).
		Width(p.width + 2).
		Render(header + "\n" + p.viewport.View() + "\n" + p.input.View())
}
