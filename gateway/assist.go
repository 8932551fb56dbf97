package gateway

import (
	"context"
	"strings"

	"otoanaliz/chat"
	"otoanaliz/gemini"
)

// DefaultNearbyQuery is used when the caller passes an empty query
const DefaultNearbyQuery = "Oto Ekspertiz"

// FindNearbyServices lists top-rated places matching query around the
// coordinate as Turkish markdown. It never fails.
func (g *Gateway) FindNearbyServices(ctx context.Context, lat, lng float64, query string) string {
	model := g.models.Maps
	if strings.TrimSpace(query) == "" {
		query = DefaultNearbyQuery
	}

	req := &gemini.GenerateContentRequest{
		Contents: []*gemini.Content{gemini.TextContent("user", nearbyPrompt(query))},
		Tools:    []*gemini.Tool{{GoogleMaps: &gemini.GoogleMaps{}}},
		ToolConfig: &gemini.ToolConfig{RetrievalConfig: &gemini.RetrievalConfig{
			LatLng: &gemini.LatLng{Latitude: lat, Longitude: lng},
		}},
	}

	resp, err := g.client.GenerateContent(gemini.WithOperation(ctx, OpNearby), model, req)
	if err != nil {
		g.fail(OpNearby, model, MsgNearbyUnavailable, KindTransport, err)
		return MsgNearbyUnavailable
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.logger.Info("no nearby services", "query", query)
		return MsgNoNearby
	}
	return text
}

// Chat answers message given the prior conversation. It never fails.
func (g *Gateway) Chat(ctx context.Context, history []chat.Turn, message string) string {
	ctx = gemini.WithOperation(ctx, OpChat)

	turns := make([]*gemini.Content, 0, len(history)+1)
	for _, t := range history {
		turns = append(turns, gemini.TextContent(string(t.Role), t.Text))
	}
	turns = append(turns, gemini.TextContent(string(chat.RoleUser), message))

	var (
		text  string
		err   error
		model string
	)
	switch g.transport {
	case TransportLive:
		model = g.models.Live
		text, err = g.client.LiveGenerate(ctx, gemini.LiveConfig{
			Model:             model,
			SystemInstruction: chatSystemInstruction,
		}, turns)
	default:
		model = g.models.Chat
		var resp *gemini.GenerateContentResponse
		resp, err = g.client.GenerateContent(ctx, model, &gemini.GenerateContentRequest{
			Contents:          turns,
			SystemInstruction: gemini.TextContent("", chatSystemInstruction),
		})
		text = resp.Text()
	}
	if err != nil {
		g.fail(OpChat, model, MsgChatFailed, KindTransport, err)
		return MsgChatFailed
	}
	if strings.TrimSpace(text) == "" {
		return MsgChatEmpty
	}
	return text
}
