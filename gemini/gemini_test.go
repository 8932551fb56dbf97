package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr bool
	}{
		{"valid key", "test-api-key", false},
		{"empty key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.apiKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && client == nil {
				t.Error("NewClient() returned nil client")
			}
		})
	}
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("API_KEY", "")

	if _, err := NewClientFromEnv(); err == nil {
		t.Error("NewClientFromEnv() should fail with no API keys set")
	}

	t.Setenv("API_KEY", "plain-key")
	client, err := NewClientFromEnv()
	if err != nil {
		t.Fatalf("NewClientFromEnv() with API_KEY failed: %v", err)
	}
	if client.apiKey != "plain-key" {
		t.Errorf("apiKey = %q, want plain-key", client.apiKey)
	}

	t.Setenv("GOOGLE_API_KEY", "google-key")
	client, _ = NewClientFromEnv()
	if client.apiKey != "google-key" {
		t.Errorf("apiKey = %q, want google-key", client.apiKey)
	}

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	client, _ = NewClientFromEnv()
	if client.apiKey != "gemini-key" {
		t.Errorf("apiKey = %q, want gemini-key to win", client.apiKey)
	}
}

func TestClientOptions(t *testing.T) {
	client, err := NewClient("test-key",
		WithBaseURL("https://custom.api.com"),
		WithLiveURL("ws://localhost:9000/live"),
		WithDebug(true),
	)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	if client.baseURL != "https://custom.api.com" {
		t.Errorf("WithBaseURL() = %v, want https://custom.api.com", client.baseURL)
	}
	if client.liveURL != "ws://localhost:9000/live" {
		t.Errorf("WithLiveURL() = %v", client.liveURL)
	}
	if !client.debug {
		t.Error("WithDebug(true) did not enable debug mode")
	}
}

func TestWithBaseURL_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantURL string
	}{
		{"empty", "", BaseURL},
		{"invalid scheme", "ftp://example.com", BaseURL},
		{"no host", "http://", BaseURL},
		{"valid http", "http://localhost:8080", "http://localhost:8080"},
		{"valid https", "https://api.example.com", "https://api.example.com"},
		{"trailing slash", "https://api.example.com/", "https://api.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := NewClient("test-key", WithBaseURL(tt.url))
			if client.baseURL != tt.wantURL {
				t.Errorf("WithBaseURL(%q) = %v, want %v", tt.url, client.baseURL, tt.wantURL)
			}
		})
	}
}

func TestWithLiveURL_Invalid(t *testing.T) {
	for _, u := range []string{"", "http://example.com", "ws://"} {
		client, _ := NewClient("test-key", WithLiveURL(u))
		if client.liveURL != LiveURL {
			t.Errorf("WithLiveURL(%q) = %v, want default", u, client.liveURL)
		}
	}
}

func TestMIMEType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", "image/jpeg"},
		{".JPEG", "image/jpeg"},
		{".png", "image/png"},
		{".webp", "image/webp"},
		{".heic", "image/heic"},
		{".tif", "image/tiff"},
		{".pdf", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := MIMEType(tt.ext); got != tt.want {
				t.Errorf("MIMEType(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestSupportedImageTypes(t *testing.T) {
	if len(SupportedImageTypes) == 0 {
		t.Fatal("no supported image types")
	}
	for _, ext := range SupportedImageTypes {
		if MIMEType(ext) == "" {
			t.Errorf("%s is listed but has no MIME type", ext)
		}
		if !IsImageFile("car" + ext) {
			t.Errorf("IsImageFile(car%s) = false", ext)
		}
	}
}

func TestNaturalSort(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"on_1.jpg", "on_2.jpg", true},
		{"on_2.jpg", "on_10.jpg", true},
		{"on_10.jpg", "on_2.jpg", false},
		{"arka.jpg", "on.jpg", true},
		{"img1.jpg", "img1.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := naturalSort(tt.a, tt.b); got != tt.want {
				t.Errorf("naturalSort(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLoadImages(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{"car_1.jpg", "car_10.jpg", "car_2.png", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("fake image data"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	images, err := LoadImages([]string{tmpDir})
	if err != nil {
		t.Fatalf("LoadImages() failed: %v", err)
	}

	expected := []string{"car_1.jpg", "car_2.png", "car_10.jpg"}
	if len(images) != len(expected) {
		t.Fatalf("LoadImages() returned %d images, want %d", len(images), len(expected))
	}
	for i, img := range images {
		if filepath.Base(img) != expected[i] {
			t.Errorf("LoadImages()[%d] = %v, want %v", i, filepath.Base(img), expected[i])
		}
	}

	// the same file given twice is loaded once
	one := filepath.Join(tmpDir, "car_1.jpg")
	images, err = LoadImages([]string{one, one, filepath.Join(tmpDir, "car_*.jpg")})
	if err != nil {
		t.Fatalf("LoadImages() failed: %v", err)
	}
	if len(images) != 2 {
		t.Errorf("LoadImages() with duplicates returned %d images, want 2", len(images))
	}

	if _, err := LoadImages([]string{filepath.Join(tmpDir, "notes.txt")}); err == nil {
		t.Error("LoadImages() should reject non-image files")
	}
}

func TestReadImages(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "front.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	images, err := ReadImages([]string{path})
	if err != nil {
		t.Fatalf("ReadImages() failed: %v", err)
	}
	img := images[0]
	if img.Filename != "front.jpg" || img.MIMEType != "image/jpeg" || img.Size != 10 || string(img.Data) != "jpeg bytes" {
		t.Errorf("ReadImages() = %+v", img)
	}

	if _, err := ReadImages([]string{filepath.Join(tmpDir, "missing.jpg")}); err == nil {
		t.Error("ReadImages() should fail for a missing file")
	}

	tooMany := make([]string, MaxImagesPerRequest+1)
	for i := range tooMany {
		tooMany[i] = path
	}
	if _, err := ReadImages(tooMany); err == nil {
		t.Error("ReadImages() should fail with too many images")
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{
		StatusCode: 400,
		Message:    "Bad Request",
		Details:    "INVALID_ARGUMENT",
	}
	if err.Error() != "Bad Request: INVALID_ARGUMENT" {
		t.Errorf("APIError.Error() = %v", err.Error())
	}

	err2 := &APIError{StatusCode: 401, Message: "Unauthorized"}
	if err2.Error() != "Unauthorized" {
		t.Errorf("APIError.Error() = %v, want Unauthorized", err2.Error())
	}
}

func TestGenerateContent_MockServer(t *testing.T) {
	var got GenerateContentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/gemini-3-flash-preview:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "" {
			t.Error("API key must not be sent in the query string")
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("x-goog-api-key = %q", r.Header.Get("x-goog-api-key"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body: %v", err)
		}

		resp := GenerateContentResponse{
			Candidates: []*Candidate{
				{
					Content: &Content{
						Role:  "model",
						Parts: []*Part{{Text: `{"minPrice": `}, {Text: `1}`}},
					},
					FinishReason: "STOP",
					GroundingMetadata: &GroundingMetadata{
						GroundingChunks: []*GroundingChunk{
							{Web: &WebChunk{URI: "https://www.sahibinden.com/a"}},
							{Web: &WebChunk{URI: "https://www.arabam.com/b"}},
							{Web: &WebChunk{URI: "https://www.sahibinden.com/a"}},
						},
					},
				},
			},
			UsageMetadata: &UsageMetadata{
				PromptTokenCount:     100,
				CandidatesTokenCount: 50,
				TotalTokenCount:      150,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))

	req := &GenerateContentRequest{
		Contents: []*Content{TextContent("user", "fiyat?")},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: &Schema{
				Type:       TypeObject,
				Properties: map[string]*Schema{"minPrice": {Type: TypeNumber}},
				Required:   []string{"minPrice"},
			},
		},
		Tools: []*Tool{{GoogleSearch: &GoogleSearch{}}},
	}

	resp, err := client.GenerateContent(context.Background(), ModelGemini3Flash, req)
	if err != nil {
		t.Fatalf("GenerateContent() failed: %v", err)
	}

	if resp.Text() != `{"minPrice": 1}` {
		t.Errorf("Text() = %q", resp.Text())
	}
	sources := resp.WebSources()
	if len(sources) != 2 || sources[0] != "https://www.sahibinden.com/a" {
		t.Errorf("WebSources() = %v", sources)
	}
	if resp.UsageMetadata.TotalTokenCount != 150 {
		t.Errorf("TotalTokenCount = %d, want 150", resp.UsageMetadata.TotalTokenCount)
	}

	if got.GenerationConfig == nil || got.GenerationConfig.ResponseSchema == nil ||
		got.GenerationConfig.ResponseSchema.Required[0] != "minPrice" {
		t.Errorf("response schema not sent: %+v", got.GenerationConfig)
	}
	if len(got.Tools) != 1 || got.Tools[0].GoogleSearch == nil {
		t.Errorf("tools not sent: %+v", got.Tools)
	}
}

func TestGenerateContent_ToolConfigEncoding(t *testing.T) {
	req := &GenerateContentRequest{
		Contents: []*Content{TextContent("user", "servis")},
		Tools:    []*Tool{{GoogleMaps: &GoogleMaps{}}},
		ToolConfig: &ToolConfig{RetrievalConfig: &RetrievalConfig{
			LatLng: &LatLng{Latitude: 41.0082, Longitude: 28.9784},
		}},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{
		`"tools":[{"googleMaps":{}}]`,
		`"toolConfig":{"retrievalConfig":{"latLng":{"latitude":41.0082,"longitude":28.9784}}}`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("encoded request %s missing %s", s, want)
		}
	}
}

func TestGenerateContent_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.GenerateContent(context.Background(), ModelGemini3Pro, &GenerateContentRequest{
		Contents: []*Content{TextContent("user", "hi")},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 429 || apiErr.Message != "Quota exceeded" || apiErr.Details != "RESOURCE_EXHAUSTED" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestGenerateContent_NonJSONError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.GenerateContent(context.Background(), ModelGemini3Pro, &GenerateContentRequest{
		Contents: []*Content{TextContent("user", "hi")},
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("error = %v, want 502 *APIError", err)
	}
	if !strings.Contains(apiErr.Details, "upstream down") {
		t.Errorf("Details = %q", apiErr.Details)
	}
}

func TestGenerateContent_Validation(t *testing.T) {
	client, _ := NewClient("test-key")
	if _, err := client.GenerateContent(context.Background(), "", &GenerateContentRequest{}); err == nil {
		t.Error("GenerateContent() should fail without a model")
	}
	if _, err := client.GenerateContent(context.Background(), ModelGemini3Pro, &GenerateContentRequest{}); err == nil {
		t.Error("GenerateContent() should fail without contents")
	}
}

func TestGenerateContent_Observer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GenerateContentResponse{
			Candidates:    []*Candidate{{Content: TextContent("model", "tamam")}},
			UsageMetadata: &UsageMetadata{TotalTokenCount: 42},
		})
	}))
	defer server.Close()

	var mu sync.Mutex
	var seen []Exchange
	client, _ := NewClient("test-key",
		WithBaseURL(server.URL),
		WithObserver(func(ex Exchange) {
			mu.Lock()
			seen = append(seen, ex)
			mu.Unlock()
		}),
	)

	ctx := WithOperation(context.Background(), "analyze")
	req := &GenerateContentRequest{
		Contents: []*Content{{
			Role: "user",
			Parts: []*Part{
				InlinePart("image/jpeg", []byte("a")),
				InlinePart("image/jpeg", []byte("b")),
				{Text: "Analyze these car images."},
			},
		}},
	}
	if _, err := client.GenerateContent(ctx, ModelGemini3Pro, req); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 2 {
		t.Fatalf("observer saw %d exchanges, want 2", len(seen))
	}
	if seen[0].Phase != PhaseRequest || seen[0].Operation != "analyze" || seen[0].Request.ImageCount != 2 {
		t.Errorf("request exchange = %+v", seen[0])
	}
	if seen[0].Request.PromptPreview != "Analyze these car images." {
		t.Errorf("PromptPreview = %q", seen[0].Request.PromptPreview)
	}
	if seen[1].Phase != PhaseResponse || seen[1].Response.TokensTotal != 42 || seen[1].Response.ContentPreview != "tamam" {
		t.Errorf("response exchange = %+v", seen[1].Response)
	}
}

func TestResponseText_Empty(t *testing.T) {
	var nilResp *GenerateContentResponse
	if nilResp.Text() != "" {
		t.Error("nil response should have empty text")
	}
	if (&GenerateContentResponse{}).Text() != "" {
		t.Error("no candidates should give empty text")
	}
	if (&GenerateContentResponse{Candidates: []*Candidate{{FinishReason: "SAFETY"}}}).Text() != "" {
		t.Error("candidate without content should give empty text")
	}
}

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  \n", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := CleanJSON(tt.in); got != tt.want {
			t.Errorf("CleanJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("kısa", 10); got != "kısa" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("çok uzun bir metin", 8); got != "çok u..." {
		t.Errorf("truncate() = %q, want rune-safe cut", got)
	}
	if got := truncate("a\nb", 10); got != "a b" {
		t.Errorf("truncate() = %q, want newlines flattened", got)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{100, "100 bytes"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{1073741824, "1.00 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatSize(tt.bytes); got != tt.want {
				t.Errorf("FormatSize(%d) = %v, want %v", tt.bytes, got, tt.want)
			}
		})
	}
}
