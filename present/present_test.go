package present

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"otoanaliz/appraisal"
	"otoanaliz/geo"
)

func sampleResult(t *testing.T) *Result {
	t.Helper()
	r, err := NewResult(
		&appraisal.VehicleAnalysis{
			Make: "BMW", Model: "320i", Generation: "F30", Color: "Beyaz",
			VisualCondition: "İyi", IdentifiedDamages: []string{}, Confidence: 90,
		},
		&appraisal.PriceEstimate{
			MinPrice: 1400000, MaxPrice: 1600000, AvgPrice: 1500000, Currency: "TL",
			BargainingMargin: 50000, Reasoning: "Benzer ilanlar incelendi.",
			MarketTrend: appraisal.TrendRising, ComparableListingsSource: []string{"https://example.com/ilan/1"},
		},
		2018, 85000,
		[]appraisal.Image{{Name: "on.jpg"}, {Name: "arka.jpg"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1450000, "₺1.450.000"},
		{0, "₺0"},
		{999, "₺999"},
		{1000, "₺1.000"},
		{1449999.6, "₺1.450.000"},
		{-2500, "-₺2.500"},
		{math.NaN(), "-"},
	}
	for _, tt := range tests {
		if got := FormatCurrency(tt.in); got != tt.want {
			t.Errorf("FormatCurrency(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatKm(t *testing.T) {
	if got := FormatKm(85000); got != "85.000 km" {
		t.Errorf("FormatKm(85000) = %q", got)
	}
	if got := FormatKm(0); got != "0 km" {
		t.Errorf("FormatKm(0) = %q", got)
	}
}

func TestConfidenceLevels(t *testing.T) {
	tests := []struct {
		confidence float64
		want       ConfidenceLevel
		display    int
	}{
		{90.4, ConfidenceHigh, 90},
		{85, ConfidenceHigh, 85},
		{84, ConfidenceMedium, 84},
		{60, ConfidenceMedium, 60},
		{59, ConfidenceLow, 59},
		{1, ConfidenceLow, 1},
		{0.4, ConfidenceLow, 0},
		{140, ConfidenceHigh, 100},
	}
	for _, tt := range tests {
		r := &Result{Analysis: appraisal.VehicleAnalysis{Confidence: tt.confidence}}
		if got := r.Confidence(); got != tt.display {
			t.Errorf("Confidence(%v) = %d, want %d", tt.confidence, got, tt.display)
		}
		if got := r.ConfidenceLevel(); got != tt.want {
			t.Errorf("ConfidenceLevel(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
	if ConfidenceHigh.Color() == ConfidenceLow.Color() {
		t.Error("high and low confidence share a color")
	}
}

type stubAppraiser struct {
	analysis *appraisal.VehicleAnalysis
	estimate *appraisal.PriceEstimate
}

func (s stubAppraiser) AnalyzeImages(ctx context.Context, images []appraisal.Image) (*appraisal.VehicleAnalysis, error) {
	return s.analysis.Clone(), nil
}

func (s stubAppraiser) EstimatePrice(ctx context.Context, req appraisal.EstimateRequest) (*appraisal.PriceEstimate, error) {
	e := *s.estimate
	return &e, nil
}

func TestConfidenceNotRescaledAfterSession(t *testing.T) {
	c := appraisal.NewController(stubAppraiser{
		analysis: &appraisal.VehicleAnalysis{
			Make: "Fiat", Model: "Egea", VisualCondition: "Orta",
			IdentifiedDamages: []string{}, Confidence: 0.01,
		},
		estimate: &appraisal.PriceEstimate{
			MinPrice: 100, MaxPrice: 300, AvgPrice: 200, Currency: "TL",
			MarketTrend: appraisal.TrendStable,
		},
	})
	ctx := context.Background()
	if err := c.SelectMode(appraisal.ModeSmart); err != nil {
		t.Fatal(err)
	}
	if err := c.Analyze(ctx, []appraisal.Image{{Name: "on.jpg", MIMEType: "image/jpeg", Data: []byte("x")}}); err != nil {
		t.Fatal(err)
	}
	c.SetYear("2020")
	c.SetKm("50000")
	if err := c.Estimate(ctx); err != nil {
		t.Fatal(err)
	}

	r, err := FromSession(c.Snapshot().Session)
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Confidence(); got != 1 {
		t.Errorf("Confidence() = %d, want 1", got)
	}
	if got := r.ConfidenceLevel(); got != ConfidenceLow {
		t.Errorf("ConfidenceLevel() = %v, want low", got)
	}
}

func TestResult(t *testing.T) {
	r := sampleResult(t)

	if r.Title() != "BMW 320i" {
		t.Errorf("Title() = %q", r.Title())
	}
	if r.ExpectedPrice() != 1450000 {
		t.Errorf("ExpectedPrice() = %v", r.ExpectedPrice())
	}
	if lines := r.DamageLines(); len(lines) != 1 || lines[0] != NoDamageText {
		t.Errorf("DamageLines() = %v", lines)
	}

	r.Analysis.IdentifiedDamages = []string{"Kaput: Boyalı"}
	if lines := r.DamageLines(); len(lines) != 1 || lines[0] != "Kaput: Boyalı" {
		t.Errorf("DamageLines() = %v", lines)
	}

	if _, err := NewResult(nil, &appraisal.PriceEstimate{}, 2018, 0, nil); err == nil {
		t.Error("NewResult() without analysis should fail")
	}
	if _, err := FromSession(appraisal.Session{Step: appraisal.StepDetailsInput}); !errors.Is(err, appraisal.ErrInvalidTransition) {
		t.Errorf("FromSession(details) error = %v", err)
	}
}

func TestCarousel(t *testing.T) {
	c := Carousel{Len: 3}
	c.Prev()
	if c.Index != 2 {
		t.Errorf("Prev from 0 = %d, want 2", c.Index)
	}
	c.Next()
	if c.Index != 0 {
		t.Errorf("Next from 2 = %d, want 0", c.Index)
	}
	c.Next()
	if c.Position() != "2 / 3" {
		t.Errorf("Position() = %q", c.Position())
	}

	var empty Carousel
	empty.Next()
	empty.Prev()
	if empty.Index != 0 || empty.Position() != "" {
		t.Errorf("empty carousel moved: %+v", empty)
	}
}

func TestRangeBar(t *testing.T) {
	tests := []struct {
		min, avg, max float64
		want          string
	}{
		{100, 150, 200, "├──●──┤"},
		{100, 100, 200, "├●────┤"},
		{100, 200, 200, "├────●┤"},
		{100, 100, 100, "├──●──┤"},
	}
	for _, tt := range tests {
		if got := RangeBar(tt.min, tt.avg, tt.max, 5); got != tt.want {
			t.Errorf("RangeBar(%v,%v,%v) = %q, want %q", tt.min, tt.avg, tt.max, got, tt.want)
		}
	}
}

type fakeFinder struct {
	lat, lng float64
	query    string
	calls    int
}

func (f *fakeFinder) FindNearbyServices(ctx context.Context, lat, lng float64, query string) string {
	f.calls++
	f.lat, f.lng, f.query = lat, lng, query
	return "1. **Usta Ekspertiz** - 4.8"
}

func TestLookupNearby(t *testing.T) {
	ctx := context.Background()

	f := &fakeFinder{}
	if got := LookupNearby(ctx, geo.Denied(), f, ""); got != MsgLocationDenied {
		t.Errorf("denied lookup = %q", got)
	}
	if got := LookupNearby(ctx, nil, f, ""); got != MsgLocationDenied {
		t.Errorf("nil locator lookup = %q", got)
	}
	if f.calls != 0 {
		t.Errorf("finder called %d times without a position", f.calls)
	}

	loc, _ := geo.NewStatic(geo.Position{Lat: 41.01, Lng: 28.97})
	got := LookupNearby(ctx, loc, f, "  ")
	if !strings.Contains(got, "Usta Ekspertiz") {
		t.Errorf("lookup = %q", got)
	}
	if f.query != "Oto Ekspertiz" || f.lat != 41.01 || f.lng != 28.97 {
		t.Errorf("finder got %+v", f)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := renderMarkdown("# Başlık\n\n- **Usta** Ekspertiz", 40, "notty")
	if !strings.Contains(out, "Başlık") || !strings.Contains(out, "Ekspertiz") {
		t.Errorf("renderMarkdown() = %q", out)
	}

	fallback := renderMarkdown("düz metin", 40, "no-such-style")
	if !strings.Contains(fallback, "düz metin") {
		t.Errorf("fallback = %q", fallback)
	}
}

func TestReportFilename(t *testing.T) {
	tests := []struct {
		make, model string
		year        int
		want        string
	}{
		{"BMW", "320i", 2018, "bmw_320i_2018.md"},
		{"Mercedes-Benz", "C 200 d", 2020, "mercedes-benz_c_200_d_2020.md"},
		{"Tofaş", "Şahin / Doğan", 1995, "tofas_sahin_dogan_1995.md"},
		{"Fıat", "Eğea", 2021, "fiat_egea_2021.md"},
		{"../..", "", 0, "0.md"},
	}
	for _, tt := range tests {
		r := &Result{Analysis: appraisal.VehicleAnalysis{Make: tt.make, Model: tt.model}, Year: tt.year}
		if got := ReportFilename(r); got != tt.want {
			t.Errorf("ReportFilename(%q, %q) = %q, want %q", tt.make, tt.model, got, tt.want)
		}
	}
}

func TestReportMarkdown(t *testing.T) {
	r := sampleResult(t)
	r.Analysis.IdentifiedDamages = []string{"Kaput: Değişen"}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := buildReport(r, now)

	md, err := doc.Markdown(WriteOptions{AddFrontMatter: true, AddTableOfContents: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"# BMW 320i (2018) Ekspertiz Raporu",
		"| Kilometre | 85.000 km |",
		"| Güven | %90 (Yüksek Güven) |",
		"**Beklenen satış fiyatı:** ₺1.450.000",
		"**Piyasa eğilimi:** Yükselişte",
		"- Kaput: Değişen",
		"Benzer ilanlar incelendi.",
		"- <https://example.com/ilan/1>",
		"- [Hasar Durumu](#hasar-durumu)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q\n%s", want, md)
		}
	}

	if !strings.HasPrefix(md, "---\n") {
		t.Fatal("front matter missing")
	}
	front := strings.SplitN(strings.TrimPrefix(md, "---\n"), "---\n", 2)[0]
	var meta ReportMeta
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		t.Fatalf("front matter is not YAML: %v", err)
	}
	if meta.Make != "BMW" || meta.Year != 2018 || meta.ExpectedPrice != 1450000 || meta.MarketTrend != "rising" {
		t.Errorf("front matter = %+v", meta)
	}

	plain, _ := doc.Markdown(WriteOptions{})
	if strings.HasPrefix(plain, "---") || strings.Contains(plain, "](#") {
		t.Error("plain report should have neither front matter nor TOC")
	}
}

func TestWriteReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raporlar")
	doc := BuildReport(sampleResult(t))

	path, err := WriteReport(dir, doc, WriteOptions{})
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if filepath.Base(path) != "bmw_320i_2018.md" {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Ekspertiz Raporu") {
		t.Errorf("content = %q", data)
	}

	if _, err := WriteReport(dir, doc, WriteOptions{}); !errors.Is(err, ErrReportExists) {
		t.Errorf("second WriteReport() error = %v, want ErrReportExists", err)
	}
	if _, err := WriteReport(dir, doc, WriteOptions{Overwrite: true}); err != nil {
		t.Errorf("WriteReport(overwrite) error = %v", err)
	}
	if _, err := WriteReport(dir, nil, WriteOptions{}); err == nil {
		t.Error("WriteReport(nil) should fail")
	}
}
