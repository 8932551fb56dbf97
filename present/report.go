package present

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrReportExists is returned when the report file is already on disk and
// overwriting was not requested.
var ErrReportExists = errors.New("report already exists")

// WriteOptions configures report writing
type WriteOptions struct {
	// Overwrite allows overwriting an existing report
	Overwrite bool

	// AddFrontMatter adds YAML front matter
	AddFrontMatter bool

	// AddTableOfContents adds a TOC after the title
	AddTableOfContents bool
}

// Section is a second-level heading of a report
type Section struct {
	Title string
	Body  string
}

// ReportMeta is written as YAML front matter
type ReportMeta struct {
	Title         string    `yaml:"title"`
	Make          string    `yaml:"make"`
	Model         string    `yaml:"model"`
	Year          int       `yaml:"year"`
	Km            int       `yaml:"km"`
	MinPrice      float64   `yaml:"minPrice"`
	MaxPrice      float64   `yaml:"maxPrice"`
	ExpectedPrice float64   `yaml:"expectedPrice"`
	Currency      string    `yaml:"currency"`
	MarketTrend   string    `yaml:"marketTrend"`
	Confidence    int       `yaml:"confidence"`
	Sources       []string  `yaml:"sources,omitempty"`
	Generated     time.Time `yaml:"generated"`
}

// Report is an appraisal rendered as a Markdown document
type Report struct {
	Title    string
	Filename string
	Meta     ReportMeta
	Sections []Section
}

// ReportFilename is "<make>_<model>_<year>.md" reduced to safe characters.
func ReportFilename(r *Result) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Analysis.Make, r.Analysis.Model, strconv.Itoa(r.Year)} {
		if s := slug(p); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "ekspertiz.md"
	}
	return strings.Join(parts, "_") + ".md"
}

// BuildReport lays out the result as a report document.
func BuildReport(r *Result) *Report {
	return buildReport(r, time.Now())
}

func buildReport(r *Result, now time.Time) *Report {
	a, e := r.Analysis, r.Estimate
	doc := &Report{
		Title:    fmt.Sprintf("%s (%d) Ekspertiz Raporu", r.Title(), r.Year),
		Filename: ReportFilename(r),
		Meta: ReportMeta{
			Title:         r.Title(),
			Make:          a.Make,
			Model:         a.Model,
			Year:          r.Year,
			Km:            r.Km,
			MinPrice:      e.MinPrice,
			MaxPrice:      e.MaxPrice,
			ExpectedPrice: r.ExpectedPrice(),
			Currency:      e.Currency,
			MarketTrend:   string(e.MarketTrend),
			Confidence:    r.Confidence(),
			Sources:       e.ComparableListingsSource,
			Generated:     now,
		},
	}

	var vehicle strings.Builder
	fmt.Fprintf(&vehicle, "| | |\n|---|---|\n")
	fmt.Fprintf(&vehicle, "| Marka | %s |\n", a.Make)
	fmt.Fprintf(&vehicle, "| Model | %s |\n", a.Model)
	if a.Generation != "" {
		fmt.Fprintf(&vehicle, "| Kasa | %s |\n", a.Generation)
	}
	fmt.Fprintf(&vehicle, "| Yıl | %d |\n", r.Year)
	fmt.Fprintf(&vehicle, "| Kilometre | %s |\n", FormatKm(r.Km))
	if a.Color != "" {
		fmt.Fprintf(&vehicle, "| Renk | %s |\n", a.Color)
	}
	fmt.Fprintf(&vehicle, "| Durum | %s |\n", a.VisualCondition)
	fmt.Fprintf(&vehicle, "| Güven | %%%d (%s) |\n", r.Confidence(), r.ConfidenceLevel().Label())
	if a.IsRare {
		vehicle.WriteString("\n> Nadir / koleksiyonluk araç.\n")
	}
	doc.Sections = append(doc.Sections, Section{Title: "Araç", Body: vehicle.String()})

	var price strings.Builder
	fmt.Fprintf(&price, "- **Piyasa aralığı:** %s – %s\n", FormatCurrency(e.MinPrice), FormatCurrency(e.MaxPrice))
	fmt.Fprintf(&price, "- **Ortalama:** %s\n", FormatCurrency(e.AvgPrice))
	fmt.Fprintf(&price, "- **Pazarlık payı:** %s\n", FormatCurrency(e.BargainingMargin))
	fmt.Fprintf(&price, "- **Beklenen satış fiyatı:** %s\n", FormatCurrency(r.ExpectedPrice()))
	fmt.Fprintf(&price, "- **Piyasa eğilimi:** %s\n", r.TrendLabel())
	doc.Sections = append(doc.Sections, Section{Title: "Fiyat", Body: price.String()})

	var damages strings.Builder
	for _, d := range r.DamageLines() {
		fmt.Fprintf(&damages, "- %s\n", d)
	}
	doc.Sections = append(doc.Sections, Section{Title: "Hasar Durumu", Body: damages.String()})

	if strings.TrimSpace(e.Reasoning) != "" {
		doc.Sections = append(doc.Sections, Section{Title: "Değerlendirme", Body: strings.TrimSpace(e.Reasoning) + "\n"})
	}
	if len(e.ComparableListingsSource) > 0 {
		var src strings.Builder
		for _, s := range e.ComparableListingsSource {
			fmt.Fprintf(&src, "- <%s>\n", s)
		}
		doc.Sections = append(doc.Sections, Section{Title: "Kaynaklar", Body: src.String()})
	}
	return doc
}

// Markdown renders the full document text.
func (doc *Report) Markdown(opts WriteOptions) (string, error) {
	var sb strings.Builder

	if opts.AddFrontMatter {
		meta, err := yaml.Marshal(doc.Meta)
		if err != nil {
			return "", fmt.Errorf("failed to encode front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(meta)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", doc.Title)

	if opts.AddTableOfContents && len(doc.Sections) > 1 {
		for _, s := range doc.Sections {
			fmt.Fprintf(&sb, "- [%s](#%s)\n", s.Title, anchor(s.Title))
		}
		sb.WriteString("\n")
	}

	for _, s := range doc.Sections {
		fmt.Fprintf(&sb, "## %s\n\n%s\n", s.Title, strings.TrimRight(s.Body, "\n"))
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n", nil
}

func anchor(title string) string {
	return strings.ReplaceAll(strings.ToLower(title), " ", "-")
}

// WriteReport writes doc into dir and returns the written path.
func WriteReport(dir string, doc *Report, opts WriteOptions) (string, error) {
	if doc == nil {
		return "", errors.New("no report to write")
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(doc.Filename))
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%w: %s (use --overwrite to replace)", ErrReportExists, path)
		}
	}

	content, err := doc.Markdown(opts)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
