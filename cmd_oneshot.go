package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"otoanaliz/appraisal"
	"otoanaliz/gateway"
	"otoanaliz/present"
)

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze IMAGES...",
		Short: "Fotoğraflardan aracı tanı ve hasarları listele",
		Long: "Dosya, klasör veya glob desenleri kabul eder. Fotoğraflar dosya adına göre\n" +
			"doğal sırayla gönderilir.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := gateway.LoadImages(args)
			if err != nil {
				return err
			}
			a, err := setup(g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()

			ctrl := appraisal.NewController(a.gateway)
			if err := ctrl.SelectMode(appraisal.ModeSmart); err != nil {
				return err
			}
			if err := ctrl.Analyze(ctx, images); err != nil {
				return err
			}
			analysis := ctrl.Snapshot().Session.Analysis
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), analysis)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatAnalysis(analysis))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Sonucu JSON olarak yaz")
	return cmd
}

// priceOptions are the flags of the price command
type priceOptions struct {
	make      string
	model     string
	year      string
	km        string
	damages   []string
	reportDir string
	overwrite bool
	asJSON    bool
}

func newPriceCmd(g *globalFlags) *cobra.Command {
	opts := &priceOptions{}

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Araç bilgilerinden piyasa değeri tahmin et",
		Example: "  otoanaliz price --make Fiat --model Egea --year 2020 --km 85000 \\\n" +
			"    --damage hood=painted --damage fl_door=L",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl := appraisal.NewController(nil)
			if err := opts.prepare(ctrl); err != nil {
				return err
			}

			a, err := setup(g)
			if err != nil {
				return err
			}
			defer a.Close()

			ctrl = appraisal.NewController(a.gateway)
			if err := opts.prepare(ctrl); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Timeout)
			defer cancel()
			if err := ctrl.Estimate(ctx); err != nil {
				return err
			}

			r, err := present.FromSession(ctrl.Snapshot().Session)
			if err != nil {
				return err
			}
			return opts.report(cmd.OutOrStdout(), r)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.make, "make", "", "Marka (zorunlu)")
	f.StringVar(&opts.model, "model", "", "Model (zorunlu)")
	f.StringVar(&opts.year, "year", "", "Model yılı (zorunlu)")
	f.StringVar(&opts.km, "km", "", "Kilometre (zorunlu)")
	f.StringArrayVar(&opts.damages, "damage", nil, "Kaporta durumu, parça=durum (örn. hood=painted, roof=D)")
	f.StringVar(&opts.reportDir, "out", "", "Raporu bu klasöre Markdown olarak kaydet")
	f.BoolVar(&opts.overwrite, "overwrite", false, "Var olan raporun üzerine yaz")
	f.BoolVar(&opts.asJSON, "json", false, "Sonucu JSON olarak yaz")
	for _, name := range []string{"make", "model", "year", "km"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// prepare fills the manual form of ctrl from the flags. It is also run
// against a detached controller to reject bad input before any setup.
func (o *priceOptions) prepare(ctrl *appraisal.Controller) error {
	if err := ctrl.SelectMode(appraisal.ModeManual); err != nil {
		return err
	}
	ctrl.SetMake(o.make)
	ctrl.SetModel(o.model)
	ctrl.SetYear(o.year)
	ctrl.SetKm(o.km)
	for _, d := range o.damages {
		p, s, err := parseDamage(d)
		if err != nil {
			return err
		}
		if err := ctrl.SetPanel(p, s); err != nil {
			return err
		}
	}
	if !ctrl.CanSubmit() {
		return fmt.Errorf("%w: --make, --model, --year and --km are required", appraisal.ErrMissingDetails)
	}
	if _, err := appraisal.ParseYear(o.year); err != nil {
		return err
	}
	return nil
}

func (o *priceOptions) report(w io.Writer, r *present.Result) error {
	if o.asJSON {
		if err := writeJSON(w, r.Estimate); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, formatResult(r))
	}
	if o.reportDir == "" {
		return nil
	}
	path, err := present.WriteReport(o.reportDir, present.BuildReport(r), present.WriteOptions{
		Overwrite:          o.overwrite,
		AddFrontMatter:     true,
		AddTableOfContents: true,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, successStyle.Render("Rapor kaydedildi: "+path))
	return nil
}

// parseDamage reads "panel=status", e.g. "hood=painted" or "fl_door=L".
func parseDamage(s string) (appraisal.Panel, appraisal.PartStatus, error) {
	key, status, ok := strings.Cut(s, "=")
	if !ok {
		return appraisal.Panel{}, 0, fmt.Errorf("damage %q: want panel=status", s)
	}
	p, found := appraisal.PanelByKey(strings.ToLower(strings.TrimSpace(key)))
	if !found {
		keys := make([]string, 0, len(appraisal.Panels))
		for _, p := range appraisal.Panels {
			keys = append(keys, p.Key)
		}
		return appraisal.Panel{}, 0, fmt.Errorf("damage %q: unknown panel, one of %s", s, strings.Join(keys, ", "))
	}
	st, err := appraisal.ParsePartStatus(status)
	if err != nil {
		return appraisal.Panel{}, 0, fmt.Errorf("damage %q: %w", s, err)
	}
	return p, st, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatAnalysis renders the vehicle analysis box
func formatAnalysis(a *appraisal.VehicleAnalysis) string {
	conf := appraisal.NormalizeConfidence(a.Confidence)
	level := present.LevelFor(conf)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", a.Make, a.Model)
	if a.Generation != "" {
		fmt.Fprintf(&b, "Kasa:     %s\n", a.Generation)
	}
	fmt.Fprintf(&b, "Renk:     %s\n", a.Color)
	fmt.Fprintf(&b, "Durum:    %s\n", a.VisualCondition)
	fmt.Fprintf(&b, "Güven:    %%%d (%s)\n", conf, level.Label())
	if a.IsRare {
		b.WriteString("Nadir / koleksiyonluk model\n")
	}
	b.WriteString("\nHasarlar:\n")
	if len(a.IdentifiedDamages) == 0 {
		b.WriteString("  " + present.NoDamageText)
	}
	for _, d := range a.IdentifiedDamages {
		b.WriteString("  • " + d + "\n")
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// formatResult renders the vehicle and price boxes of a finished appraisal
func formatResult(r *present.Result) string {
	e := r.Estimate

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d)\n", r.Title(), r.Year)
	fmt.Fprintf(&b, "Kilometre: %s\n", present.FormatKm(r.Km))
	fmt.Fprintf(&b, "Güven:     %%%d (%s)\n\n", r.Confidence(), r.ConfidenceLevel().Label())
	fmt.Fprintf(&b, "Piyasa değeri: %s - %s\n", present.FormatCurrency(e.MinPrice), present.FormatCurrency(e.MaxPrice))
	fmt.Fprintf(&b, "               %s\n", present.RangeBar(e.MinPrice, e.AvgPrice, e.MaxPrice, 24))
	fmt.Fprintf(&b, "Ortalama:      %s\n", present.FormatCurrency(e.AvgPrice))
	fmt.Fprintf(&b, "Pazarlık payı: %s\n", present.FormatCurrency(e.BargainingMargin))
	fmt.Fprintf(&b, "Beklenen satış fiyatı: %s\n", present.FormatCurrency(r.ExpectedPrice()))
	fmt.Fprintf(&b, "Piyasa eğilimi: %s\n", r.TrendLabel())

	b.WriteString("\nHasar durumu:\n")
	for _, d := range r.DamageLines() {
		b.WriteString("  • " + d + "\n")
	}
	if e.Reasoning != "" {
		b.WriteString("\n" + e.Reasoning + "\n")
	}
	if len(e.ComparableListingsSource) > 0 {
		b.WriteString("\nKaynaklar:\n")
		for _, s := range e.ComparableListingsSource {
			b.WriteString("  " + s + "\n")
		}
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
