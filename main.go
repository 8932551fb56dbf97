package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"otoanaliz/config"
	"otoanaliz/gateway"
	"otoanaliz/gemini"
	"otoanaliz/geo"
	"otoanaliz/tui"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#38BDF8")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#34D399"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F87171"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#38BDF8")).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	banner = `
    ╭─────────────────────────────────────╮
    │  OtoAnaliz - Araç Ekspertiz Asistanı │
    ╰─────────────────────────────────────╯`
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Hata: "+err.Error()))
		os.Exit(1)
	}
}

// globalFlags override the environment configuration
type globalFlags struct {
	lat   string
	lng   string
	debug bool
}

func (g *globalFlags) apply(cfg *config.Config) {
	if g.lat != "" {
		cfg.Lat = g.lat
	}
	if g.lng != "" {
		cfg.Lng = g.lng
	}
	if g.debug {
		cfg.Debug = true
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	var (
		simple    bool
		reportDir string
	)

	root := &cobra.Command{
		Use:   "otoanaliz",
		Short: "Yapay zeka destekli araç ekspertiz ve fiyat analizi",
		Long: "OtoAnaliz: araç fotoğraflarından marka, model ve hasar tespiti yapar,\n" +
			"Türkiye piyasasına göre fiyat aralığı tahmin eder.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if simple {
				return runSimple(cmd, g, reportDir)
			}
			return runTUI(g, reportDir)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.lat, "lat", "", "Enlem (yakındaki servisler için, OTOANALIZ_LAT)")
	pf.StringVar(&g.lng, "lng", "", "Boylam (yakındaki servisler için, OTOANALIZ_LNG)")
	pf.BoolVar(&g.debug, "debug", false, "Ayrıntılı günlük kaydı")

	root.Flags().BoolVar(&simple, "simple", false, "Tam ekran arayüz yerine adım adım formları kullan")
	root.Flags().StringVar(&reportDir, "out", ".", "Raporların kaydedileceği klasör")

	root.AddCommand(
		newSimpleCmd(g),
		newAnalyzeCmd(g),
		newPriceCmd(g),
		newVersionCmd(),
		newUpdateCmd(),
	)
	return root
}

// app holds the wired services of one command run
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	gateway *gateway.Gateway
	locator geo.Locator
	closer  io.Closer
}

// setup loads the configuration and wires the logger, Gemini client and
// gateway. Extra client options are appended to the configured ones.
func setup(g *globalFlags, opts ...gemini.ClientOption) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	g.apply(cfg)
	if err := cfg.CheckConfig(); err != nil {
		return nil, fmt.Errorf("%w\n\n%s", err, config.GetAPIKeyHelp())
	}

	logger, closer, err := config.NewLogger(cfg.LogFile, cfg.Debug)
	if err != nil {
		return nil, err
	}
	client, err := cfg.NewClient(logger, opts...)
	if err != nil {
		closer.Close()
		return nil, err
	}
	locator, err := cfg.Locator()
	if err != nil {
		closer.Close()
		return nil, err
	}

	logger.Info("otoanaliz starting",
		"version", version,
		"chat_transport", cfg.ChatTransport,
		"debug", cfg.Debug,
	)
	return &app{
		cfg:     cfg,
		logger:  logger,
		gateway: gateway.New(client, cfg.GatewayOptions(logger)),
		locator: locator,
		closer:  closer,
	}, nil
}

func (a *app) Close() error {
	return a.closer.Close()
}

func runTUI(g *globalFlags, reportDir string) error {
	observer, exchanges := tui.ExchangeChannel(64)
	a, err := setup(g, gemini.WithObserver(observer))
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(tui.Services{
		Appraiser: a.gateway,
		Nearby:    a.gateway,
		Chat:      a.gateway,
		Locator:   a.locator,
		Exchanges: exchanges,
		ReportDir: reportDir,
		Timeout:   a.cfg.Timeout,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Sürüm bilgisini göster",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "otoanaliz %s\n", version)
	fmt.Fprintf(w, "  commit: %s\n", commit)
	fmt.Fprintf(w, "  built:  %s\n", date)
	fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
	fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
