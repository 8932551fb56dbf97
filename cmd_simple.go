package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/spf13/cobra"

	"otoanaliz/appraisal"
	"otoanaliz/chat"
	"otoanaliz/gateway"
	"otoanaliz/gemini"
	"otoanaliz/present"
)

func newSimpleCmd(g *globalFlags) *cobra.Command {
	var reportDir string
	cmd := &cobra.Command{
		Use:   "simple",
		Short: "Adım adım formlarla ekspertiz",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimple(cmd, g, reportDir)
		},
	}
	cmd.Flags().StringVar(&reportDir, "out", ".", "Raporların kaydedileceği klasör")
	return cmd
}

// simpleSession is the state of the form-based workflow
type simpleSession struct {
	app       *app
	ctx       context.Context
	assistant *chat.Assistant
	reportDir string
}

func runSimple(cmd *cobra.Command, g *globalFlags, reportDir string) error {
	a, err := setup(g)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(titleStyle.Render(banner))

	s := &simpleSession{
		app:       a,
		ctx:       cmd.Context(),
		assistant: chat.NewAssistant(a.gateway),
		reportDir: reportDir,
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}

	// Main loop
	for {
		if !s.runAppraisal() {
			break
		}
	}

	fmt.Println(subtitleStyle.Render("\nOtoAnaliz'i kullandığınız için teşekkürler!"))
	return nil
}

func runForm(fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
}

// runAppraisal walks one vehicle through the wizard and reports whether
// the user wants to continue.
func (s *simpleSession) runAppraisal() bool {
	ctrl := appraisal.NewController(s.app.gateway)

	// Step 1: Select mode
	var mode appraisal.EntryMode
	err := runForm(huh.NewSelect[appraisal.EntryMode]().
		Title("Nasıl başlamak istersiniz?").
		Options(
			huh.NewOption("Akıllı Analiz - fotoğraftan tanı", appraisal.ModeSmart),
			huh.NewOption("Manuel Giriş - bilgileri kendim gireceğim", appraisal.ModeManual),
		).
		Value(&mode))
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false
		}
		fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		return false
	}
	if err := ctrl.SelectMode(mode); err != nil {
		fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		return false
	}

	// Step 2: Collect photos or details
	if mode == appraisal.ModeSmart {
		if !s.smartUpload(ctrl) {
			return s.askToContinue(nil)
		}
	} else if !s.manualEntry(ctrl) {
		return s.askToContinue(nil)
	}

	// Step 3: Year and mileage
	if ctrl.Step() == appraisal.StepDetailsInput {
		if !s.detailsInput(ctrl) {
			return s.askToContinue(nil)
		}
	}

	// Step 4: Estimate
	var estimateErr error
	err = spinner.New().
		Title("Piyasa değeri hesaplanıyor...").
		Action(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.app.cfg.Timeout)
			defer cancel()
			estimateErr = ctrl.Estimate(ctx)
		}).
		Run()
	if err != nil || estimateErr != nil {
		if estimateErr != nil {
			fmt.Println(errorStyle.Render("Hata: " + estimateErr.Error()))
		} else {
			fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		}
		return s.askToContinue(nil)
	}

	r, err := present.FromSession(ctrl.Snapshot().Session)
	if err != nil {
		fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		return s.askToContinue(nil)
	}
	fmt.Println(formatResult(r))

	// Step 5: Nearby services
	var nearby string
	_ = spinner.New().
		Title("Yakındaki ekspertiz merkezleri aranıyor...").
		Action(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.app.cfg.Timeout)
			defer cancel()
			nearby = present.LookupNearby(ctx, s.app.locator, s.app.gateway, "")
		}).
		Run()
	fmt.Println(subtitleStyle.Render("Yakındaki Ekspertiz Merkezleri"))
	fmt.Println(present.RenderMarkdown(nearby, 80))

	return s.askToContinue(r)
}

func (s *simpleSession) smartUpload(ctrl *appraisal.Controller) bool {
	var source string
	startDir, _ := os.Getwd()

	err := runForm(huh.NewFilePicker().
		Title("Araç fotoğrafını veya klasörünü seçin").
		Description("JPG, PNG, WEBP, HEIC... Klasör seçilirse içindeki tüm fotoğraflar kullanılır").
		Picking(true).
		CurrentDirectory(startDir).
		ShowHidden(false).
		ShowSize(true).
		DirAllowed(true).
		FileAllowed(true).
		Height(15).
		AllowedTypes(gemini.SupportedImageTypes).
		Value(&source))
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		}
		return false
	}
	return s.analyze(ctrl, []string{source})
}

// analyze loads the photos and runs the image analysis
func (s *simpleSession) analyze(ctrl *appraisal.Controller, sources []string) bool {
	images, err := gateway.LoadImages(sources)
	if err != nil {
		fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		return false
	}

	var analyzeErr error
	err = spinner.New().
		Title(fmt.Sprintf("%d fotoğraf analiz ediliyor...", len(images))).
		Action(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.app.cfg.Timeout)
			defer cancel()
			analyzeErr = ctrl.Analyze(ctx, images)
		}).
		Run()
	if err == nil {
		err = analyzeErr
	}
	if err != nil {
		fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		return false
	}

	fmt.Println(formatAnalysis(ctrl.Snapshot().Session.Analysis))
	return true
}

func (s *simpleSession) manualEntry(ctrl *appraisal.Controller) bool {
	var makeName, model, year, km, photo string
	var damaged []string

	panelOptions := make([]huh.Option[string], 0, len(appraisal.Panels))
	for _, p := range appraisal.Panels {
		panelOptions = append(panelOptions, huh.NewOption(p.Name, p.Key))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Marka").Placeholder("Fiat").Value(&makeName).Validate(required),
			huh.NewInput().Title("Model").Placeholder("Egea").Value(&model).Validate(required),
			huh.NewInput().Title("Model yılı").Placeholder("2020").Value(&year).Validate(validYear),
			huh.NewInput().Title("Kilometre").Placeholder("85.000").Value(&km).Validate(validKm),
		),
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Kaporta").
				Description("Boyalı veya değişen parçaları seçin; hiçbiri seçilmezse araç hatasız kabul edilir").
				Options(panelOptions...).
				Value(&damaged),
			huh.NewInput().
				Title("Fotoğraf (isteğe bağlı)").
				Description("Dosya, klasör veya glob deseni").
				Value(&photo),
		),
	).WithTheme(huh.ThemeCatppuccin())

	if err := form.Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		}
		return false
	}

	ctrl.SetMake(makeName)
	ctrl.SetModel(model)
	ctrl.SetYear(year)
	ctrl.SetKm(km)

	// One status question per selected panel
	for _, key := range damaged {
		p, _ := appraisal.PanelByKey(key)
		status := appraisal.StatusPainted
		err := runForm(huh.NewSelect[appraisal.PartStatus]().
			Title(p.Name).
			Options(
				huh.NewOption(appraisal.StatusLocal.Label(), appraisal.StatusLocal),
				huh.NewOption(appraisal.StatusPainted.Label(), appraisal.StatusPainted),
				huh.NewOption(appraisal.StatusChanged.Label(), appraisal.StatusChanged),
			).
			Value(&status))
		if err != nil {
			return false
		}
		if err := ctrl.SetPanel(p, status); err != nil {
			fmt.Println(errorStyle.Render("Hata: " + err.Error()))
			return false
		}
	}

	damages := ctrl.ManualDamages()
	preview := "Hatasız / Orijinal seçildi."
	if len(damages) > 0 {
		preview = "• " + strings.Join(damages, "\n• ")
	}
	fmt.Println(boxStyle.Render("Kaporta Durumu\n\n" + preview))

	if sources := strings.Fields(photo); len(sources) > 0 {
		return s.analyze(ctrl, sources)
	}
	return true
}

func (s *simpleSession) detailsInput(ctrl *appraisal.Controller) bool {
	in := ctrl.Snapshot().Inputs
	year, km := in.Year, in.Km

	err := runForm(
		huh.NewInput().Title("Model yılı").Placeholder("2018").Value(&year).Validate(validYear),
		huh.NewInput().Title("Kilometre").Placeholder("85.000").Value(&km).Validate(validKm),
	)
	if err != nil {
		return false
	}
	ctrl.SetYear(year)
	ctrl.SetKm(km)
	return true
}

// askToContinue offers the next actions. Report saving and chat are only
// offered once there is a result.
func (s *simpleSession) askToContinue(r *present.Result) bool {
	for {
		var choice string
		options := []huh.Option[string]{huh.NewOption("Yeni ekspertiz", "another")}
		if r != nil {
			options = append(options, huh.NewOption("Raporu kaydet", "save"))
		}
		options = append(options,
			huh.NewOption("Asistana soru sor", "chat"),
			huh.NewOption("Çıkış", "exit"),
		)

		err := runForm(huh.NewSelect[string]().
			Title("Sırada ne var?").
			Options(options...).
			Value(&choice))
		if err != nil {
			return false
		}

		switch choice {
		case "another":
			return true
		case "save":
			s.saveReport(r)
		case "chat":
			s.askAssistant()
		default:
			return false
		}
	}
}

func (s *simpleSession) saveReport(r *present.Result) {
	doc := present.BuildReport(r)
	opts := present.WriteOptions{AddFrontMatter: true, AddTableOfContents: true}

	path, err := present.WriteReport(s.reportDir, doc, opts)
	if errors.Is(err, present.ErrReportExists) {
		var overwrite bool
		if ferr := runForm(huh.NewConfirm().
			Title("Rapor zaten var. Üzerine yazılsın mı?").
			Affirmative("Evet").
			Negative("Hayır").
			Value(&overwrite)); ferr != nil || !overwrite {
			fmt.Println(infoStyle.Render("Rapor kaydedilmedi."))
			return
		}
		opts.Overwrite = true
		path, err = present.WriteReport(s.reportDir, doc, opts)
	}
	if err != nil {
		fmt.Println(errorStyle.Render("Hata: " + err.Error()))
		return
	}
	fmt.Println(successStyle.Render("Rapor kaydedildi: " + path))
}

func (s *simpleSession) askAssistant() {
	var question string
	err := runForm(huh.NewText().
		Title("OtoAnaliz Asistan").
		Description(chat.Greeting).
		CharLimit(500).
		Value(&question))
	if err != nil || strings.TrimSpace(question) == "" {
		return
	}

	var reply chat.Message
	_ = spinner.New().
		Title("OtoAnaliz yazıyor...").
		Action(func() {
			ctx, cancel := context.WithTimeout(s.ctx, s.app.cfg.Timeout)
			defer cancel()
			reply, _ = s.assistant.Send(ctx, question)
		}).
		Run()
	fmt.Println(present.RenderMarkdown(reply.Text, 80))
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("bu alan zorunlu")
	}
	return nil
}

func validYear(s string) error {
	if _, err := appraisal.ParseYear(s); err != nil {
		return errors.New("geçerli bir model yılı girin")
	}
	return nil
}

func validKm(s string) error {
	if _, err := appraisal.ParseMileage(s); err != nil {
		return errors.New("geçerli bir kilometre girin")
	}
	return nil
}
