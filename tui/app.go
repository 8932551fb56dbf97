package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"otoanaliz/appraisal"
	"otoanaliz/chat"
	"otoanaliz/gateway"
	"otoanaliz/gemini"
	"otoanaliz/geo"
	"otoanaliz/present"
)

// DefaultTimeout bounds a single analysis or estimation call
const DefaultTimeout = 3 * time.Minute

// Services are the collaborators of the app
type Services struct {
	Appraiser appraisal.Appraiser
	Nearby    present.NearbyFinder
	Chat      chat.Backend
	Locator   geo.Locator

	// Exchanges feeds the AI activity panel; nil disables it
	Exchanges <-chan gemini.Exchange

	// ReportDir is where the result screen saves reports
	ReportDir string

	Timeout time.Duration
}

// form fields, in focus order
const (
	fieldMake = iota
	fieldModel
	fieldYear
	fieldKm
	fieldPhotos
	fieldSchematic
)

// image sources on the smart upload screen
const (
	sourcePath = iota
	sourcePicker
)

var fieldLabels = [...]string{
	fieldMake:   "Marka",
	fieldModel:  "Model",
	fieldYear:   "Model Yılı",
	fieldKm:     "Kilometre",
	fieldPhotos: "Fotoğraf (isteğe bağlı)",
}

// Messages produced by commands
type (
	imagesLoadedMsg struct {
		images []appraisal.Image
		err    error
	}

	analysisResultMsg struct {
		ticket   appraisal.Ticket
		analysis *appraisal.VehicleAnalysis
		err      error
	}

	estimateResultMsg struct {
		ticket   appraisal.Ticket
		estimate *appraisal.PriceEstimate
		err      error
	}

	nearbyMsg struct {
		gen  int
		text string
	}

	reportSavedMsg struct {
		path string
		err  error
	}

	fileSelectedMsg string
)

// App is the Bubble Tea model of the appraisal wizard
type App struct {
	svc  Services
	ctrl *appraisal.Controller

	// UI components
	spinner    spinner.Model
	filepicker filepicker.Model
	pathInput  textinput.Model
	fields     [fieldPhotos + 1]textinput.Model
	schematic  Schematic
	resultView viewport.Model
	chat       ChatPanel
	feed       *AIFeed

	// Selection state
	modeIndex int
	source    int
	focus     int
	notice    string

	// Result state
	result     *present.Result
	carousel   present.Carousel
	nearby     string
	nearbyBusy bool
	nearbyGen  int
	reportPath string

	showFeed bool
	width    int
	height   int
	quitting bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the app in its initial state
func NewApp(svc Services) App {
	if svc.Timeout <= 0 {
		svc.Timeout = DefaultTimeout
	}
	if svc.ReportDir == "" {
		svc.ReportDir = "."
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorBrand)

	fp := filepicker.New()
	fp.AllowedTypes = gemini.SupportedImageTypes
	fp.DirAllowed = true
	fp.FileAllowed = true
	fp.ShowSize = true
	fp.Height = 10

	path := textinput.New()
	path.Placeholder = "./fotograflar veya ./araba/*.jpg"
	path.CharLimit = 512
	path.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	m := App{
		svc:        svc,
		ctrl:       appraisal.NewController(svc.Appraiser),
		spinner:    s,
		filepicker: fp,
		pathInput:  path,
		schematic:  NewSchematic(),
		resultView: viewport.New(76, 16),
		chat:       NewChatPanel(chat.NewAssistant(svc.Chat), 40, 16),
		feed:       NewAIFeed(76, 6),
		width:      80,
		height:     24,
		ctx:        ctx,
		cancel:     cancel,
	}
	for i := range m.fields {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 64
		ti.Width = 30
		m.fields[i] = ti
	}
	m.fields[fieldMake].Placeholder = "BMW"
	m.fields[fieldModel].Placeholder = "320i"
	m.fields[fieldYear].Placeholder = "2018"
	m.fields[fieldKm].Placeholder = "85.000"
	m.fields[fieldPhotos].Placeholder = "./araba.jpg"
	m.fields[fieldPhotos].CharLimit = 512
	return m
}

// Init starts the spinner, the file picker and the activity subscription
func (m App) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.filepicker.Init(),
		waitForExchange(m.svc.Exchanges),
	)
}

// Update handles messages
func (m App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		case "ctrl+r":
			return m.reset()
		case "ctrl+t":
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Toggle()
			if m.chat.Open() {
				m.blurFields()
			} else {
				cmd = m.refocus()
			}
			return m, cmd
		case "ctrl+a":
			m.showFeed = !m.showFeed
			return m, nil
		}
		if m.chat.Open() {
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		}
		return m.handleStepInput(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case exchangeMsg:
		m.feed.AddExchange(gemini.Exchange(msg))
		return m, waitForExchange(m.svc.Exchanges)

	case chatReplyMsg:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd

	case fileSelectedMsg:
		m.notice = ""
		return m, loadImagesCmd([]string{string(msg)})

	case imagesLoadedMsg:
		if msg.err != nil {
			m.notice = "Fotoğraflar okunamadı: " + msg.err.Error()
			return m, nil
		}
		return m.startAnalysis(msg.images)

	case analysisResultMsg:
		if !m.ctrl.FinishAnalysis(msg.ticket, msg.analysis, msg.err) {
			return m, nil
		}
		m.loadFields()
		cmd := m.refocus()
		return m, cmd

	case estimateResultMsg:
		if !m.ctrl.FinishEstimate(msg.ticket, msg.estimate, msg.err) {
			return m, nil
		}
		if m.ctrl.Step() != appraisal.StepResult {
			cmd := m.refocus()
			return m, cmd
		}
		return m.showResult()

	case nearbyMsg:
		if msg.gen != m.nearbyGen {
			return m, nil
		}
		m.nearbyBusy = false
		m.nearby = msg.text
		m.refreshResult()
		return m, nil

	case reportSavedMsg:
		if msg.err != nil {
			if errors.Is(msg.err, present.ErrReportExists) {
				m.notice = "Rapor zaten var. Üzerine yazmak için S tuşuna basın."
			} else {
				m.notice = "Rapor kaydedilemedi: " + msg.err.Error()
			}
		} else {
			m.reportPath = msg.path
			m.notice = "Rapor kaydedildi: " + msg.path
		}
		m.refreshResult()
		return m, nil
	}

	// Non-key messages for sub-components
	snap := m.ctrl.Snapshot()
	if snap.Session.Step == appraisal.StepUpload && snap.Mode == appraisal.ModeSmart {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleStepInput handles keyboard input for the active step
func (m App) handleStepInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.ctrl.Snapshot()
	switch snap.Session.Step {
	case appraisal.StepUpload:
		switch snap.Mode {
		case appraisal.ModeNone:
			return m.handleModeMenu(msg)
		case appraisal.ModeSmart:
			return m.handleSmartUpload(msg)
		default:
			return m.handleForm(msg, snap)
		}

	case appraisal.StepDetailsInput:
		return m.handleForm(msg, snap)

	case appraisal.StepResult:
		switch msg.String() {
		case "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		case "left", "h":
			m.carousel.Prev()
			m.refreshResult()
		case "right", "l":
			m.carousel.Next()
			m.refreshResult()
		case "s", "S":
			if m.result != nil {
				return m, saveReportCmd(m.result, m.svc.ReportDir, msg.String() == "S")
			}
		default:
			var cmd tea.Cmd
			m.resultView, cmd = m.resultView.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m App) handleModeMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		m.cancel()
		return m, tea.Quit
	case "up", "k":
		if m.modeIndex > 0 {
			m.modeIndex--
		}
	case "down", "j":
		if m.modeIndex < 1 {
			m.modeIndex++
		}
	case "enter":
		mode := appraisal.ModeSmart
		if m.modeIndex == 1 {
			mode = appraisal.ModeManual
		}
		if err := m.ctrl.SelectMode(mode); err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.focus = fieldMake
		m.source = sourcePath
		cmd := m.refocus()
		return m, cmd
	}
	return m, nil
}

func (m App) handleSmartUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "tab" {
		if m.source == sourcePath {
			m.source = sourcePicker
			m.pathInput.Blur()
			return m, m.filepicker.Init()
		}
		m.source = sourcePath
		cmd := m.pathInput.Focus()
		return m, cmd
	}

	if m.source == sourcePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)
		if ok, path := m.filepicker.DidSelectFile(msg); ok {
			return m, func() tea.Msg { return fileSelectedMsg(path) }
		}
		return m, cmd
	}

	if msg.String() == "enter" {
		sources := strings.Fields(m.pathInput.Value())
		if len(sources) == 0 {
			m.notice = "Lütfen en az bir fotoğraf seçin."
			return m, nil
		}
		m.notice = ""
		return m, loadImagesCmd(sources)
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

// focusOrder lists the focusable fields of the form for the current state
func (m App) focusOrder(snap appraisal.Snapshot) []int {
	var order []int
	locked := snap.Mode == appraisal.ModeSmart && snap.Session.Analysis != nil
	if !locked {
		order = append(order, fieldMake, fieldModel)
	}
	order = append(order, fieldYear, fieldKm)
	if snap.Mode == appraisal.ModeManual {
		if snap.Session.Step == appraisal.StepUpload {
			order = append(order, fieldPhotos)
		}
		order = append(order, fieldSchematic)
	}
	return order
}

func (m App) handleForm(msg tea.KeyMsg, snap appraisal.Snapshot) (tea.Model, tea.Cmd) {
	order := m.focusOrder(snap)
	pos := indexOf(order, m.focus)
	if pos < 0 {
		pos = 0
		m.focus = order[0]
	}

	switch msg.String() {
	case "tab", "shift+tab":
		if msg.String() == "tab" {
			pos = (pos + 1) % len(order)
		} else {
			pos = (pos - 1 + len(order)) % len(order)
		}
		m.focus = order[pos]
		cmd := m.refocus()
		return m, cmd
	case "ctrl+g":
		return m.submit()
	}

	if m.focus == fieldSchematic {
		var toggle bool
		m.schematic, toggle = m.schematic.HandleKey(msg.String())
		if toggle {
			if _, err := m.ctrl.TogglePanel(m.schematic.Selected()); err != nil {
				m.notice = err.Error()
			}
		}
		return m, nil
	}

	if msg.String() == "enter" {
		// enter walks the text fields and submits from the last one
		last := order[len(order)-1]
		if last == fieldSchematic && len(order) > 1 {
			last = order[len(order)-2]
		}
		if m.focus == last {
			return m.submit()
		}
		m.focus = order[pos+1]
		cmd := m.refocus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	m.syncField(m.focus)
	return m, cmd
}

// syncField pushes a text field into the controller, restoring it when the
// controller refuses the edit.
func (m *App) syncField(field int) {
	v := m.fields[field].Value()
	switch field {
	case fieldMake:
		if !m.ctrl.SetMake(v) {
			m.fields[field].SetValue(m.ctrl.Snapshot().Inputs.Make)
		}
	case fieldModel:
		if !m.ctrl.SetModel(v) {
			m.fields[field].SetValue(m.ctrl.Snapshot().Inputs.Model)
		}
	case fieldYear:
		m.ctrl.SetYear(v)
	case fieldKm:
		m.ctrl.SetKm(v)
	}
}

// loadFields copies the controller inputs into the text fields
func (m *App) loadFields() {
	in := m.ctrl.Snapshot().Inputs
	m.fields[fieldMake].SetValue(in.Make)
	m.fields[fieldModel].SetValue(in.Model)
	m.fields[fieldYear].SetValue(in.Year)
	m.fields[fieldKm].SetValue(in.Km)
}

func (m *App) blurFields() {
	for i := range m.fields {
		m.fields[i].Blur()
	}
	m.pathInput.Blur()
}

// refocus focuses the input that matches the current step and focus index
func (m *App) refocus() tea.Cmd {
	m.blurFields()
	snap := m.ctrl.Snapshot()
	switch snap.Session.Step {
	case appraisal.StepUpload:
		if snap.Mode == appraisal.ModeSmart {
			if m.source == sourcePath {
				return m.pathInput.Focus()
			}
			return nil
		}
		if snap.Mode == appraisal.ModeNone {
			return nil
		}
	case appraisal.StepDetailsInput:
	default:
		return nil
	}

	order := m.focusOrder(snap)
	if indexOf(order, m.focus) < 0 {
		m.focus = order[0]
	}
	if m.focus == fieldSchematic {
		return nil
	}
	return m.fields[m.focus].Focus()
}

// submit continues from the form: manual entries with a photo are analyzed
// first, everything else goes straight to the estimate.
func (m App) submit() (tea.Model, tea.Cmd) {
	snap := m.ctrl.Snapshot()
	if snap.Session.Step == appraisal.StepUpload && snap.Mode == appraisal.ModeManual {
		if sources := strings.Fields(m.fields[fieldPhotos].Value()); len(sources) > 0 {
			if !m.ctrl.CanSubmit() {
				m.notice = "Lütfen marka, model, yıl ve kilometre bilgilerini girin."
				return m, nil
			}
			m.notice = ""
			return m, loadImagesCmd(sources)
		}
	}

	ticket, req, err := m.ctrl.BeginEstimate()
	if err != nil {
		switch {
		case errors.Is(err, appraisal.ErrMissingDetails):
			m.notice = "Lütfen zorunlu alanları doldurun."
		default:
			m.notice = "Geçersiz bilgi: " + err.Error()
		}
		return m, nil
	}
	m.notice = ""
	m.blurFields()
	return m, tea.Batch(m.spinner.Tick, m.estimateCmd(ticket, req))
}

func (m App) startAnalysis(images []appraisal.Image) (tea.Model, tea.Cmd) {
	ticket, err := m.ctrl.BeginAnalysis(images)
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.notice = ""
	m.blurFields()
	return m, tea.Batch(m.spinner.Tick, m.analyzeCmd(ticket, images))
}

func (m App) showResult() (tea.Model, tea.Cmd) {
	r, err := present.FromSession(m.ctrl.Snapshot().Session)
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.result = r
	m.carousel = present.Carousel{Len: len(r.Images)}
	m.reportPath = ""
	m.nearby = ""
	m.nearbyBusy = true
	m.nearbyGen++
	m.resultView.GotoTop()
	m.refreshResult()
	return m, m.nearbyCmd(m.nearbyGen)
}

// reset clears the wizard. Chat and the activity feed are kept.
func (m App) reset() (tea.Model, tea.Cmd) {
	m.ctrl.Reset()
	for i := range m.fields {
		m.fields[i].SetValue("")
	}
	m.pathInput.SetValue("")
	m.blurFields()
	m.schematic = NewSchematic()
	m.modeIndex = 0
	m.source = sourcePath
	m.focus = fieldMake
	m.notice = ""
	m.result = nil
	m.carousel = present.Carousel{}
	m.nearby = ""
	m.nearbyBusy = false
	m.nearbyGen++
	m.reportPath = ""
	return m, nil
}

// layout sizes the components after a resize
func (m *App) layout() {
	main := m.mainWidth()
	m.resultView.Width = main
	m.resultView.Height = max(m.height-14, 6)
	m.feed.SetSize(max(main-4, 20), 6)
	m.chat.SetSize(max(m.width-main-6, 30), max(m.height-10, 8))
	m.filepicker.Height = max(m.height-18, 5)
	m.refreshResult()
}

// mainWidth is the width left for the wizard when the chat panel is docked
func (m App) mainWidth() int {
	if m.width >= 120 {
		return m.width * 6 / 10
	}
	return max(m.width-4, 40)
}

// Commands

func loadImagesCmd(sources []string) tea.Cmd {
	return func() tea.Msg {
		images, err := gateway.LoadImages(sources)
		return imagesLoadedMsg{images: images, err: err}
	}
}

func (m App) analyzeCmd(ticket appraisal.Ticket, images []appraisal.Image) tea.Cmd {
	appraiser, parent, timeout := m.svc.Appraiser, m.ctx, m.svc.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		a, err := appraiser.AnalyzeImages(ctx, images)
		return analysisResultMsg{ticket: ticket, analysis: a, err: err}
	}
}

func (m App) estimateCmd(ticket appraisal.Ticket, req appraisal.EstimateRequest) tea.Cmd {
	appraiser, parent, timeout := m.svc.Appraiser, m.ctx, m.svc.Timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		e, err := appraiser.EstimatePrice(ctx, req)
		return estimateResultMsg{ticket: ticket, estimate: e, err: err}
	}
}

func (m App) nearbyCmd(gen int) tea.Cmd {
	finder, locator, parent, timeout := m.svc.Nearby, m.svc.Locator, m.ctx, m.svc.Timeout
	if finder == nil {
		return func() tea.Msg { return nearbyMsg{gen: gen, text: gateway.MsgNearbyUnavailable} }
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		return nearbyMsg{gen: gen, text: present.LookupNearby(ctx, locator, finder, "")}
	}
}

func saveReportCmd(r *present.Result, dir string, overwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := present.WriteReport(dir, present.BuildReport(r), present.WriteOptions{
			Overwrite:      overwrite,
			AddFrontMatter: true,
		})
		return reportSavedMsg{path: path, err: err}
	}
}

// Getter methods for external access
func (m App) Quitting() bool                     { return m.quitting }
func (m App) Controller() *appraisal.Controller { return m.ctrl }

// Run starts the full-screen app and blocks until it exits
func Run(svc Services) error {
	app := NewApp(svc)
	defer app.cancel()
	_, err := tea.NewProgram(app, tea.WithAltScreen()).Run()
	return err
}

func indexOf(order []int, v int) int {
	for i, o := range order {
		if o == v {
			return i
		}
	}
	return -1
}
