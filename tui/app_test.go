package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"otoanaliz/appraisal"
	"otoanaliz/chat"
	"otoanaliz/gemini"
	"otoanaliz/geo"
	"otoanaliz/present"
)

type fakeAppraiser struct {
	mu       sync.Mutex
	analysis *appraisal.VehicleAnalysis
	estimate *appraisal.PriceEstimate
	err      error

	gotImages  []appraisal.Image
	gotRequest *appraisal.EstimateRequest
}

func (f *fakeAppraiser) AnalyzeImages(ctx context.Context, images []appraisal.Image) (*appraisal.VehicleAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotImages = images
	if f.err != nil {
		return nil, f.err
	}
	return f.analysis.Clone(), nil
}

func (f *fakeAppraiser) EstimatePrice(ctx context.Context, req appraisal.EstimateRequest) (*appraisal.PriceEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotRequest = &req
	if f.err != nil {
		return nil, f.err
	}
	e := *f.estimate
	return &e, nil
}

func (f *fakeAppraiser) request() *appraisal.EstimateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gotRequest
}

type fakeFinder struct{}

func (fakeFinder) FindNearbyServices(ctx context.Context, lat, lng float64, query string) string {
	return "**Usta Ekspertiz** - Kadıköy"
}

type echoBackend struct{}

func (echoBackend) Chat(ctx context.Context, history []chat.Turn, message string) string {
	return "yanıt: " + message
}

func newTestApp(t *testing.T) (App, *fakeAppraiser) {
	t.Helper()
	fa := &fakeAppraiser{
		analysis: &appraisal.VehicleAnalysis{
			Make: "BMW", Model: "320i", Color: "Beyaz", VisualCondition: "Temiz",
			IdentifiedDamages: []string{"Sağ ön çamurlukta çizik"}, Confidence: 0.92,
		},
		estimate: &appraisal.PriceEstimate{
			MinPrice: 1400000, MaxPrice: 1600000, AvgPrice: 1500000, Currency: "TL",
			BargainingMargin: 50000, Reasoning: "Temiz araç", MarketTrend: appraisal.TrendStable,
		},
	}
	loc, err := geo.NewStatic(geo.Position{Lat: 41.0, Lng: 29.0})
	if err != nil {
		t.Fatal(err)
	}
	m := NewApp(Services{
		Appraiser: fa,
		Nearby:    fakeFinder{},
		Chat:      echoBackend{},
		Locator:   loc,
		ReportDir: t.TempDir(),
	})
	return m, fa
}

// collect runs cmd and returns the messages it produces. Commands that do not
// finish quickly, such as spinner ticks and cursor blinks, are ignored.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, collect(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// send delivers msg and then every message its commands produce, like the
// runtime would.
func send(m App, msg tea.Msg) App {
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		updated, cmd := m.Update(next)
		m = updated.(App)
		for _, out := range collect(cmd) {
			switch out.(type) {
			case imagesLoadedMsg, analysisResultMsg, estimateResultMsg, nearbyMsg, reportSavedMsg, chatReplyMsg, fileSelectedMsg:
				queue = append(queue, out)
			}
		}
	}
	return m
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func typeText(m App, s string) App {
	return send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "on.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewApp(t *testing.T) {
	m, _ := newTestApp(t)

	if m.width != 80 || m.height != 24 {
		t.Errorf("size = %dx%d, want 80x24", m.width, m.height)
	}
	if m.svc.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", m.svc.Timeout, DefaultTimeout)
	}
	if s := m.ctrl.Step(); s != appraisal.StepUpload {
		t.Errorf("step = %v, want upload", s)
	}
	if m.Init() == nil {
		t.Error("Init returned nil")
	}
	if !strings.Contains(m.View(), "Akıllı Analiz") {
		t.Error("mode menu not rendered")
	}
}

func TestModeMenuNavigation(t *testing.T) {
	m, _ := newTestApp(t)

	m = send(m, key(tea.KeyDown))
	if m.modeIndex != 1 {
		t.Fatalf("modeIndex = %d, want 1", m.modeIndex)
	}
	m = send(m, key(tea.KeyDown))
	if m.modeIndex != 1 {
		t.Errorf("modeIndex moved past the last option: %d", m.modeIndex)
	}
	m = send(m, key(tea.KeyUp))
	m = send(m, key(tea.KeyEnter))
	if m.ctrl.Mode() != appraisal.ModeSmart {
		t.Errorf("mode = %v, want smart", m.ctrl.Mode())
	}
}

func TestSmartFlow(t *testing.T) {
	m, fa := newTestApp(t)
	img := writeImage(t)

	m = send(m, key(tea.KeyEnter)) // smart
	m = typeText(m, img)
	m = send(m, key(tea.KeyEnter))

	if s := m.ctrl.Step(); s != appraisal.StepDetailsInput {
		t.Fatalf("step = %v, want details_input (notice %q)", s, m.notice)
	}
	if len(fa.gotImages) != 1 || fa.gotImages[0].Name != "on.jpg" {
		t.Errorf("analyzed images = %+v", fa.gotImages)
	}
	if got := m.fields[fieldMake].Value(); got != "BMW" {
		t.Errorf("make field = %q, want BMW", got)
	}
	if m.focus != fieldYear {
		t.Errorf("focus = %d, want year", m.focus)
	}

	m = typeText(m, "2018")
	m = send(m, key(tea.KeyTab))
	m = typeText(m, "85.000")
	m = send(m, key(tea.KeyCtrlG))

	if s := m.ctrl.Step(); s != appraisal.StepResult {
		t.Fatalf("step = %v, want result (notice %q)", s, m.notice)
	}
	req := fa.request()
	if req == nil || req.Year != 2018 || req.Km != 85000 || req.Analysis.Make != "BMW" {
		t.Errorf("estimate request = %+v", req)
	}
	if m.nearbyBusy || !strings.Contains(m.nearby, "Usta Ekspertiz") {
		t.Errorf("nearby = %q busy=%v", m.nearby, m.nearbyBusy)
	}

	content := m.renderResult(100)
	for _, want := range []string{"BMW 320i", "Beklenen satış fiyatı", "₺1.450.000", "Stabil", "Sağ ön çamurlukta çizik"} {
		if !strings.Contains(content, want) {
			t.Errorf("result missing %q", want)
		}
	}
}

func TestSmartDetailsLockMakeAndModel(t *testing.T) {
	m, _ := newTestApp(t)
	m = send(m, key(tea.KeyEnter))
	m = typeText(m, writeImage(t))
	m = send(m, key(tea.KeyEnter))

	order := m.focusOrder(m.ctrl.Snapshot())
	if indexOf(order, fieldMake) >= 0 || indexOf(order, fieldModel) >= 0 {
		t.Errorf("focus order %v includes locked fields", order)
	}
	m.fields[fieldMake].SetValue("Audi")
	m.syncField(fieldMake)
	if got := m.fields[fieldMake].Value(); got != "BMW" {
		t.Errorf("locked make field = %q, want BMW restored", got)
	}
}

func TestAnalysisFailureReturnsToUpload(t *testing.T) {
	m, fa := newTestApp(t)
	fa.err = context.DeadlineExceeded

	m = send(m, key(tea.KeyEnter))
	m = typeText(m, writeImage(t))
	m = send(m, key(tea.KeyEnter))

	snap := m.ctrl.Snapshot()
	if snap.Session.Step != appraisal.StepUpload {
		t.Fatalf("step = %v, want upload", snap.Session.Step)
	}
	if !strings.Contains(m.View(), "Hata:") {
		t.Error("error not shown")
	}
}

func TestSmartUploadRequiresPath(t *testing.T) {
	m, _ := newTestApp(t)
	m = send(m, key(tea.KeyEnter))
	m = send(m, key(tea.KeyEnter))

	if m.notice == "" {
		t.Error("expected a notice for an empty path")
	}
	if s := m.ctrl.Step(); s != appraisal.StepUpload {
		t.Errorf("step = %v, want upload", s)
	}

	m = typeText(m, filepath.Join(t.TempDir(), "yok.jpg"))
	m = send(m, key(tea.KeyEnter))
	if !strings.HasPrefix(m.notice, "Fotoğraflar okunamadı") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestManualFlowWithSchematic(t *testing.T) {
	m, fa := newTestApp(t)

	m = send(m, key(tea.KeyDown))
	m = send(m, key(tea.KeyEnter)) // manual
	m = typeText(m, "Fiat")
	m = send(m, key(tea.KeyTab))
	m = typeText(m, "Egea")
	m = send(m, key(tea.KeyTab))
	m = typeText(m, "2020")
	m = send(m, key(tea.KeyTab))
	m = typeText(m, "40000")
	m = send(m, key(tea.KeyTab)) // photos
	m = send(m, key(tea.KeyTab)) // schematic

	if m.focus != fieldSchematic {
		t.Fatalf("focus = %d, want schematic", m.focus)
	}
	m = send(m, key(tea.KeySpace))
	if got := m.ctrl.Snapshot().Parts.Status(appraisal.Hood); got != appraisal.StatusLocal {
		t.Fatalf("hood = %v, want local", got)
	}
	if !strings.Contains(m.View(), "Kaporta Durumu") {
		t.Error("schematic not rendered")
	}

	m = send(m, key(tea.KeyCtrlG))
	if s := m.ctrl.Step(); s != appraisal.StepResult {
		t.Fatalf("step = %v, want result (notice %q)", s, m.notice)
	}
	if fa.gotImages != nil {
		t.Error("manual entry without photo should skip analysis")
	}
	req := fa.request()
	want := appraisal.Hood.Name + ": " + appraisal.StatusLocal.Label()
	if req == nil || len(req.Analysis.IdentifiedDamages) != 1 || req.Analysis.IdentifiedDamages[0] != want {
		t.Errorf("damages = %+v, want [%s]", req, want)
	}
	if req.Analysis.Make != "Fiat" || req.Analysis.Model != "Egea" {
		t.Errorf("vehicle = %s %s", req.Analysis.Make, req.Analysis.Model)
	}
}

func TestManualSubmitMissingDetails(t *testing.T) {
	m, fa := newTestApp(t)

	m = send(m, key(tea.KeyDown))
	m = send(m, key(tea.KeyEnter))
	m = typeText(m, "Fiat")
	m = send(m, key(tea.KeyCtrlG))

	if m.notice == "" {
		t.Error("expected a missing details notice")
	}
	if fa.request() != nil {
		t.Error("estimate should not be requested")
	}
}

func TestResetDropsInFlightEstimate(t *testing.T) {
	m, fa := newTestApp(t)
	m = send(m, key(tea.KeyDown))
	m = send(m, key(tea.KeyEnter))
	m.ctrl.SetMake("Fiat")
	m.ctrl.SetModel("Egea")
	m.ctrl.SetYear("2020")
	m.ctrl.SetKm("40000")

	ticket, _, err := m.ctrl.BeginEstimate()
	if err != nil {
		t.Fatal(err)
	}
	m = send(m, key(tea.KeyCtrlR))
	m = send(m, estimateResultMsg{ticket: ticket, estimate: fa.estimate})

	if s := m.ctrl.Step(); s != appraisal.StepUpload {
		t.Errorf("step = %v, want upload after reset", s)
	}
	if m.ctrl.Mode() != appraisal.ModeNone {
		t.Errorf("mode = %v, want none", m.ctrl.Mode())
	}
	if m.result != nil {
		t.Error("result survived reset")
	}
}

func TestStaleNearbyIgnored(t *testing.T) {
	m, _ := newTestApp(t)
	m.nearbyGen = 3
	m.nearbyBusy = true

	m = send(m, nearbyMsg{gen: 2, text: "eski"})
	if m.nearby != "" || !m.nearbyBusy {
		t.Errorf("stale nearby applied: %q", m.nearby)
	}
	m = send(m, nearbyMsg{gen: 3, text: "yeni"})
	if m.nearby != "yeni" || m.nearbyBusy {
		t.Errorf("nearby = %q busy=%v", m.nearby, m.nearbyBusy)
	}
}

func TestNearbyWithoutLocation(t *testing.T) {
	m, _ := newTestApp(t)
	m.svc.Locator = geo.Denied()

	msgs := collect(m.nearbyCmd(m.nearbyGen))
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if got := msgs[0].(nearbyMsg).text; got != present.MsgLocationDenied {
		t.Errorf("text = %q, want %q", got, present.MsgLocationDenied)
	}
}

func finishedApp(t *testing.T) App {
	t.Helper()
	m, _ := newTestApp(t)
	m = send(m, key(tea.KeyEnter))
	m = typeText(m, writeImage(t))
	m = send(m, key(tea.KeyEnter))
	m = typeText(m, "2018")
	m = send(m, key(tea.KeyTab))
	m = typeText(m, "85000")
	m = send(m, key(tea.KeyEnter))
	if s := m.ctrl.Step(); s != appraisal.StepResult {
		t.Fatalf("step = %v, want result (notice %q)", s, m.notice)
	}
	return m
}

func TestSaveReport(t *testing.T) {
	m := finishedApp(t)

	m = typeText(m, "s")
	if m.reportPath == "" {
		t.Fatalf("report not saved: %q", m.notice)
	}
	if filepath.Base(m.reportPath) != "bmw_320i_2018.md" {
		t.Errorf("report path = %s", m.reportPath)
	}
	if _, err := os.Stat(m.reportPath); err != nil {
		t.Fatal(err)
	}

	m = typeText(m, "s")
	if !strings.Contains(m.notice, "S tuşuna") {
		t.Errorf("notice = %q, want overwrite hint", m.notice)
	}
	m = typeText(m, "S")
	if !strings.HasPrefix(m.notice, "Rapor kaydedildi") {
		t.Errorf("notice = %q after overwrite", m.notice)
	}
}

func TestResultCarousel(t *testing.T) {
	m := finishedApp(t)
	if m.carousel.Len != 1 {
		t.Fatalf("carousel len = %d", m.carousel.Len)
	}
	m = send(m, key(tea.KeyRight))
	if m.carousel.Index != 0 {
		t.Errorf("single photo carousel moved to %d", m.carousel.Index)
	}
}

func TestChatToggleAndReply(t *testing.T) {
	m, _ := newTestApp(t)

	m = send(m, key(tea.KeyCtrlT))
	if !m.chat.Open() {
		t.Fatal("chat not open")
	}
	m = typeText(m, "Fiyat nasıl?")
	m = send(m, key(tea.KeyEnter))

	msgs := m.chat.assistant.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want greeting, question and reply", len(msgs))
	}
	if msgs[2].Text != "yanıt: Fiyat nasıl?" {
		t.Errorf("reply = %q", msgs[2].Text)
	}
	if m.ctrl.Mode() != appraisal.ModeNone {
		t.Error("keys leaked into the wizard while chat was open")
	}

	m = send(m, key(tea.KeyCtrlT))
	if m.chat.Open() {
		t.Error("chat still open")
	}
	// a reply arriving after close is still recorded
	m = send(m, chatReplyMsg{text: "geç yanıt"})
	if n := len(m.chat.assistant.Messages()); n != 4 {
		t.Errorf("got %d messages after late reply, want 4", n)
	}
}

func TestExchangeFeed(t *testing.T) {
	obs, ch := ExchangeChannel(4)
	m, _ := newTestApp(t)
	m.svc.Exchanges = ch

	obs(gemini.Exchange{Phase: gemini.PhaseRequest, Operation: "price", Model: "gemini-2.5-flash", Time: time.Now()})
	msgs := collect(waitForExchange(ch))
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}

	updated, cmd := m.Update(msgs[0])
	m = updated.(App)
	if len(m.feed.Messages) != 1 {
		t.Fatalf("feed has %d messages", len(m.feed.Messages))
	}
	if cmd == nil {
		t.Error("subscription not re-armed")
	}
	if !strings.Contains(m.feed.Messages[0].Title, "Fiyat tahmini") {
		t.Errorf("title = %q", m.feed.Messages[0].Title)
	}

	m = send(m, key(tea.KeyCtrlA))
	if !m.showFeed || !strings.Contains(m.View(), "Yapay Zeka Etkinliği") {
		t.Error("feed not shown")
	}
}

func TestQuit(t *testing.T) {
	m, _ := newTestApp(t)
	updated, cmd := m.Update(key(tea.KeyCtrlC))
	m = updated.(App)

	if !m.Quitting() {
		t.Error("expected quitting")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
	if m.ctx.Err() == nil {
		t.Error("context not cancelled")
	}
}

func TestWindowResize(t *testing.T) {
	m, _ := newTestApp(t)
	m = send(m, tea.WindowSizeMsg{Width: 160, Height: 50})

	if m.width != 160 || m.height != 50 {
		t.Errorf("size = %dx%d", m.width, m.height)
	}
	if m.mainWidth() != 96 {
		t.Errorf("mainWidth = %d, want 96", m.mainWidth())
	}
	if m.resultView.Width != 96 {
		t.Errorf("result width = %d", m.resultView.Width)
	}
}
