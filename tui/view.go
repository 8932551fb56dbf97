package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"otoanaliz/appraisal"
	"otoanaliz/gemini"
	"otoanaliz/present"
)

var modeOptions = []struct {
	name string
	desc string
}{
	{"Akıllı Analiz", "Fotoğraftan marka, model ve hasarları yapay zeka belirlesin"},
	{"Manuel Giriş", "Araç bilgilerini ve kaporta durumunu kendiniz girin"},
}

// View renders the app
func (m App) View() string {
	if m.quitting {
		return MutedStyle.Render("Güle güle!\n")
	}

	snap := m.ctrl.Snapshot()

	var b strings.Builder
	b.WriteString(Header())
	b.WriteString("\n\n")
	b.WriteString(StepIndicator(snap.Session.Step))
	b.WriteString("\n")

	var main string
	switch snap.Session.Step {
	case appraisal.StepUpload:
		switch snap.Mode {
		case appraisal.ModeNone:
			main = m.renderModeMenu()
		case appraisal.ModeSmart:
			main = m.renderSmartUpload()
		default:
			main = m.renderForm(snap)
		}
	case appraisal.StepAnalyzingImage:
		main = m.renderBusy("Fotoğraflar analiz ediliyor...", fmt.Sprintf("%d fotoğraf yükleniyor", len(snap.Session.Images)))
	case appraisal.StepDetailsInput:
		main = m.renderForm(snap)
	case appraisal.StepCalculatingPrice:
		main = m.renderBusy("Piyasa değeri hesaplanıyor...", "Güncel ilanlar ve piyasa verileri taranıyor")
	case appraisal.StepResult:
		main = m.resultView.View()
	}

	if snap.Session.Error != "" && snap.Session.Step != appraisal.StepResult {
		main += "\n" + ErrorStyle.Render("Hata: "+snap.Session.Error)
	}
	if m.notice != "" {
		main += "\n" + WarningStyle.Render(m.notice)
	}

	if m.chat.Open() {
		if m.width >= 120 {
			main = lipgloss.JoinHorizontal(lipgloss.Top, lipgloss.NewStyle().Width(m.mainWidth()).Render(main), " ", m.chat.View())
		} else {
			main += "\n" + m.chat.View()
		}
	}
	b.WriteString(main)

	if m.showFeed {
		b.WriteString("\n")
		b.WriteString(RenderFeedBox(m.feed, "Yapay Zeka Etkinliği", max(m.mainWidth()-4, 20)))
	}

	b.WriteString("\n\n")
	b.WriteString(m.renderHelp(snap))
	return b.String()
}

func (m App) renderModeMenu() string {
	title := TitleStyle.Render("Nasıl başlamak istersiniz?")

	var items strings.Builder
	for i, opt := range modeOptions {
		cursor := "  "
		style := BodyStyle
		if i == m.modeIndex {
			cursor = "> "
			style = SelectedStyle
		}
		items.WriteString(style.Render(cursor+opt.name) + "\n")
		items.WriteString(MutedStyle.Render("    "+opt.desc) + "\n")
	}
	return BoxStyle.Render(title + "\n" + strings.TrimRight(items.String(), "\n"))
}

func (m App) renderSmartUpload() string {
	title := TitleStyle.Render("Araç fotoğraflarını yükleyin")
	if m.source == sourcePicker {
		desc := MutedStyle.Render("Bir fotoğraf seçin. tab ile yol girişine dönün.")
		return BoxStyle.Render(title + "\n" + desc + "\n\n" + m.filepicker.View())
	}
	desc := MutedStyle.Render("Dosya, klasör veya desen girin; birden fazlasını boşlukla ayırın.\ntab ile dosya seçiciye geçin.")
	return BoxStyle.Render(title + "\n" + desc + "\n\n" + m.pathInput.View())
}

// renderForm draws the manual entry form or the details step
func (m App) renderForm(snap appraisal.Snapshot) string {
	var title string
	if snap.Session.Step == appraisal.StepUpload {
		title = TitleStyle.Render("Araç bilgilerini girin")
	} else {
		title = TitleStyle.Render("Araç detayları")
	}

	var b strings.Builder
	b.WriteString(title + "\n")

	if a := snap.Session.Analysis; a != nil && snap.Mode == appraisal.ModeSmart {
		b.WriteString(m.renderDetected(a))
		b.WriteString("\n\n")
	}
	if len(snap.Session.Images) > 0 {
		b.WriteString(renderThumbnails(snap.Session.Images))
		b.WriteString("\n\n")
	}

	order := m.focusOrder(snap)
	labelStyle := lipgloss.NewStyle().Width(24).Foreground(ColorSubtle)
	for _, f := range []int{fieldMake, fieldModel, fieldYear, fieldKm, fieldPhotos} {
		if f == fieldPhotos && indexOf(order, fieldPhotos) < 0 {
			continue
		}
		label := labelStyle.Render(fieldLabels[f])
		if indexOf(order, f) < 0 {
			// locked by the analysis
			b.WriteString(label + MutedStyle.Render(m.fields[f].Value()+" (kilitli)") + "\n")
			continue
		}
		marker := "  "
		if f == m.focus {
			marker = SelectedStyle.Render("> ")
		}
		b.WriteString(marker + label + m.fields[f].View() + "\n")
	}

	if snap.Mode == appraisal.ModeManual {
		focused := m.focus == fieldSchematic
		heading := "Kaporta Durumu"
		if focused {
			heading = SelectedStyle.Render("> " + heading)
		} else {
			heading = SubtitleStyle.Render("  " + heading)
		}
		b.WriteString("\n" + heading + "\n")
		b.WriteString(m.schematic.View(snap.Parts, focused) + "\n")
		b.WriteString(SchematicLegend() + "\n\n")
		b.WriteString(DamagePreview(snap.Parts))
	}

	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m App) renderDetected(a *appraisal.VehicleAnalysis) string {
	level := present.LevelFor(appraisal.NormalizeConfidence(a.Confidence))
	head := SuccessStyle.Render(strings.TrimSpace(a.Make+" "+a.Model)) + "  " +
		ConfidenceBadge(appraisal.NormalizeConfidence(a.Confidence), level)
	if a.IsRare {
		head += " " + BadgeWarningStyle.Render("Nadir")
	}
	lines := []string{head}
	if a.Generation != "" {
		lines = append(lines, MutedStyle.Render("Kasa: "+a.Generation))
	}
	lines = append(lines, MutedStyle.Render("Renk: "+a.Color+"  Durum: "+a.VisualCondition))
	return strings.Join(lines, "\n")
}

func renderThumbnails(images []appraisal.Image) string {
	var parts []string
	for _, img := range images {
		parts = append(parts, fmt.Sprintf("[%s %s]", truncate(img.Name, 24), gemini.FormatSize(int64(len(img.Data)))))
	}
	return InfoStyle.Render(strings.Join(parts, " "))
}

func (m App) renderBusy(title, detail string) string {
	return BoxStyle.Render(m.spinner.View() + " " + TitleStyle.Render(title) + "\n" + MutedStyle.Render(detail))
}

// refreshResult re-renders the result screen into its viewport
func (m *App) refreshResult() {
	if m.result == nil {
		m.resultView.SetContent("")
		return
	}
	m.resultView.SetContent(m.renderResult(m.resultView.Width))
}

func (m App) renderResult(width int) string {
	r := m.result
	a, e := r.Analysis, r.Estimate
	cardWidth := max(width-4, 30)

	// Vehicle
	head := TitleStyle.Render(r.Title()) + "  " + ConfidenceBadge(r.Confidence(), r.ConfidenceLevel())
	if a.IsRare {
		head += " " + BadgeWarningStyle.Render("Nadir / Koleksiyonluk")
	}
	var vehicle []string
	vehicle = append(vehicle, head)
	if a.Generation != "" {
		vehicle = append(vehicle, "Kasa: "+a.Generation)
	}
	vehicle = append(vehicle,
		fmt.Sprintf("Model yılı: %d   Kilometre: %s", r.Year, present.FormatKm(r.Km)),
		"Renk: "+a.Color,
		"Görsel durum: "+a.VisualCondition,
	)
	if len(r.Images) > 0 {
		img := r.Images[m.carousel.Index]
		vehicle = append(vehicle, InfoStyle.Render(fmt.Sprintf("◀ %s ▶  %s (%s)",
			m.carousel.Position(), img.Name, gemini.FormatSize(int64(len(img.Data))))))
	}

	// Price
	price := []string{
		fmt.Sprintf("%s  %s  %s",
			present.FormatCurrency(e.MinPrice),
			present.RangeBar(e.MinPrice, e.AvgPrice, e.MaxPrice, max(cardWidth-40, 10)),
			present.FormatCurrency(e.MaxPrice)),
		"Ortalama: " + present.FormatCurrency(e.AvgPrice),
		"Pazarlık payı: " + present.FormatCurrency(e.BargainingMargin),
		SuccessStyle.Render("Beklenen satış fiyatı: " + present.FormatCurrency(r.ExpectedPrice())),
		"Piyasa eğilimi: " + r.TrendLabel(),
	}

	// Damage
	var damage []string
	for _, d := range r.DamageLines() {
		damage = append(damage, "• "+d)
	}

	sections := []string{
		Card("Araç", strings.Join(vehicle, "\n"), cardWidth),
		Card("Piyasa Değeri", strings.Join(price, "\n"), cardWidth),
		Card("Hasar Durumu", strings.Join(damage, "\n"), cardWidth),
	}
	if e.Reasoning != "" {
		sections = append(sections, Card("Değerlendirme", e.Reasoning, cardWidth))
	}
	if len(e.ComparableListingsSource) > 0 {
		var src []string
		for _, s := range e.ComparableListingsSource {
			src = append(src, "- "+s)
		}
		sections = append(sections, Card("Kaynaklar", MutedStyle.Render(strings.Join(src, "\n")), cardWidth))
	}

	nearby := MutedStyle.Render("Konumunuza göre ekspertiz merkezleri aranıyor...")
	if !m.nearbyBusy && m.nearby != "" {
		nearby = present.RenderMarkdown(m.nearby, cardWidth-2)
	}
	sections = append(sections, Card("Yakındaki Ekspertiz Merkezleri", nearby, cardWidth))

	if m.reportPath != "" {
		sections = append(sections, SuccessStyle.Render("Rapor: "+m.reportPath))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m App) renderHelp(snap appraisal.Snapshot) string {
	common := []string{"ctrl+t", "asistan", "ctrl+a", "etkinlik", "ctrl+r", "yeniden başla", "ctrl+c", "çıkış"}
	if m.chat.Open() {
		return KeyHelp("enter", "gönder", "pgup/pgdn", "kaydır", "ctrl+t", "kapat", "ctrl+c", "çıkış")
	}

	var keys []string
	switch snap.Session.Step {
	case appraisal.StepUpload:
		switch snap.Mode {
		case appraisal.ModeNone:
			keys = []string{"↑/↓", "seç", "enter", "devam", "q", "çıkış"}
		case appraisal.ModeSmart:
			keys = []string{"enter", "yükle", "tab", "dosya seçici"}
		default:
			keys = formKeys(m.focus == fieldSchematic)
		}
	case appraisal.StepDetailsInput:
		keys = formKeys(m.focus == fieldSchematic)
	case appraisal.StepResult:
		keys = []string{"←/→", "fotoğraf", "↑/↓", "kaydır", "s", "rapor kaydet", "q", "çıkış"}
	}
	return KeyHelp(append(keys, common...)...)
}

func formKeys(schematic bool) []string {
	if schematic {
		return []string{"oklar", "parça", "space", "durum değiştir", "tab", "sonraki", "ctrl+g", "fiyatla"}
	}
	return []string{"tab", "sonraki", "enter", "ilerle", "ctrl+g", "fiyatla"}
}
