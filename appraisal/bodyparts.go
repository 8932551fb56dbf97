package appraisal

import (
	"fmt"
	"strings"
)

// PartStatus is the cosmetic condition of one body panel.
type PartStatus int

const (
	StatusOriginal PartStatus = iota
	StatusLocal
	StatusPainted
	StatusChanged
)

// Next returns the status that follows s in the tap cycle
// original → local → painted → changed → original.
func (s PartStatus) Next() PartStatus {
	switch s {
	case StatusOriginal:
		return StatusLocal
	case StatusLocal:
		return StatusPainted
	case StatusPainted:
		return StatusChanged
	default:
		return StatusOriginal
	}
}

// Code is the single-letter schematic code, empty for original panels.
func (s PartStatus) Code() string {
	switch s {
	case StatusLocal:
		return "L"
	case StatusPainted:
		return "B"
	case StatusChanged:
		return "D"
	default:
		return ""
	}
}

// Label is the Turkish status name used in damage sentences.
func (s PartStatus) Label() string {
	switch s {
	case StatusLocal:
		return "Lokal Boyalı"
	case StatusPainted:
		return "Boyalı"
	case StatusChanged:
		return "Değişen"
	default:
		return "Orijinal"
	}
}

func (s PartStatus) String() string {
	switch s {
	case StatusLocal:
		return "local"
	case StatusPainted:
		return "painted"
	case StatusChanged:
		return "changed"
	default:
		return "original"
	}
}

// ParsePartStatus accepts a status name ("painted"), its schematic code
// ("B") or its Turkish label ("Boyalı"), case-insensitively.
func ParsePartStatus(s string) (PartStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range []PartStatus{StatusOriginal, StatusLocal, StatusPainted, StatusChanged} {
		if strings.EqualFold(s, st.String()) || strings.EqualFold(s, st.Label()) ||
			(st.Code() != "" && strings.EqualFold(s, st.Code())) {
			return st, nil
		}
	}
	return StatusOriginal, fmt.Errorf("unknown panel status %q", s)
}

// Panel is one of the thirteen tracked exterior sections.
type Panel struct {
	Key  string
	Name string
}

var (
	Hood        = Panel{"hood", "Kaput"}
	Roof        = Panel{"roof", "Tavan"}
	Trunk       = Panel{"trunk", "Bagaj"}
	FLFender    = Panel{"fl_fender", "Sol Ön Çamurluk"}
	FRFender    = Panel{"fr_fender", "Sağ Ön Çamurluk"}
	FLDoor      = Panel{"fl_door", "Sol Ön Kapı"}
	FRDoor      = Panel{"fr_door", "Sağ Ön Kapı"}
	RLDoor      = Panel{"rl_door", "Sol Arka Kapı"}
	RRDoor      = Panel{"rr_door", "Sağ Arka Kapı"}
	RLFender    = Panel{"rl_fender", "Sol Arka Çamurluk"}
	RRFender    = Panel{"rr_fender", "Sağ Arka Çamurluk"}
	FrontBumper = Panel{"front_bumper", "Ön Tampon"}
	RearBumper  = Panel{"rear_bumper", "Arka Tampon"}
)

// Panels lists every panel in declaration order. Damage reports follow this order.
var Panels = []Panel{
	Hood, Roof, Trunk,
	FLFender, FRFender,
	FLDoor, FRDoor,
	RLDoor, RRDoor,
	RLFender, RRFender,
	FrontBumper, RearBumper,
}

// PanelByKey looks a panel up by its key
func PanelByKey(key string) (Panel, bool) {
	for _, p := range Panels {
		if p.Key == key {
			return p, true
		}
	}
	return Panel{}, false
}

// BodyPartsMap holds the status of every panel. The zero value is not
// usable; create one with NewBodyPartsMap.
type BodyPartsMap map[string]PartStatus

// NewBodyPartsMap returns a map with all thirteen panels original
func NewBodyPartsMap() BodyPartsMap {
	m := make(BodyPartsMap, len(Panels))
	m.Reset()
	return m
}

// Reset sets every panel back to original
func (m BodyPartsMap) Reset() {
	for _, p := range Panels {
		m[p.Key] = StatusOriginal
	}
}

// Status returns the panel's status
func (m BodyPartsMap) Status(p Panel) PartStatus {
	return m[p.Key]
}

// Toggle advances the panel one step through the cycle and returns the new status.
func (m BodyPartsMap) Toggle(p Panel) PartStatus {
	if _, ok := m[p.Key]; !ok {
		return StatusOriginal
	}
	next := m[p.Key].Next()
	m[p.Key] = next
	return next
}

// DisplayLabel is the status code once the panel is touched, otherwise its full name.
func (m BodyPartsMap) DisplayLabel(p Panel) string {
	if code := m.Status(p).Code(); code != "" {
		return code
	}
	return p.Name
}

// Clean reports whether every panel is original
func (m BodyPartsMap) Clean() bool {
	for _, p := range Panels {
		if m[p.Key] != StatusOriginal {
			return false
		}
	}
	return true
}

// DamageReport returns "<Panel name>: <Status label>" for each non-original
// panel in declaration order. It is empty iff the map is clean.
func (m BodyPartsMap) DamageReport() []string {
	damages := []string{}
	for _, p := range Panels {
		if s := m[p.Key]; s != StatusOriginal {
			damages = append(damages, p.Name+": "+s.Label())
		}
	}
	return damages
}

// Clone returns an independent copy
func (m BodyPartsMap) Clone() BodyPartsMap {
	c := make(BodyPartsMap, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
