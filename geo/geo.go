// Package geo provides the user's position for nearby service lookups.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrPermissionDenied is returned when no position may be used
var ErrPermissionDenied = errors.New("location permission not granted")

// Position is a WGS84 coordinate
type Position struct {
	Lat float64
	Lng float64
}

// String formats the position as "lat,lng"
func (p Position) String() string {
	return strconv.FormatFloat(p.Lat, 'f', 5, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 5, 64)
}

// Validate checks that the coordinate is on the globe
func (p Position) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Lng) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", p.Lng)
	}
	return nil
}

// Locator resolves the current position
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// Static is a Locator with a fixed answer. The zero value denies permission.
type Static struct {
	pos Position
	ok  bool
}

// NewStatic returns a locator that always reports pos
func NewStatic(pos Position) (*Static, error) {
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	return &Static{pos: pos, ok: true}, nil
}

// Denied returns a locator that never grants a position
func Denied() *Static {
	return &Static{}
}

// Locate implements Locator
func (s *Static) Locate(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if s == nil || !s.ok {
		return Position{}, ErrPermissionDenied
	}
	return s.pos, nil
}

// ParsePosition parses "lat,lng" or separate latitude and longitude strings.
// Both empty means no position was configured and returns ErrPermissionDenied.
func ParsePosition(lat, lng string) (Position, error) {
	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	if lng == "" && strings.Contains(lat, ",") {
		lat, lng, _ = strings.Cut(lat, ",")
		lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	}
	if lat == "" && lng == "" {
		return Position{}, ErrPermissionDenied
	}
	if lat == "" || lng == "" {
		return Position{}, errors.New("both latitude and longitude are required")
	}

	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return Position{}, fmt.Errorf("latitude %q: %w", lat, err)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return Position{}, fmt.Errorf("longitude %q: %w", lng, err)
	}
	p := Position{Lat: la, Lng: ln}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// FromStrings builds a locator from configured coordinates. Unset
// coordinates yield a denying locator; malformed ones are an error.
func FromStrings(lat, lng string) (*Static, error) {
	p, err := ParsePosition(lat, lng)
	if errors.Is(err, ErrPermissionDenied) {
		return Denied(), nil
	}
	if err != nil {
		return nil, err
	}
	return &Static{pos: p, ok: true}, nil
}
