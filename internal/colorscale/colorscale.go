// Package colorscale maps heat-stress values onto a continuous color gradient.
package colorscale

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ShadeAmount is how far Lighten and Darken move toward white or black.
const ShadeAmount = 0.3

// LuminanceThreshold separates light backgrounds (dark text) from dark ones.
const LuminanceThreshold = 0.6

var (
	white = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}

	// DarkText and LightText are the foreground colors chosen by TextColorFor.
	DarkText  = color.RGBA{R: 0x1f, G: 0x29, B: 0x37, A: 0xff}
	LightText = white
)

// ErrInvalidHex is returned by ParseHex for anything but #rrggbb or #rgb.
var ErrInvalidHex = errors.New("invalid hex color")

// Stop anchors a color at a value.
type Stop struct {
	Value float64
	Color color.RGBA
}

// Scale is an ordered set of stops with linear RGB interpolation between them.
type Scale struct {
	stops []Stop
}

// NewScale sorts stops by value. It fails on an empty list.
func NewScale(stops []Stop) (*Scale, error) {
	if len(stops) == 0 {
		return nil, errors.New("color scale needs at least one stop")
	}
	s := &Scale{stops: append([]Stop(nil), stops...)}
	sort.SliceStable(s.stops, func(i, j int) bool { return s.stops[i].Value < s.stops[j].Value })
	return s, nil
}

// Heat returns the default heat-index scale, from cool blue at 20 °C to deep
// red at 60 °C. The inner stops sit on the risk band thresholds.
func Heat() *Scale {
	s, _ := NewScale([]Stop{
		{20, MustParseHex("#2c7bb6")},
		{27, MustParseHex("#abd9e9")},
		{32, MustParseHex("#ffffbf")},
		{41, MustParseHex("#fdae61")},
		{54, MustParseHex("#d7191c")},
		{60, MustParseHex("#7f0000")},
	})
	return s
}

// Stops returns a copy of the scale's stops in ascending order.
func (s *Scale) Stops() []Stop {
	return append([]Stop(nil), s.stops...)
}

// ColorFor returns the color at v. Values outside the scale clamp to the end
// stops.
func (s *Scale) ColorFor(v float64) color.RGBA {
	first, last := s.stops[0], s.stops[len(s.stops)-1]
	if math.IsNaN(v) || v <= first.Value {
		return first.Color
	}
	if v >= last.Value {
		return last.Color
	}
	for i := 1; i < len(s.stops); i++ {
		hi := s.stops[i]
		if v > hi.Value {
			continue
		}
		lo := s.stops[i-1]
		span := hi.Value - lo.Value
		if span == 0 {
			return hi.Color
		}
		return Mix(lo.Color, hi.Color, (v-lo.Value)/span)
	}
	return last.Color
}

// Mix interpolates each channel from a toward b by t in [0,1].
func Mix(a, b color.RGBA, t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	lerp := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{
		R: lerp(a.R, b.R),
		G: lerp(a.G, b.G),
		B: lerp(a.B, b.B),
		A: lerp(a.A, b.A),
	}
}

// Lighten moves c toward white by ShadeAmount.
func Lighten(c color.RGBA) color.RGBA { return Mix(c, white, ShadeAmount) }

// Darken moves c toward black by ShadeAmount.
func Darken(c color.RGBA) color.RGBA { return Mix(c, black, ShadeAmount) }

// Luminance is the perceptual brightness of c in [0,1].
func Luminance(c color.RGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// TextColorFor picks a legible foreground for background bg.
func TextColorFor(bg color.RGBA) color.RGBA {
	if Luminance(bg) > LuminanceThreshold {
		return DarkText
	}
	return LightText
}

// Hex formats c as #rrggbb, ignoring alpha.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex parses #rrggbb or #rgb, with or without the leading '#'.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

// MustParseHex is ParseHex for constants; it panics on malformed input.
func MustParseHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Palette is the set of colors derived from one value.
type Palette struct {
	Fill    string `json:"fill"`
	Lighter string `json:"lighter"`
	Darker  string `json:"darker"`
	Text    string `json:"text"`
}

// PaletteFor derives the fill and its helpers for v.
func (s *Scale) PaletteFor(v float64) Palette {
	c := s.ColorFor(v)
	return Palette{
		Fill:    Hex(c),
		Lighter: Hex(Lighten(c)),
		Darker:  Hex(Darken(c)),
		Text:    Hex(TextColorFor(c)),
	}
}
