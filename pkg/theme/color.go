package theme

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// RGB is an sRGB color with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

var (
	hexColor = regexp.MustCompile(`(?i)^#?([a-f\d]{2})([a-f\d]{2})([a-f\d]{2})$`)

	fallbackRGB = RGB{R: 59, G: 130, B: 246}
)

// ParseHex parses #rrggbb (the hash is optional). Anything else yields the
// default brand blue and false.
func ParseHex(s string) (RGB, bool) {
	m := hexColor.FindStringSubmatch(s)
	if m == nil {
		return fallbackRGB, false
	}
	ch := func(h string) uint8 {
		v, _ := strconv.ParseUint(h, 16, 8)
		return uint8(v)
	}
	return RGB{R: ch(m[1]), G: ch(m[2]), B: ch(m[3])}, true
}

// Triplet renders the color as "r, g, b" for rgba() custom properties.
func (c RGB) Triplet() string {
	return fmt.Sprintf("%d, %d, %d", c.R, c.G, c.B)
}

// HexToTriplet converts a hex color to an "r, g, b" triplet.
func HexToTriplet(s string) string {
	c, _ := ParseHex(s)
	return c.Triplet()
}

// Luminance is the WCAG relative luminance of c.
func (c RGB) Luminance() float64 {
	lin := func(v uint8) float64 {
		f := float64(v) / 255
		if f <= 0.03928 {
			return f / 12.92
		}
		return math.Pow((f+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// PlaceholderColor mixes the secondary color toward white on dark
// backgrounds and toward black on light ones.
func PlaceholderColor(background, secondary string) string {
	bg, _ := ParseHex(background)
	if bg.Luminance() < 0.5 {
		return fmt.Sprintf("color-mix(in srgb, %s 60%%, #ffffff 40%%)", secondary)
	}
	return fmt.Sprintf("color-mix(in srgb, %s 65%%, #000000 35%%)", secondary)
}
