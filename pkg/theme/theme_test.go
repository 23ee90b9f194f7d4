package theme

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHexToTriplet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "#3b82f6", want: "59, 130, 246"},
		{in: "ff0000", want: "255, 0, 0"},
		{in: "#FFFFFF", want: "255, 255, 255"},
		{in: "#fff", want: "59, 130, 246"},
		{in: "", want: "59, 130, 246"},
		{in: "blue", want: "59, 130, 246"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, HexToTriplet(tt.in))
		})
	}
}

func TestLuminance(t *testing.T) {
	white, _ := ParseHex("#ffffff")
	black, _ := ParseHex("#000000")
	assert.InDelta(t, 1.0, white.Luminance(), 1e-9)
	assert.InDelta(t, 0.0, black.Luminance(), 1e-9)
}

func TestPlaceholderColor(t *testing.T) {
	assert.Equal(t, "color-mix(in srgb, #6b7280 65%, #000000 35%)", PlaceholderColor("#ffffff", "#6b7280"))
	assert.Equal(t, "color-mix(in srgb, #6b7280 60%, #ffffff 40%)", PlaceholderColor("#111827", "#6b7280"))
}

func TestPresetFallbacks(t *testing.T) {
	assert.Equal(t, "16px", ShapeFor("unknown").BorderRadius)
	assert.Equal(t, "bounce", ShapeFor("modern").Animation)
	assert.Equal(t, Size{Width: "350px", Height: "500px"}, SizeFor(""))
	assert.Equal(t, Size{Width: "400px", Height: "600px"}, SizeFor("large"))
	assert.Equal(t, "all 0.3s cubic-bezier(0.4, 0, 0.2, 1)", AnimationFor("nope").Transition)
	assert.Equal(t, "all 0.4s ease-out", AnimationFor("slide").Transition)
	assert.Equal(t, "18px 18px 4px 18px", BubbleFor("").BorderRadius)
	assert.Equal(t, "70%", BubbleFor("classic").MaxWidth)
}

func TestStylesheet(t *testing.T) {
	css := Stylesheet(Config{
		PrimaryColor:    "#10b981",
		Position:        "bottom-right",
		WidgetShape:     "square",
		WidgetSize:      "small",
		AnimationStyle:  "fade",
		ChatBubbleStyle: "minimal",
		CustomCSS:       ".tenant { color: red; }",
	})

	assert.Contains(t, css, "--tms-primary-color: #10b981;")
	assert.Contains(t, css, "--tms-primary-color-rgb: 16, 185, 129;")
	assert.Contains(t, css, "--tms-secondary-color: #6b7280;")
	assert.Contains(t, css, "--tms-background-color-rgb: 255, 255, 255;")
	assert.Contains(t, css, "--tms-placeholder-color: color-mix(in srgb, #6b7280 65%, #000000 35%);")
	assert.Contains(t, css, "--tms-widget-width: 300px;")
	assert.Contains(t, css, "--tms-border-radius: 4px;")
	assert.Contains(t, css, "--tms-animation: all 0.2s ease-in-out;")
	assert.Contains(t, css, "--tms-bubble-padding: 8px 12px;")
	assert.Contains(t, css, "right: 24px;")
	assert.NotContains(t, css, "left: 24px;")
	assert.Contains(t, css, "right: calc((300px - 50px) / 2);")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(css), ".tenant { color: red; }"))
}

func TestStylesheetMirrorsLeftPosition(t *testing.T) {
	css := Stylesheet(Config{PrimaryColor: "#000000", Position: "bottom-left", BackgroundColor: "#000000"})

	assert.Contains(t, css, "left: 24px;")
	assert.Contains(t, css, "left: 16px;")
	assert.NotContains(t, css, "right: 24px;")
	assert.Contains(t, css, "left: calc(350px - 50px);")
	assert.Contains(t, css, "color-mix(in srgb, #6b7280 60%, #ffffff 40%)")
}

func TestStylesheetIsDeterministic(t *testing.T) {
	cfg := Config{PrimaryColor: "#3b82f6", Position: "bottom-right"}
	assert.Equal(t, Stylesheet(cfg), Stylesheet(cfg))
}

func TestBadgeText(t *testing.T) {
	assert.Equal(t, "", BadgeText(0))
	assert.Equal(t, "3", BadgeText(3))
	assert.Equal(t, "9", BadgeText(9))
	assert.Equal(t, "9+", BadgeText(10))
}

func TestBubbleIcon(t *testing.T) {
	assert.Equal(t, BubbleIcon("modern"), BubbleIcon("unknown"))
	assert.Contains(t, BubbleIcon("bot"), `<rect width="16"`)
	assert.Contains(t, BubbleIcon("minimal"), "polyline")
}
