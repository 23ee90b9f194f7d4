// Package theme renders the widget stylesheet from a widget's appearance
// settings.
package theme

import (
	"bytes"
	"strconv"
	"text/template"
)

// StyleElementID is the id of the single injected style element. A host
// replaces any element with this id instead of appending a second one.
const StyleElementID = "tms-widget-styles"

const (
	defaultSecondary  = "#6b7280"
	defaultBackground = "#ffffff"
)

// Config is the subset of widget configuration that affects styling.
type Config struct {
	PrimaryColor    string
	SecondaryColor  string
	BackgroundColor string
	Position        string
	WidgetShape     string
	WidgetSize      string
	AnimationStyle  string
	ChatBubbleStyle string
	CustomCSS       string
}

type stylesheetData struct {
	Primary       string
	PrimaryRGB    string
	Secondary     string
	SecondaryRGB  string
	Background    string
	BackgroundRGB string
	Placeholder   string
	Shape         Shape
	Size          Size
	Animation     Animation
	Bubble        Bubble
	Side          string
	PoweredOpen   string
	CustomCSS     string
}

// Stylesheet renders the CSS text for cfg. It is a pure function of cfg.
func Stylesheet(cfg Config) string {
	secondary := orDefault(cfg.SecondaryColor, defaultSecondary)
	background := orDefault(cfg.BackgroundColor, defaultBackground)
	size := SizeFor(cfg.WidgetSize)

	side := "left"
	poweredOpen := "left: calc(" + size.Width + " - 50px);"
	if cfg.Position == "bottom-right" {
		side = "right"
		poweredOpen = "right: calc((" + size.Width + " - 50px) / 2);"
	}

	data := stylesheetData{
		Primary:       cfg.PrimaryColor,
		PrimaryRGB:    HexToTriplet(cfg.PrimaryColor),
		Secondary:     secondary,
		SecondaryRGB:  HexToTriplet(secondary),
		Background:    background,
		BackgroundRGB: HexToTriplet(background),
		Placeholder:   PlaceholderColor(background, secondary),
		Shape:         ShapeFor(cfg.WidgetShape),
		Size:          size,
		Animation:     AnimationFor(cfg.AnimationStyle),
		Bubble:        BubbleFor(cfg.ChatBubbleStyle),
		Side:          side,
		PoweredOpen:   poweredOpen,
		CustomCSS:     cfg.CustomCSS,
	}

	var buf bytes.Buffer
	// The template is parsed at init and only reads plain string fields.
	_ = stylesheet.Execute(&buf, data)
	return buf.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// BadgeText renders the unread badge label, or "" when nothing is unread.
func BadgeText(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 9:
		return "9+"
	default:
		return strconv.Itoa(unread)
	}
}

var stylesheet = template.Must(template.New("stylesheet").Parse(stylesheetTemplate))

const stylesheetTemplate = `
:root {
  --tms-primary-color: {{.Primary}};
  --tms-primary-color-rgb: {{.PrimaryRGB}};
  --tms-secondary-color: {{.Secondary}};
  --tms-secondary-color-rgb: {{.SecondaryRGB}};
  --tms-background-color: {{.Background}};
  --tms-background-color-rgb: {{.BackgroundRGB}};
  --tms-placeholder-color: {{.Placeholder}};
  --tms-widget-width: {{.Size.Width}};
  --tms-widget-height: {{.Size.Height}};
  --tms-border-radius: {{.Shape.BorderRadius}};
  --tms-shadow: {{.Shape.Shadow}};
  --tms-animation: {{.Animation.Transition}};
  --tms-bubble-border-radius: {{.Bubble.BorderRadius}};
  --tms-bubble-padding: {{.Bubble.Padding}};
  --tms-bubble-max-width: {{.Bubble.MaxWidth}};
}

.tms-widget-container {
  font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', 'Roboto', 'Oxygen', 'Ubuntu', 'Cantarell', sans-serif;
  position: fixed;
  {{.Side}}: 24px;
  bottom: 96px;
  width: var(--tms-widget-width);
  height: var(--tms-widget-height);
  z-index: 2147483647;
  border-radius: var(--tms-border-radius);
  box-shadow: var(--tms-shadow);
  overflow: hidden;
  transition: var(--tms-animation);
  display: none;
  flex-direction: column;
  background: var(--tms-background-color);
}

.tms-widget-container.open {
  display: flex;
  opacity: 1;
  transform: {{.Animation.Transform}};
}

.tms-widget-container.opening {
  animation: tms-widget-enter 0.4s cubic-bezier(0.34, 1.56, 0.64, 1) forwards;
}

.tms-widget-container.closing {
  animation: tms-widget-exit 0.3s cubic-bezier(0.4, 0, 1, 1) forwards;
}

@keyframes tms-widget-enter {
  0% { opacity: 0; transform: {{.Animation.Entry}}; }
  100% { opacity: 1; transform: {{.Animation.Transform}}; }
}

@keyframes tms-widget-exit {
  0% { opacity: 1; transform: {{.Animation.Transform}}; }
  100% { opacity: 0; transform: {{.Animation.Exit}}; }
}

.tms-chat-header {
  background: linear-gradient(135deg, var(--tms-primary-color) 0%, color-mix(in srgb, var(--tms-primary-color) 85%, #000) 100%);
  color: white;
  padding: 20px 20px 18px 20px;
  display: flex;
  justify-content: space-between;
  align-items: center;
  box-shadow: 0 4px 12px rgba(var(--tms-primary-color-rgb), 0.15);
}

.tms-agent-status {
  font-size: 13px;
  color: rgba(255, 255, 255, 0.8);
  display: flex;
  align-items: center;
  gap: 6px;
}

.tms-status-indicator {
  width: 8px;
  height: 8px;
  border-radius: 50%;
  background: #10b981;
}

.tms-status-indicator.away {
  background: #f59e0b;
}

.tms-messages-container {
  flex: 1;
  overflow-y: auto;
  padding: 20px 16px 12px 16px;
  scroll-behavior: smooth;
}

.tms-message-wrapper {
  margin-bottom: 16px;
  display: flex;
  flex-direction: column;
}

.tms-message-wrapper.visitor { align-items: flex-end; }
.tms-message-wrapper.agent { align-items: flex-start; }

.tms-message-bubble {
  border-radius: var(--tms-bubble-border-radius);
  padding: var(--tms-bubble-padding);
  max-width: var(--tms-bubble-max-width);
  word-break: break-word;
  line-height: {{.Bubble.LineHeight}};
  font-size: 14px;
}

.tms-message-bubble.visitor {
  background: linear-gradient(135deg, var(--tms-primary-color) 0%, color-mix(in srgb, var(--tms-primary-color) 90%, #000) 100%);
  color: white;
}

.tms-message-bubble.agent {
  background: var(--tms-secondary-color);
  color: color-mix(in srgb, var(--tms-secondary-color) 15%, #000);
  border: 1px solid color-mix(in srgb, var(--tms-secondary-color) 80%, #fff);
}

.tms-message-bubble.system {
  background: #f3f4f6;
  color: #6b7280;
  font-style: italic;
  text-align: center;
  border-radius: 12px;
  font-size: 13px;
  max-width: 100%;
}

.tms-typing-indicator {
  padding: 8px 16px;
  font-size: 13px;
  color: #6b7280;
  font-style: italic;
  min-height: 24px;
}

.tms-input-area {
  border-top: 1px solid rgba(var(--tms-secondary-color-rgb), 0.2);
  display: flex;
  flex-direction: column;
  gap: 8px;
  margin-top: auto;
}

.tms-input-wrapper {
  flex: 1;
  display: flex;
  background: var(--tms-background-color);
  border-top: 2px solid rgba(var(--tms-secondary-color-rgb), 0.8);
  padding: 8px 12px;
}

.tms-editable:empty:before {
  content: attr(data-placeholder);
  color: var(--tms-placeholder-color);
  pointer-events: none;
  font-style: italic;
  opacity: 0.8;
}

.tms-thumb-button {
  width: 32px;
  height: 32px;
  border-radius: 50%;
  border: 1px solid rgba(var(--tms-secondary-color-rgb), 0.3);
  background: rgba(var(--tms-secondary-color-rgb), 0.08);
  color: rgba(var(--tms-secondary-color-rgb), 0.6);
}

.tms-thumb-animate {
  animation: thumb-bounce 0.6s ease-out;
  background: var(--tms-primary-color) !important;
  color: white !important;
}

@keyframes thumb-bounce {
  0% { transform: scale(1); }
  30% { transform: scale(1.3) rotate(10deg); }
  60% { transform: scale(1.1) rotate(-5deg); }
  100% { transform: scale(1) rotate(0deg); }
}

.tms-visitor-info-form {
  padding: 20px 16px;
  background: var(--tms-background-color);
  border-bottom: 1px solid color-mix(in srgb, var(--tms-secondary-color) 20%, var(--tms-background-color));
}

.tms-visitor-form-input {
  width: 100%;
  padding: 10px 12px;
  border: 2px solid var(--tms-secondary-color);
  border-radius: 8px;
  background: var(--tms-background-color);
  box-sizing: border-box;
}

.tms-visitor-form-input::placeholder {
  color: var(--tms-placeholder-color);
}

.tms-visitor-form-button.primary {
  background: var(--tms-primary-color);
  color: white;
}

.tms-toggle-button {
  position: fixed;
  {{.Side}}: 24px;
  bottom: 24px;
  width: 64px;
  height: 64px;
  background: linear-gradient(135deg, var(--tms-primary-color) 0%, color-mix(in srgb, var(--tms-primary-color) 85%, #000) 100%);
  border-radius: 50%;
  box-shadow: 0 8px 25px rgba(var(--tms-primary-color-rgb), 0.3), 0 4px 12px rgba(0, 0, 0, 0.15);
  z-index: 2147483647;
  border: none;
  color: white;
}

.tms-notification-badge {
  position: absolute;
  top: -4px;
  right: -4px;
  background: #ef4444;
  color: white;
  border-radius: 50%;
  min-width: 22px;
  height: 22px;
  font-size: 11px;
  font-weight: 600;
}

.tms-powered-badge {
  position: fixed;
  bottom: 96px;
  {{.Side}}: 24px;
  background: rgba(0, 0, 0, 0.7);
  color: #fff;
  font-size: 11px;
  padding: 6px 12px;
  border-radius: 999px;
  z-index: 2147483646;
}

.tms-powered-badge.open {
  bottom: 40px;
  {{.PoweredOpen}}
}

@media (max-width: 480px) {
  .tms-widget-container {
    {{.Side}}: 16px;
    bottom: 80px;
    width: calc(100vw - 32px);
    max-width: 360px;
    height: 500px;
  }

  .tms-toggle-button {
    {{.Side}}: 16px;
    bottom: 16px;
    width: 56px;
    height: 56px;
  }

  .tms-powered-badge {
    bottom: 80px;
    {{.Side}}: 16px;
  }
}

{{.CustomCSS}}
`
