package theme

// Shape is a container preset selected by widget_shape.
type Shape struct {
	Name         string
	BorderRadius string
	Shadow       string
	Animation    string
	Layout       string
}

// Size is a fixed container dimension pair selected by widget_size.
type Size struct {
	Width  string
	Height string
}

// Animation is a transition preset selected by animation_style.
type Animation struct {
	Transition string
	Transform  string
	Entry      string
	Exit       string
}

// Bubble is a message bubble preset selected by chat_bubble_style.
type Bubble struct {
	BorderRadius string
	Padding      string
	MaxWidth     string
	LineHeight   string
}

var shapes = map[string]Shape{
	"rounded":      {Name: "Rounded", BorderRadius: "16px", Shadow: "0 8px 32px rgba(0, 0, 0, 0.12)", Animation: "smooth", Layout: "standard"},
	"square":       {Name: "Square", BorderRadius: "4px", Shadow: "0 4px 20px rgba(0, 0, 0, 0.15)", Animation: "fade", Layout: "standard"},
	"minimal":      {Name: "Minimal", BorderRadius: "8px", Shadow: "0 2px 16px rgba(0, 0, 0, 0.08)", Animation: "fade", Layout: "compact"},
	"professional": {Name: "Professional", BorderRadius: "6px", Shadow: "0 6px 24px rgba(0, 0, 0, 0.1)", Animation: "slide", Layout: "spacious"},
	"modern":       {Name: "Modern", BorderRadius: "12px", Shadow: "0 10px 40px rgba(0, 0, 0, 0.15)", Animation: "bounce", Layout: "standard"},
	"classic":      {Name: "Classic", BorderRadius: "20px", Shadow: "0 5px 25px rgba(0, 0, 0, 0.2)", Animation: "smooth", Layout: "standard"},
}

var sizes = map[string]Size{
	"small":  {Width: "300px", Height: "400px"},
	"medium": {Width: "350px", Height: "500px"},
	"large":  {Width: "400px", Height: "600px"},
}

var animations = map[string]Animation{
	"smooth": {Transition: "all 0.3s cubic-bezier(0.4, 0, 0.2, 1)", Transform: "translateY(0)", Entry: "translateY(20px)", Exit: "translateY(100%)"},
	"bounce": {Transition: "all 0.5s cubic-bezier(0.68, -0.55, 0.265, 1.55)", Transform: "scale(1)", Entry: "scale(0.8)", Exit: "scale(0.8) translateY(100%)"},
	"fade":   {Transition: "all 0.2s ease-in-out", Transform: "opacity(1)", Entry: "opacity(0)", Exit: "opacity(0)"},
	"slide":  {Transition: "all 0.4s ease-out", Transform: "translateX(0)", Entry: "translateX(100%)", Exit: "translateX(100%)"},
}

var bubbles = map[string]Bubble{
	"modern":  {BorderRadius: "18px 18px 4px 18px", Padding: "12px 16px", MaxWidth: "75%", LineHeight: "1.4"},
	"classic": {BorderRadius: "20px", Padding: "10px 14px", MaxWidth: "70%", LineHeight: "1.5"},
	"minimal": {BorderRadius: "8px", Padding: "8px 12px", MaxWidth: "80%", LineHeight: "1.3"},
	"rounded": {BorderRadius: "25px", Padding: "12px 18px", MaxWidth: "75%", LineHeight: "1.4"},
}

// ShapeFor returns the shape preset, falling back to rounded.
func ShapeFor(name string) Shape {
	if s, ok := shapes[name]; ok {
		return s
	}
	return shapes["rounded"]
}

// SizeFor returns the size preset, falling back to medium.
func SizeFor(name string) Size {
	if s, ok := sizes[name]; ok {
		return s
	}
	return sizes["medium"]
}

// AnimationFor returns the animation preset, falling back to smooth.
func AnimationFor(name string) Animation {
	if a, ok := animations[name]; ok {
		return a
	}
	return animations["smooth"]
}

// BubbleFor returns the bubble preset, falling back to modern.
func BubbleFor(name string) Bubble {
	if b, ok := bubbles[name]; ok {
		return b
	}
	return bubbles["modern"]
}
