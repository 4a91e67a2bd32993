package vision

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// namedBackgrounds are the color names accepted besides hex notation.
var namedBackgrounds = map[string]string{
	"white": "#ffffff",
	"black": "#000000",
	"gray":  "#808080",
	"grey":  "#808080",
	"red":   "#ff0000",
	"green": "#00ff00",
	"blue":  "#0000ff",
	"pink":  "#ffc0cb",
}

// ParseBackground parses a background color given as a name ("white") or
// hex ("#fff", "#ffffff"). The empty string means white.
func ParseBackground(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = "white"
	}
	if hex, ok := namedBackgrounds[s]; ok {
		s = hex
	}
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}

	c, err := colorful.Hex(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: background color %q", ErrInvalidColor, s)
	}
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}
