package core

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// Color is a 24-bit RGB value packed as 0xRRGGBB.
type Color uint32

// DefaultColor is used when a color cannot be parsed.
const DefaultColor Color = 0xFF0000

// MaxColor is the largest valid color value.
const MaxColor Color = 0xFFFFFF

var ErrInvalidColor = errors.New("invalid color")

var namedColors = map[string]Color{
	"red":    0xFF0000,
	"green":  0x00FF00,
	"blue":   0x0000FF,
	"yellow": 0xFFFF00,
	"purple": 0x800080,
	"orange": 0xFFA500,
	"white":  0xFFFFFF,
	"black":  0x000000,
}

// ParseColor accepts a color name or a #RRGGBB hex string.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") || len(s) != 7 {
		return DefaultColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return DefaultColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color(v), nil
}

// RandomBrightColor picks a color with every channel in 100..255 so the
// result stays readable on dark backgrounds.
func RandomBrightColor(r *rand.Rand) Color {
	channel := func() Color {
		if r == nil {
			return Color(100 + rand.IntN(156))
		}
		return Color(100 + r.IntN(156))
	}
	return channel()<<16 | channel()<<8 | channel()
}

// RGB splits c into its channels.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Hex formats c as #RRGGBB.
func (c Color) Hex() string {
	return fmt.Sprintf("#%06X", uint32(c&MaxColor))
}

func (c Color) String() string {
	return c.Hex()
}
