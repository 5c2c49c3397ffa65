package render

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/deckreel/pkg/cache"
	"github.com/matzehuels/deckreel/pkg/resource"
)

// Palette maps resource types and liquid labels to fill colors.
type Palette struct {
	Deck     color.Color
	TipRack  color.Color
	Tip      color.Color
	Plate    color.Color
	Trough   color.Color
	Empty    color.Color
	Outline  color.Color
	TipEmpty color.Color
	Unknown  color.Color

	compounds map[string]color.Color
}

// DefaultCompounds is the built-in liquid label table.
var DefaultCompounds = map[string]string{
	"Compound A": "#FF4444",
	"Compound B": "#4444FF",
	"Compound C": "#44FF44",
	"Compound D": "#FFFF44",
}

// DefaultPalette returns the standard deck colors.
func DefaultPalette() *Palette {
	p := &Palette{
		Deck:      mustHex("#5B6D8F"),
		TipRack:   mustHex("#7B8CAF"),
		Tip:       mustHex("#2F3D5F"),
		Plate:     mustHex("#6B7C9F"),
		Trough:    mustHex("#9BA8C7"),
		Empty:     mustHex("#FFFFFF"),
		Outline:   mustHex("#000000"),
		TipEmpty:  mustHex("#CCCCCC"),
		Unknown:   mustHex("#999999"),
		compounds: make(map[string]color.Color, len(DefaultCompounds)),
	}
	for label, hex := range DefaultCompounds {
		p.compounds[label] = mustHex(hex)
	}
	return p
}

// SetCompound assigns a hex color to a liquid label.
func (p *Palette) SetCompound(label, hex string) error {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("color for %q: %w", label, err)
	}
	p.compounds[label] = c
	return nil
}

// Compound returns the color of a liquid label, or Unknown.
func (p *Palette) Compound(label string) color.Color {
	if c, ok := p.compounds[label]; ok {
		return c
	}
	return p.Unknown
}

// Container returns the fill of a rectangular container type.
func (p *Palette) Container(t resource.Type) color.Color {
	switch t {
	case resource.TypeDeck:
		return p.Deck
	case resource.TypeTipRack:
		return p.TipRack
	case resource.TypePlate:
		return p.Plate
	case resource.TypeTrough:
		return p.Trough
	default:
		return p.Unknown
	}
}

// Digest identifies the palette's colors. Two palettes with the same
// digest draw identical rasters.
func (p *Palette) Digest() string {
	fills := map[string]string{
		"deck":      hexOf(p.Deck),
		"tip_rack":  hexOf(p.TipRack),
		"tip":       hexOf(p.Tip),
		"plate":     hexOf(p.Plate),
		"trough":    hexOf(p.Trough),
		"empty":     hexOf(p.Empty),
		"outline":   hexOf(p.Outline),
		"tip_empty": hexOf(p.TipEmpty),
		"unknown":   hexOf(p.Unknown),
	}
	for label, c := range p.compounds {
		fills["compound:"+label] = hexOf(c)
	}
	// String maps always encode.
	h, _ := cache.HashJSON(fills)
	return h
}

func hexOf(c color.Color) string {
	if c == nil {
		return ""
	}
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}
