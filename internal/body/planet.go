package body

import (
	"context"

	"celestial/internal/surface"
)

// DefaultPalette colours a planet by elevation bands over [0, 1].
func DefaultPalette() *surface.PalettePolicy {
	palette, err := surface.NewPalette([]surface.Stop{
		{Threshold: 0.00, Color: surface.RGB{R: 6, G: 20, B: 60}},     // trench
		{Threshold: 0.40, Color: surface.RGB{R: 12, G: 38, B: 94}},    // deep water
		{Threshold: 0.48, Color: surface.RGB{R: 30, G: 86, B: 160}},   // shallow water
		{Threshold: 0.51, Color: surface.RGB{R: 214, G: 196, B: 140}}, // sand
		{Threshold: 0.62, Color: surface.RGB{R: 64, G: 128, B: 56}},   // grass
		{Threshold: 0.72, Color: surface.RGB{R: 112, G: 100, B: 88}},  // rock
		{Threshold: 1.00, Color: surface.RGB{R: 240, G: 244, B: 248}}, // snow
	})
	if err != nil {
		panic(err)
	}
	return palette
}

// Planet is a lit body textured through a height palette.
type Planet struct {
	*generator
}

// NewPlanet generates the planet's surface before returning.
func NewPlanet(ctx context.Context, opts Options) (*Planet, error) {
	palette := opts.Palette
	if palette == nil {
		palette = DefaultPalette()
	}
	p := &Planet{generator: newGenerator(KindPlanet, opts, palette)}
	if _, err := p.GenerateTexture(ctx, opts.Seed); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Planet) Surface() *Surface {
	out := p.describe()
	out.Lit = true
	return out
}
