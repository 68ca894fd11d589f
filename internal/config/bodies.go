package config

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"celestial/internal/body"
	"celestial/internal/noise"
	"celestial/internal/surface"
)

// BodyOptions translates the configured star or planet into generator options.
// Seed and radius may be overridden by the caller afterwards.
func (c *Config) BodyOptions(kind body.Kind) (body.Options, error) {
	backend, err := noise.ParseBackend(c.Generator.Backend)
	if err != nil {
		return body.Options{}, err
	}
	opts := body.Options{
		Kind:     kind,
		Backend:  backend,
		MaxWidth: c.Generator.MaxWidth,
		Workers:  c.Generator.Workers,
	}

	switch kind {
	case body.KindStar:
		color, err := parseHexColor(c.Star.Color)
		if err != nil {
			return body.Options{}, fmt.Errorf("star.color: %w", err)
		}
		opts.Radius = c.Star.Radius
		opts.Seed = c.Star.Seed
		opts.Position = mgl64.Vec3(c.Star.Position)
		opts.Luminosity = c.Star.Luminosity
		opts.Color = mgl64.Vec3{float64(color.R), float64(color.G), float64(color.B)}
		opts.Params = c.Star.Noise.params()
	case body.KindPlanet:
		opts.Radius = c.Planet.Radius
		opts.Seed = c.Planet.Seed
		opts.Position = mgl64.Vec3(c.Planet.Position)
		opts.Params = c.Planet.Noise.params()
		if len(c.Planet.Palette) > 0 {
			palette, err := buildPalette(c.Planet.Palette)
			if err != nil {
				return body.Options{}, err
			}
			opts.Palette = palette
		}
	default:
		return body.Options{}, fmt.Errorf("%w: %q", body.ErrUnknownKind, kind)
	}
	return opts, nil
}

func (n NoiseConfig) params() *surface.Params {
	return &surface.Params{
		Frequency:   n.Frequency,
		Octaves:     n.Octaves,
		Lacunarity:  n.Lacunarity,
		Persistence: n.Persistence,
	}
}

func buildPalette(stops []PaletteStop) (*surface.PalettePolicy, error) {
	out := make([]surface.Stop, len(stops))
	for i, stop := range stops {
		color, err := parseHexColor(stop.Color)
		if err != nil {
			return nil, fmt.Errorf("planet.palette[%d].color: %w", i, err)
		}
		out[i] = surface.Stop{Threshold: stop.Threshold, Color: color}
	}
	palette, err := surface.NewPalette(out)
	if err != nil {
		return nil, fmt.Errorf("planet.palette: %w", err)
	}
	return palette, nil
}

func parseHexColor(s string) (surface.RGB, error) {
	if !isValidHexColor(s) {
		return surface.RGB{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return surface.RGB{}, fmt.Errorf("parse hex color %q: %w", s, err)
	}
	return surface.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Style fingerprints the settings that change how a body's field is coloured
// without changing the field itself. Cached textures are keyed by it.
func (c *Config) Style(kind body.Kind) string {
	var section any
	switch kind {
	case body.KindStar:
		section = []any{c.Star.Color, c.Star.Luminosity, c.Star.Position}
	case body.KindPlanet:
		section = []any{c.Planet.Palette, c.Planet.Position}
	default:
		return ""
	}
	data, _ := json.Marshal(section)
	h := fnv.New64a()
	_, _ = h.Write(data)
	return strconv.FormatUint(h.Sum64(), 16)
}
