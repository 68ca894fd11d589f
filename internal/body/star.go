package body

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"

	"celestial/internal/surface"
)

// LightRange is the distance over which a star's point light falls off.
const LightRange = 10000

// Light is the point light a star contributes to the scene. Color is
// normalised to 0..1 per channel.
type Light struct {
	Color     mgl64.Vec3 `json:"color"`
	Intensity float64    `json:"intensity"`
	Range     float64    `json:"range"`
	Position  mgl64.Vec3 `json:"position"`
}

// Star is a self-luminous body textured with a linear ramp.
type Star struct {
	*generator
	luminosity float64
	light      Light
}

// NewStar generates the star's surface before returning.
func NewStar(ctx context.Context, opts Options) (*Star, error) {
	intensity := opts.Luminosity
	if intensity <= 0 {
		intensity = 1
	}
	s := &Star{
		generator:  newGenerator(KindStar, opts, surface.StarPolicy()),
		luminosity: opts.Luminosity,
		light: Light{
			Color:     opts.Color.Mul(1.0 / 255),
			Intensity: intensity,
			Range:     LightRange,
			Position:  opts.Position,
		},
	}
	if _, err := s.GenerateTexture(ctx, opts.Seed); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Star) Luminosity() float64 { return s.luminosity }
func (s *Star) Light() Light        { return s.light }

func (s *Star) Surface() *Surface {
	out := s.describe()
	light := s.light
	out.Light = &light
	return out
}
