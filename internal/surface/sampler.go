package surface

import (
	"errors"
	"fmt"
	"math"

	"celestial/internal/noise"
)

var (
	ErrInvalidNoiseParams = errors.New("invalid noise parameters")
	ErrInvalidDimensions  = errors.New("invalid dimensions")
)

// TexelsPerRadius is the equirectangular texture width per unit of radius
// (2π rounded down to 6).
const TexelsPerRadius = 6

// maxCells bounds Width*Height so the elevation buffer (8 bytes per cell)
// stays below the runtime allocation limit on every platform.
const maxCells = min(1<<32, math.MaxInt/8)

// Dimensions describes an equirectangular sample grid. Height is always Width/2.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Cells returns Width*Height.
func (d Dimensions) Cells() int {
	return d.Width * d.Height
}

func (d Dimensions) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: %dx%d must be positive", ErrInvalidDimensions, d.Width, d.Height)
	}
	if d.Height > maxCells/d.Width {
		return fmt.Errorf("%w: %dx%d grid is too large", ErrInvalidDimensions, d.Width, d.Height)
	}
	if d.Width != 2*d.Height {
		return fmt.Errorf("%w: height %d must be half of width %d", ErrInvalidDimensions, d.Height, d.Width)
	}
	return nil
}

// DimensionsForRadius derives the grid for a body of the given radius.
// 6*radius must be a positive, even, whole number of texels. A positive
// maxWidth caps the width.
func DimensionsForRadius(radius float64, maxWidth int) (Dimensions, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return Dimensions{}, fmt.Errorf("%w: radius %v must be positive", ErrInvalidDimensions, radius)
	}
	w := radius * TexelsPerRadius
	if w != math.Trunc(w) {
		return Dimensions{}, fmt.Errorf("%w: radius %v gives fractional width %v", ErrInvalidDimensions, radius, w)
	}
	if w*(w/2) > maxCells {
		return Dimensions{}, fmt.Errorf("%w: radius %v needs a %vx%v grid, too large to allocate", ErrInvalidDimensions, radius, w, w/2)
	}
	if maxWidth > 0 && w > float64(maxWidth) {
		return Dimensions{}, fmt.Errorf("%w: width %v exceeds limit %d", ErrInvalidDimensions, w, maxWidth)
	}
	width := int(w)
	if width%2 != 0 {
		return Dimensions{}, fmt.Errorf("%w: width %d must be even", ErrInvalidDimensions, width)
	}
	dim := Dimensions{Width: width, Height: width / 2}
	return dim, dim.Validate()
}

// Params controls the fractal accumulation.
type Params struct {
	Frequency   float64 `json:"frequency" yaml:"frequency"`
	Octaves     int     `json:"octaves" yaml:"octaves"`
	Lacunarity  float64 `json:"lacunarity" yaml:"lacunarity"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
}

// DefaultParams returns the classic surface constants for a grid width:
// frequency 0.005 per 100 texels, 4 octaves, lacunarity 2, persistence 0.4.
func DefaultParams(width int) Params {
	return Params{
		Frequency:   DefaultFrequency(width),
		Octaves:     4,
		Lacunarity:  2,
		Persistence: 0.4,
	}
}

func DefaultFrequency(width int) float64 {
	return 0.005 * float64(width) / 100
}

func (p Params) Validate() error {
	if math.IsNaN(p.Frequency) || math.IsInf(p.Frequency, 0) || p.Frequency <= 0 {
		return fmt.Errorf("%w: frequency %v must be positive", ErrInvalidNoiseParams, p.Frequency)
	}
	if p.Octaves < 1 {
		return fmt.Errorf("%w: octaves %d must be at least 1", ErrInvalidNoiseParams, p.Octaves)
	}
	if math.IsNaN(p.Lacunarity) || math.IsInf(p.Lacunarity, 0) || p.Lacunarity <= 1 {
		return fmt.Errorf("%w: lacunarity %v must be greater than 1", ErrInvalidNoiseParams, p.Lacunarity)
	}
	if math.IsNaN(p.Persistence) || p.Persistence <= 0 || p.Persistence >= 1 {
		return fmt.Errorf("%w: persistence %v must be in (0,1)", ErrInvalidNoiseParams, p.Persistence)
	}
	return nil
}

// Sampler maps grid coordinates onto a sphere and returns one fractal noise
// value per coordinate.
type Sampler struct {
	src     noise.Source
	dim     Dimensions
	params  Params
	rSphere float64
	norm    float64
}

func NewSampler(src noise.Source, dim Dimensions, params Params) (*Sampler, error) {
	if src == nil {
		return nil, errors.New("noise source is nil")
	}
	if err := dim.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	norm := 0.0
	amplitude := 1.0
	for i := 0; i < params.Octaves; i++ {
		norm += amplitude
		amplitude *= params.Persistence
	}

	return &Sampler{
		src:     src,
		dim:     dim,
		params:  params,
		rSphere: float64(dim.Width) / (2 * math.Pi),
		norm:    norm,
	}, nil
}

func (s *Sampler) Dimensions() Dimensions { return s.dim }
func (s *Sampler) Params() Params         { return s.params }

// Sample returns the normalised fractal noise at grid coordinate (x, y),
// x in [0, Width) and y in [0, Height). The result shares the source's
// [0, 1] range.
func (s *Sampler) Sample(x, y float64) float64 {
	theta := y * math.Pi / float64(s.dim.Height)
	phi := x * 2 * math.Pi / float64(s.dim.Width)
	rCylinder := s.rSphere * math.Cos(math.Pi/2-theta)

	px := rCylinder * math.Cos(phi)
	py := rCylinder * math.Sin(phi)
	pz := s.rSphere * math.Cos(theta)

	frequency := s.params.Frequency
	amplitude := 1.0
	sum := 0.0
	for i := 0; i < s.params.Octaves; i++ {
		sum += s.src.Sample(px*frequency, py*frequency, pz*frequency) * amplitude
		frequency *= s.params.Lacunarity
		amplitude *= s.params.Persistence
	}
	return sum / s.norm
}
