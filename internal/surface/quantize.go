package surface

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidPalette = errors.New("invalid palette")
	ErrNilPolicy      = errors.New("quantization policy is nil")
)

// RGB is one texel.
type RGB struct {
	R, G, B uint8
}

// Policy maps an elevation to a texel. The boolean reports whether the
// elevation fell outside the policy's range and was clamped.
type Policy interface {
	Quantize(elevation float64) (RGB, bool)
}

// LinearPolicy scales the elevation per channel: channel = floor(e*scale),
// clamped to [0,255]. With scales up to 255 it is monotonic for e in [0,1].
type LinearPolicy struct {
	Scale [3]float64
}

// StarPolicy is the linear ramp used for stars.
func StarPolicy() LinearPolicy {
	return LinearPolicy{Scale: [3]float64{255, 160, 120}}
}

func (p LinearPolicy) Quantize(elevation float64) (RGB, bool) {
	r, cr := clampChannel(elevation * p.Scale[0])
	g, cg := clampChannel(elevation * p.Scale[1])
	b, cb := clampChannel(elevation * p.Scale[2])
	return RGB{R: r, G: g, B: b}, cr || cg || cb
}

func clampChannel(v float64) (uint8, bool) {
	if math.IsNaN(v) {
		return 0, true
	}
	v = math.Floor(v)
	if v < 0 {
		return 0, true
	}
	if v > 255 {
		return 255, true
	}
	return uint8(v), false
}

// Stop is one palette entry: elevations in (previous threshold, Threshold]
// take Color.
type Stop struct {
	Threshold float64
	Color     RGB
}

// PalettePolicy selects a color by height bracket.
type PalettePolicy struct {
	stops []Stop
}

// NewPalette validates that thresholds are finite and strictly increasing.
func NewPalette(stops []Stop) (*PalettePolicy, error) {
	if len(stops) == 0 {
		return nil, fmt.Errorf("%w: no stops", ErrInvalidPalette)
	}
	for i, s := range stops {
		if math.IsNaN(s.Threshold) || math.IsInf(s.Threshold, 0) {
			return nil, fmt.Errorf("%w: stop %d threshold %v is not finite", ErrInvalidPalette, i, s.Threshold)
		}
		if i > 0 && s.Threshold <= stops[i-1].Threshold {
			return nil, fmt.Errorf("%w: stop %d threshold %v not above %v", ErrInvalidPalette, i, s.Threshold, stops[i-1].Threshold)
		}
	}
	out := make([]Stop, len(stops))
	copy(out, stops)
	return &PalettePolicy{stops: out}, nil
}

func (p *PalettePolicy) Stops() []Stop {
	out := make([]Stop, len(p.stops))
	copy(out, p.stops)
	return out
}

// Quantize clamps to the first bracket below the lowest threshold and to the
// last bracket above the highest.
func (p *PalettePolicy) Quantize(elevation float64) (RGB, bool) {
	if math.IsNaN(elevation) {
		return p.stops[0].Color, true
	}
	lo, hi := 0, len(p.stops)
	for lo < hi {
		mid := (lo + hi) / 2
		if p.stops[mid].Threshold >= elevation {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == len(p.stops) {
		return p.stops[len(p.stops)-1].Color, true
	}
	if lo == 0 && elevation < p.stops[0].Threshold {
		return p.stops[0].Color, true
	}
	return p.stops[lo].Color, false
}

// Texture is an immutable interleaved RGB buffer.
type Texture struct {
	dim Dimensions
	pix []byte
	// Clamped counts cells whose elevation was out of the policy's range.
	Clamped int
}

func (t *Texture) Dimensions() Dimensions { return t.dim }

// Bytes returns a copy of the interleaved RGB data.
func (t *Texture) Bytes() []byte {
	out := make([]byte, len(t.pix))
	copy(out, t.pix)
	return out
}

// At returns the texel at (x, y).
func (t *Texture) At(x, y int) RGB {
	i := 3 * (y*t.dim.Width + x)
	return RGB{R: t.pix[i], G: t.pix[i+1], B: t.pix[i+2]}
}

// Quantize maps every elevation of field through policy.
func Quantize(field *Field, policy Policy) (*Texture, error) {
	if policy == nil {
		return nil, ErrNilPolicy
	}
	if field == nil {
		return nil, errors.New("field is nil")
	}
	pix := make([]byte, 3*len(field.values))
	clamped := 0
	for i, e := range field.values {
		c, out := policy.Quantize(e)
		if out {
			clamped++
		}
		pix[3*i] = c.R
		pix[3*i+1] = c.G
		pix[3*i+2] = c.B
	}
	return &Texture{dim: field.dim, pix: pix, Clamped: clamped}, nil
}
