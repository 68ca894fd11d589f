package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// MaxSeed is the largest seed accepted by New. Seeds are kept to 32 bits so
// the same value produces the same surface regardless of backend.
const MaxSeed = math.MaxUint32

var (
	ErrInvalidSeed    = errors.New("invalid seed")
	ErrUnknownBackend = errors.New("unknown noise backend")
)

// Backend names a noise implementation.
type Backend string

const (
	OpenSimplex Backend = "opensimplex"
	Perlin      Backend = "perlin"
)

// Source is a seeded, continuous 3D noise function with output in [0, 1].
type Source interface {
	Sample(x, y, z float64) float64
}

// New returns the Source for backend bound to seed. An empty backend selects
// OpenSimplex.
func New(backend Backend, seed int64) (Source, error) {
	if err := ValidateSeed(seed); err != nil {
		return nil, err
	}
	switch backend {
	case OpenSimplex, "":
		return &simplexSource{noise: opensimplex.NewNormalized(seed)}, nil
	case Perlin:
		return &perlinSource{noise: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// ValidateSeed reports whether seed lies in [0, MaxSeed].
func ValidateSeed(seed int64) error {
	if seed < 0 || seed > MaxSeed {
		return fmt.Errorf("%w: %d outside [0, %d]", ErrInvalidSeed, seed, int64(MaxSeed))
	}
	return nil
}

// ParseBackend maps a configuration string onto a Backend.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case OpenSimplex, "":
		return OpenSimplex, nil
	case Perlin:
		return Perlin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

type simplexSource struct {
	noise opensimplex.Noise
}

func (s *simplexSource) Sample(x, y, z float64) float64 {
	return s.noise.Eval3(x, y, z)
}

const (
	perlinAlpha   = 2.0
	perlinBeta    = 2.0
	perlinOctaves = 3
)

type perlinSource struct {
	noise *perlin.Perlin
}

// Sample remaps go-perlin's nominal [-1, 1] output onto [0, 1].
func (s *perlinSource) Sample(x, y, z float64) float64 {
	v := (s.noise.Noise3D(x, y, z) + 1) * 0.5
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
