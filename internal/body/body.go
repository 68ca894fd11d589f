package body

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"celestial/internal/noise"
	"celestial/internal/surface"
)

var ErrUnknownKind = errors.New("unknown body kind")

// Kind selects a body variant.
type Kind string

const (
	KindStar   Kind = "star"
	KindPlanet Kind = "planet"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStar:
		return KindStar, nil
	case KindPlanet:
		return KindPlanet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Body is a celestial body that owns a generated surface.
type Body interface {
	Kind() Kind
	Radius() float64
	Position() mgl64.Vec3
	// GenerateElevations builds the elevation field for seed.
	GenerateElevations(ctx context.Context, seed int64) (*surface.Field, error)
	// GenerateTexture quantizes the field for seed, building it first if the
	// body currently holds another seed's field.
	GenerateTexture(ctx context.Context, seed int64) (*surface.Texture, error)
	// Update is reserved for time-dependent surface changes. It currently
	// does nothing.
	Update(ctx context.Context) error
	// Surface describes the current field and texture for renderers.
	Surface() *Surface
}

// Surface is the hand-off to a rendering collaborator.
type Surface struct {
	*surface.Description

	Kind     Kind       `json:"kind"`
	Position mgl64.Vec3 `json:"position"`

	// Lit reports whether the material reacts to scene lighting. Stars are
	// drawn unlit.
	Lit   bool   `json:"lit"`
	Light *Light `json:"light,omitempty"`
}

// Options configures a body. Zero values pick defaults.
type Options struct {
	Kind     Kind
	Radius   float64
	Seed     int64
	Position mgl64.Vec3
	Backend  noise.Backend
	Params   *surface.Params
	MaxWidth int
	Workers  int
	Logger   *log.Logger

	// Star only. Color is 0..255 per channel.
	Luminosity float64
	Color      mgl64.Vec3

	// Planet only; nil selects DefaultPalette.
	Palette *surface.PalettePolicy
}

// New constructs and generates the body selected by opts.Kind. On error the
// returned Body is nil.
func New(ctx context.Context, opts Options) (Body, error) {
	switch opts.Kind {
	case KindStar:
		s, err := NewStar(ctx, opts)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindPlanet:
		p, err := NewPlanet(ctx, opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, opts.Kind)
	}
}

// generator holds the state shared by every body variant.
type generator struct {
	kind     Kind
	radius   float64
	position mgl64.Vec3
	backend  noise.Backend
	params   *surface.Params
	maxWidth int
	policy   surface.Policy
	builder  *surface.Builder
	logger   *log.Logger

	plan    surface.Plan
	field   *surface.Field
	texture *surface.Texture
}

func newGenerator(kind Kind, opts Options, policy surface.Policy) *generator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), string(kind)+" ", log.LstdFlags|log.Lmicroseconds)
	}
	return &generator{
		kind:     kind,
		radius:   opts.Radius,
		position: opts.Position,
		backend:  opts.Backend,
		params:   opts.Params,
		maxWidth: opts.MaxWidth,
		policy:   policy,
		builder:  &surface.Builder{Workers: opts.Workers, Logger: logger},
		logger:   logger,
	}
}

// generate validates everything up front, then builds field and texture.
// The body keeps its previous surface if anything fails.
func (g *generator) generate(ctx context.Context, seed int64) error {
	if g.policy == nil {
		return surface.ErrNilPolicy
	}
	plan, err := surface.Prepare(surface.Request{
		Radius:   g.radius,
		Seed:     seed,
		Backend:  g.backend,
		Params:   g.params,
		MaxWidth: g.maxWidth,
	})
	if err != nil {
		return err
	}
	g.logger.Printf("generating %s surface: radius %v, seed %d, %dx%d", g.kind, g.radius, seed, plan.Dimensions.Width, plan.Dimensions.Height)
	field, err := surface.BuildField(ctx, plan, g.builder)
	if err != nil {
		return fmt.Errorf("build elevation field: %w", err)
	}
	tex, err := surface.Quantize(field, g.policy)
	if err != nil {
		return fmt.Errorf("quantize texture: %w", err)
	}
	surface.ReportClamped(g.logger, tex)

	g.plan, g.field, g.texture = plan, field, tex
	return nil
}

func (g *generator) Kind() Kind           { return g.kind }
func (g *generator) Radius() float64      { return g.radius }
func (g *generator) Position() mgl64.Vec3 { return g.position }

// Update is an extension point for surfaces that change over time. No such
// behaviour exists yet, so it leaves the body untouched.
func (g *generator) Update(context.Context) error {
	return nil
}

func (g *generator) GenerateElevations(ctx context.Context, seed int64) (*surface.Field, error) {
	if g.field != nil && g.plan.Seed == seed {
		return g.field, nil
	}
	if err := g.generate(ctx, seed); err != nil {
		return nil, err
	}
	return g.field, nil
}

func (g *generator) GenerateTexture(ctx context.Context, seed int64) (*surface.Texture, error) {
	if _, err := g.GenerateElevations(ctx, seed); err != nil {
		return nil, err
	}
	return g.texture, nil
}

// MinElevation and MaxElevation are valid once the body has been generated.
func (g *generator) MinElevation() float64 { return g.field.Min() }
func (g *generator) MaxElevation() float64 { return g.field.Max() }

func (g *generator) describe() *Surface {
	return &Surface{
		Kind:        g.kind,
		Description: surface.Describe(g.plan, g.field, g.texture),
		Position:    g.position,
	}
}
