package surface

import (
	"context"
	"fmt"
	"log"

	"celestial/internal/noise"
)

// Request is everything needed to synthesise one surface.
type Request struct {
	Radius  float64
	Seed    int64
	Policy  Policy
	Backend noise.Backend
	// Params overrides DefaultParams when non-nil. A zero Frequency is
	// derived from the texture width as in DefaultFrequency.
	Params *Params
	// MaxWidth caps the texture width; zero means unlimited.
	MaxWidth int
	Builder  *Builder
}

// Description is the finished surface handed to renderers.
type Description struct {
	Radius       float64       `json:"radius"`
	Seed         int64         `json:"seed"`
	Backend      noise.Backend `json:"backend"`
	Params       Params        `json:"params"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Elevations   []float64     `json:"-"`
	TextureBytes []byte        `json:"-"`
	Min          float64       `json:"minElevation"`
	Max          float64       `json:"maxElevation"`
	Clamped      int           `json:"clamped"`
}

func (d *Description) MinElevation() float64 { return d.Min }
func (d *Description) MaxElevation() float64 { return d.Max }

// Plan holds the validated inputs of a Request. Nothing has been sampled yet.
type Plan struct {
	Dimensions Dimensions
	Params     Params
	Backend    noise.Backend
	Seed       int64
	Radius     float64
}

// Prepare validates r without doing any sampling work.
func Prepare(r Request) (Plan, error) {
	if err := noise.ValidateSeed(r.Seed); err != nil {
		return Plan{}, err
	}
	backend, err := noise.ParseBackend(string(r.Backend))
	if err != nil {
		return Plan{}, err
	}
	dim, err := DimensionsForRadius(r.Radius, r.MaxWidth)
	if err != nil {
		return Plan{}, err
	}
	params := DefaultParams(dim.Width)
	if r.Params != nil {
		params = *r.Params
		if params.Frequency == 0 {
			params.Frequency = DefaultFrequency(dim.Width)
		}
	}
	if err := params.Validate(); err != nil {
		return Plan{}, err
	}
	return Plan{Dimensions: dim, Params: params, Backend: backend, Seed: r.Seed, Radius: r.Radius}, nil
}

// BuildField samples the elevation field for a prepared plan.
func BuildField(ctx context.Context, plan Plan, builder *Builder) (*Field, error) {
	src, err := noise.New(plan.Backend, plan.Seed)
	if err != nil {
		return nil, err
	}
	sampler, err := NewSampler(src, plan.Dimensions, plan.Params)
	if err != nil {
		return nil, err
	}
	if builder == nil {
		builder = NewBuilder(0)
	}
	return builder.Build(ctx, sampler)
}

// Create validates the request, builds the field and quantizes it. It either
// returns a complete Description or an error, never partial output.
func Create(ctx context.Context, r Request) (*Description, error) {
	if r.Policy == nil {
		return nil, ErrNilPolicy
	}
	plan, err := Prepare(r)
	if err != nil {
		return nil, err
	}
	builder := r.Builder
	if builder == nil {
		builder = NewBuilder(0)
	}
	field, err := BuildField(ctx, plan, builder)
	if err != nil {
		return nil, fmt.Errorf("build elevation field: %w", err)
	}
	tex, err := Quantize(field, r.Policy)
	if err != nil {
		return nil, fmt.Errorf("quantize texture: %w", err)
	}
	ReportClamped(builder.logger(), tex)
	return Describe(plan, field, tex), nil
}

// ReportClamped logs the out-of-range diagnostic for tex, if any cells were
// clamped.
func ReportClamped(logger *log.Logger, tex *Texture) {
	if tex.Clamped == 0 {
		return
	}
	logger.Printf("elevation out of range: %d of %d cells clamped", tex.Clamped, tex.dim.Cells())
}

// Describe assembles a Description from a built field and its texture.
func Describe(plan Plan, field *Field, tex *Texture) *Description {
	return &Description{
		Radius:       plan.Radius,
		Seed:         plan.Seed,
		Backend:      plan.Backend,
		Params:       plan.Params,
		Width:        plan.Dimensions.Width,
		Height:       plan.Dimensions.Height,
		Elevations:   field.Values(),
		TextureBytes: tex.Bytes(),
		Min:          field.Min(),
		Max:          field.Max(),
		Clamped:      tex.Clamped,
	}
}
