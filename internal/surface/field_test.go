package surface

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math"
	"strings"
	"testing"

	"celestial/internal/noise"
)

func quietBuilder(workers int) *Builder {
	return &Builder{Workers: workers, Logger: log.New(io.Discard, "", 0)}
}

func newTestSampler(t *testing.T, radius float64, seed int64, params *Params) *Sampler {
	t.Helper()
	dim, err := DimensionsForRadius(radius, 0)
	if err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	src, err := noise.New(noise.OpenSimplex, seed)
	if err != nil {
		t.Fatalf("noise source: %v", err)
	}
	p := DefaultParams(dim.Width)
	if params != nil {
		p = *params
	}
	s, err := NewSampler(src, dim, p)
	if err != nil {
		t.Fatalf("sampler: %v", err)
	}
	return s
}

func TestBuildRadiusTenSeedFortyTwo(t *testing.T) {
	s := newTestSampler(t, 10, 42, nil)
	field, err := quietBuilder(0).Build(context.Background(), s)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if got := field.Dimensions(); got != (Dimensions{Width: 60, Height: 30}) {
		t.Fatalf("dimensions = %+v", got)
	}
	if field.Len() != 1800 {
		t.Fatalf("field length = %d, want 1800", field.Len())
	}
	for i, v := range field.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("cell %d is not finite: %v", i, v)
		}
	}
	if math.IsInf(field.Min(), 0) || math.IsInf(field.Max(), 0) || field.Min() > field.Max() {
		t.Fatalf("bad extrema: min %v max %v", field.Min(), field.Max())
	}
}

func TestBuildExtremaAreExact(t *testing.T) {
	params := Params{Frequency: 0.2, Octaves: 4, Lacunarity: 2, Persistence: 0.5}
	s := newTestSampler(t, 12, 7, &params)
	field, err := quietBuilder(3).Build(context.Background(), s)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	wantMin, wantMax := math.Inf(1), math.Inf(-1)
	for _, v := range field.Values() {
		if v < field.Min() || v > field.Max() {
			t.Fatalf("value %v outside [%v, %v]", v, field.Min(), field.Max())
		}
		wantMin = math.Min(wantMin, v)
		wantMax = math.Max(wantMax, v)
	}
	if field.Min() != wantMin || field.Max() != wantMax {
		t.Fatalf("extrema (%v, %v), want (%v, %v)", field.Min(), field.Max(), wantMin, wantMax)
	}
}

func TestBuildIdenticalForAnyWorkerCount(t *testing.T) {
	params := Params{Frequency: 0.1, Octaves: 3, Lacunarity: 2, Persistence: 0.5}
	s := newTestSampler(t, 8, 99, &params)

	reference, err := quietBuilder(1).Build(context.Background(), s)
	if err != nil {
		t.Fatalf("sequential build: %v", err)
	}
	for _, workers := range []int{0, 2, 5, 64} {
		got, err := quietBuilder(workers).Build(context.Background(), s)
		if err != nil {
			t.Fatalf("build with %d workers: %v", workers, err)
		}
		a, b := reference.Values(), got.Values()
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("workers %d: cell %d differs: %v vs %v", workers, i, a[i], b[i])
			}
		}
		if got.Min() != reference.Min() || got.Max() != reference.Max() {
			t.Fatalf("workers %d: extrema differ", workers)
		}
	}
}

func TestBuildSamplesCellCentres(t *testing.T) {
	params := Params{Frequency: 0.3, Octaves: 2, Lacunarity: 2, Persistence: 0.5}
	s := newTestSampler(t, 2, 5, &params)
	field, err := quietBuilder(1).Build(context.Background(), s)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dim := field.Dimensions()
	for y := 0; y < dim.Height; y++ {
		for x := 0; x < dim.Width; x++ {
			if want := s.Sample(float64(x)+0.5, float64(y)+0.5); field.At(x, y) != want {
				t.Fatalf("cell (%d,%d) = %v, want %v", x, y, field.At(x, y), want)
			}
		}
	}
}

func TestBuildCancelledReturnsNoField(t *testing.T) {
	s := newTestSampler(t, 10, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		field, err := quietBuilder(workers).Build(ctx, s)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("workers %d: expected context.Canceled, got %v", workers, err)
		}
		if field != nil {
			t.Fatalf("workers %d: expected no partial field", workers)
		}
	}
}

func TestBuildLogsProgress(t *testing.T) {
	var buf bytes.Buffer
	b := &Builder{Workers: 2, Logger: log.New(&buf, "", 0)}
	params := Params{Frequency: 0.1, Octaves: 1, Lacunarity: 2, Persistence: 0.5}
	s := newTestSampler(t, 10, 3, &params)

	if _, err := b.Build(context.Background(), s); err != nil {
		t.Fatalf("build: %v", err)
	}

	logs := buf.String()
	for _, marker := range []string{"0%", "50%", "100%"} {
		if !strings.Contains(logs, marker) {
			t.Fatalf("expected logs to contain progress %s, got: %s", marker, logs)
		}
	}
	if strings.Count(logs, "100%") != 1 {
		t.Fatalf("expected a single completion line, got: %s", logs)
	}
}

// localExtrema counts sign changes of the discrete gradient along every row.
func localExtrema(f *Field) int {
	dim := f.Dimensions()
	count := 0
	for y := 0; y < dim.Height; y++ {
		prev := 0.0
		for x := 1; x < dim.Width; x++ {
			d := f.At(x, y) - f.At(x-1, y)
			if d == 0 {
				continue
			}
			if prev != 0 && (d > 0) != (prev > 0) {
				count++
			}
			prev = d
		}
	}
	return count
}

// The frequency has to be high enough for the added octaves to vary between
// neighbouring cells of a radius 10 grid. At DefaultParams(60) the field is
// nearly flat and both octave counts produce the same extrema.
func TestMoreOctavesAddLocalExtrema(t *testing.T) {
	one := Params{Frequency: 0.05, Octaves: 1, Lacunarity: 2, Persistence: 0.5}
	four := one
	four.Octaves = 4

	smooth, err := quietBuilder(0).Build(context.Background(), newTestSampler(t, 10, 42, &one))
	if err != nil {
		t.Fatalf("build octaves=1: %v", err)
	}
	detailed, err := quietBuilder(0).Build(context.Background(), newTestSampler(t, 10, 42, &four))
	if err != nil {
		t.Fatalf("build octaves=4: %v", err)
	}

	if a, b := localExtrema(smooth), localExtrema(detailed); b <= a {
		t.Fatalf("expected octaves=4 to have more local extrema than octaves=1, got %d vs %d", b, a)
	}
}

func TestBuildNilSampler(t *testing.T) {
	if _, err := quietBuilder(1).Build(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil sampler")
	}
}
