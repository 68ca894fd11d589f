package surface

import (
	"context"
	"errors"
	"log"
	"math"
	"runtime"
	"sync"
)

// Field is a completed elevation grid with its extrema. It is read-only.
type Field struct {
	dim    Dimensions
	values []float64
	min    float64
	max    float64
}

func (f *Field) Dimensions() Dimensions { return f.dim }
func (f *Field) Len() int               { return len(f.values) }
func (f *Field) Min() float64           { return f.min }
func (f *Field) Max() float64           { return f.max }

// At returns the elevation of cell (x, y).
func (f *Field) At(x, y int) float64 {
	return f.values[y*f.dim.Width+x]
}

// Values returns a copy of the row-major elevations.
func (f *Field) Values() []float64 {
	out := make([]float64, len(f.values))
	copy(out, f.values)
	return out
}

// Builder samples every cell of a grid into a Field.
type Builder struct {
	// Workers bounds the number of goroutines. Zero picks a value from
	// GOMAXPROCS, one builds sequentially on the calling goroutine.
	Workers int
	Logger  *log.Logger
}

// NewBuilder returns a Builder logging to the standard logger.
func NewBuilder(workers int) *Builder {
	return &Builder{Workers: workers, Logger: log.Default()}
}

type extrema struct {
	min float64
	max float64
}

func emptyExtrema() extrema {
	return extrema{min: math.Inf(1), max: math.Inf(-1)}
}

func (e extrema) merge(o extrema) extrema {
	return extrema{min: math.Min(e.min, o.min), max: math.Max(e.max, o.max)}
}

func (e extrema) add(v float64) extrema {
	if v < e.min {
		e.min = v
	}
	if v > e.max {
		e.max = v
	}
	return e
}

// Build samples each cell centre (x+0.5, y+0.5). The result is identical for
// any worker count. On error no field is returned.
func (b *Builder) Build(ctx context.Context, sampler *Sampler) (*Field, error) {
	if sampler == nil {
		return nil, errors.New("sampler is nil")
	}
	dim := sampler.Dimensions()
	if err := dim.Validate(); err != nil {
		return nil, err
	}

	values := make([]float64, dim.Cells())
	progress := newProgressLog(b.logger(), dim.Height)

	workers := b.workerCount(dim.Height)
	var total extrema
	var err error
	if workers == 1 {
		total, err = b.buildSequential(ctx, sampler, values, progress)
	} else {
		total, err = b.buildParallel(ctx, sampler, values, workers, progress)
	}
	if err != nil {
		return nil, err
	}
	progress.finish()

	return &Field{dim: dim, values: values, min: total.min, max: total.max}, nil
}

func (b *Builder) buildSequential(ctx context.Context, sampler *Sampler, values []float64, progress *progressLog) (extrema, error) {
	total := emptyExtrema()
	for y := 0; y < sampler.dim.Height; y++ {
		if err := ctx.Err(); err != nil {
			return extrema{}, err
		}
		total = total.merge(sampleRow(sampler, values, y))
		progress.step()
	}
	return total, nil
}

func (b *Builder) buildParallel(ctx context.Context, sampler *Sampler, values []float64, workers int, progress *progressLog) (extrema, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type rowResult struct {
		ext extrema
		err error
	}

	rows := make(chan int, workers)
	results := make(chan rowResult, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				if err := ctx.Err(); err != nil {
					select {
					case results <- rowResult{err: err}:
					default:
					}
					return
				}
				ext := sampleRow(sampler, values, y)
				select {
				case results <- rowResult{ext: ext}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(rows)
		for y := 0; y < sampler.dim.Height; y++ {
			select {
			case <-ctx.Done():
				return
			case rows <- y:
			}
		}
	}()

	total := emptyExtrema()
	done := 0
	for result := range results {
		if result.err != nil {
			cancel()
			return extrema{}, result.err
		}
		total = total.merge(result.ext)
		done++
		progress.step()
	}
	if done != sampler.dim.Height {
		if err := ctx.Err(); err != nil {
			return extrema{}, err
		}
		return extrema{}, context.Canceled
	}
	return total, nil
}

// sampleRow writes row y into values and returns the row's extrema. Rows are
// disjoint so concurrent calls never share cells.
func sampleRow(sampler *Sampler, values []float64, y int) extrema {
	width := sampler.dim.Width
	row := values[y*width : (y+1)*width]
	ext := emptyExtrema()
	fy := float64(y) + 0.5
	for x := range row {
		v := sampler.Sample(float64(x)+0.5, fy)
		row[x] = v
		ext = ext.add(v)
	}
	return ext
}

func (b *Builder) logger() *log.Logger {
	if b.Logger == nil {
		return log.Default()
	}
	return b.Logger
}

func (b *Builder) workerCount(rows int) int {
	if rows <= 0 {
		return 1
	}
	if b.Workers > 0 {
		if b.Workers < rows {
			return b.Workers
		}
		return rows
	}
	workers := runtime.GOMAXPROCS(0)
	if workers <= 0 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}
	return workers
}

type progressLog struct {
	logger *log.Logger
	total  int
	done   int
	next   int
	logged bool
}

func newProgressLog(logger *log.Logger, total int) *progressLog {
	logger.Printf("elevation field progress: 0%%")
	return &progressLog{logger: logger, total: total, next: 10}
}

func (p *progressLog) step() {
	p.done++
	percent := p.done * 100 / p.total
	if percent < p.next {
		return
	}
	if percent > 100 {
		percent = 100
	}
	p.logger.Printf("elevation field progress: %d%%", percent)
	if percent >= 100 {
		p.logged = true
		p.next = 110
		return
	}
	p.next = (percent/10 + 1) * 10
}

func (p *progressLog) finish() {
	if !p.logged {
		p.logger.Printf("elevation field progress: 100%%")
	}
}
