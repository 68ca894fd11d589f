package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"

	"celestial/internal/body"
	"celestial/internal/config"
	"celestial/internal/preview"
	"celestial/internal/store"
)

type options struct {
	configPath   string
	kind         string
	seed         int64
	radius       float64
	outDir       string
	elevationDir string
	storePath    string
	seedSet      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a configuration file (defaults are used when empty)")
	flag.StringVar(&opts.kind, "kind", "all", "body to generate: star, planet or all")
	flag.Int64Var(&opts.seed, "seed", 0, "override the configured seed")
	flag.Float64Var(&opts.radius, "radius", 0, "override the configured radius")
	flag.StringVar(&opts.outDir, "out", ".", "directory for texture PNGs")
	flag.StringVar(&opts.elevationDir, "elevation-out", "", "directory for grayscale elevation PNGs (disabled when empty)")
	flag.StringVar(&opts.storePath, "store", "", "LevelDB directory to record generated surfaces in")
	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.seedSet = true
		}
	})

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := run(context.Background(), cfg, opts); err != nil {
		log.Fatalf("generate: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	kinds, err := selectKinds(opts.kind)
	if err != nil {
		return err
	}

	var st *store.Store
	if opts.storePath != "" {
		st, err = store.Open(opts.storePath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	for _, kind := range kinds {
		bodyOpts, err := cfg.BodyOptions(kind)
		if err != nil {
			return err
		}
		if opts.seedSet {
			bodyOpts.Seed = opts.seed
		}
		if opts.radius != 0 {
			bodyOpts.Radius = opts.radius
		}

		b, err := body.New(ctx, bodyOpts)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		surf := b.Surface()
		log.Printf("%s seed %d: %dx%d, elevation range [%.6f, %.6f], %d cells clamped",
			kind, surf.Seed, surf.Width, surf.Height, surf.MinElevation(), surf.MaxElevation(), surf.Clamped)

		name := fmt.Sprintf("%s_%d.png", kind, surf.Seed)
		if err := preview.SaveTexture(filepath.Join(opts.outDir, name), surf.Description); err != nil {
			return err
		}
		if opts.elevationDir != "" {
			if err := preview.SaveElevation(filepath.Join(opts.elevationDir, name), surf.Description); err != nil {
				return err
			}
		}
		if st != nil {
			key, err := store.KeyForOptions(bodyOpts, cfg.Style(kind))
			if err != nil {
				return err
			}
			if err := st.Put(key, surf); err != nil {
				return err
			}
		}
	}
	return nil
}

func selectKinds(s string) ([]body.Kind, error) {
	if s == "all" {
		return []body.Kind{body.KindStar, body.KindPlanet}, nil
	}
	kind, err := body.ParseKind(s)
	if err != nil {
		return nil, err
	}
	return []body.Kind{kind}, nil
}
