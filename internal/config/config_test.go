package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"celestial/internal/body"
	"celestial/internal/noise"
	"celestial/internal/surface"
)

func TestValidateDefaultConfig(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration should be valid: %v", err)
	}
}

func TestValidateDetectsInvalidConfigurations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative workers",
			mutate:  func(cfg *Config) { cfg.Generator.Workers = -1 },
			wantErr: "generator.workers cannot be negative",
		},
		{
			name:    "negative max width",
			mutate:  func(cfg *Config) { cfg.Generator.MaxWidth = -1 },
			wantErr: "generator.maxWidth cannot be negative",
		},
		{
			name:    "non positive star radius",
			mutate:  func(cfg *Config) { cfg.Star.Radius = 0 },
			wantErr: "star.radius must be positive",
		},
		{
			name:    "bad star color",
			mutate:  func(cfg *Config) { cfg.Star.Color = "orange" },
			wantErr: "star.color must be a hex RGB value",
		},
		{
			name:    "negative luminosity",
			mutate:  func(cfg *Config) { cfg.Star.Luminosity = -1 },
			wantErr: "star.luminosity cannot be negative",
		},
		{
			name:    "star octaves",
			mutate:  func(cfg *Config) { cfg.Star.Noise.Octaves = 0 },
			wantErr: "star.noise.octaves must be at least 1",
		},
		{
			name:    "planet lacunarity",
			mutate:  func(cfg *Config) { cfg.Planet.Noise.Lacunarity = 1 },
			wantErr: "planet.noise.lacunarity must be greater than 1",
		},
		{
			name:    "planet persistence",
			mutate:  func(cfg *Config) { cfg.Planet.Noise.Persistence = 1 },
			wantErr: "planet.noise.persistence must be between 0 and 1",
		},
		{
			name:    "non positive planet radius",
			mutate:  func(cfg *Config) { cfg.Planet.Radius = -3 },
			wantErr: "planet.radius must be positive",
		},
		{
			name: "palette out of order",
			mutate: func(cfg *Config) {
				cfg.Planet.Palette = []PaletteStop{{Threshold: 0.5, Color: "#000000"}, {Threshold: 0.5, Color: "#ffffff"}}
			},
			wantErr: "planet.palette[1].threshold must be greater than the previous threshold",
		},
		{
			name: "palette color",
			mutate: func(cfg *Config) {
				cfg.Planet.Palette = []PaletteStop{{Threshold: 0.5, Color: "#00000"}}
			},
			wantErr: "planet.palette[0].color must be a hex RGB value",
		},
		{
			name:    "missing listen address",
			mutate:  func(cfg *Config) { cfg.Server.ListenAddress = "" },
			wantErr: "server.listenAddress must be set",
		},
		{
			name:    "bad port",
			mutate:  func(cfg *Config) { cfg.Server.HTTPPort = 70000 },
			wantErr: "server.httpPort must be between 1 and 65535",
		},
		{
			name:    "no generation slots",
			mutate:  func(cfg *Config) { cfg.Server.MaxConcurrentGenerations = 0 },
			wantErr: "server.maxConcurrentGenerations must be at least 1",
		},
		{
			name:    "max radius",
			mutate:  func(cfg *Config) { cfg.Server.MaxRadius = 0 },
			wantErr: "server.maxRadius must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error, got nil")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("unexpected error: got %q want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateWrapsSeedAndBackendErrors(t *testing.T) {
	cfg := Default()
	cfg.Star.Seed = -1
	if err := cfg.Validate(); !errors.Is(err, noise.ErrInvalidSeed) {
		t.Fatalf("expected ErrInvalidSeed, got %v", err)
	}

	cfg = Default()
	cfg.Generator.Backend = "cellular"
	if err := cfg.Validate(); !errors.Is(err, noise.ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if want := Default(); !reflect.DeepEqual(cfg, want) {
		t.Fatalf("default configuration mismatch:\nwant: %#v\n got: %#v", want, cfg)
	}
}

func TestLoadReadsJSONFileAndValidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Star.Seed = 99
	cfg.Server.WriteTimeout = Duration(12 * time.Second)

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("loaded configuration mismatch:\nwant: %#v\n got: %#v", cfg, got)
	}
}

func TestLoadReadsYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "surface.yaml")
	data := []byte(`generator:
  backend: perlin
  workers: 2
planet:
  seed: 7
  palette:
    - threshold: 0.5
      color: "#102040"
    - threshold: 1
      color: "#ffffff"
server:
  shutdownTimeout: 750ms
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.Generator.Backend != "perlin" || got.Generator.Workers != 2 {
		t.Fatalf("generator section not applied: %+v", got.Generator)
	}
	if got.Planet.Seed != 7 || len(got.Planet.Palette) != 2 {
		t.Fatalf("planet section not applied: %+v", got.Planet)
	}
	if got.Server.ShutdownTimeout.Duration() != 750*time.Millisecond {
		t.Fatalf("shutdown timeout = %v", got.Server.ShutdownTimeout.Duration())
	}
	if got.Star.Radius != Default().Star.Radius {
		t.Fatalf("unset fields should keep defaults, star radius = %v", got.Star.Radius)
	}
}

func TestLoadInvalidConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Planet.Radius = 0

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err = Load(path)
	if err == nil {
		t.Fatalf("expected load to fail")
	}
	if !strings.Contains(err.Error(), "validate config: planet.radius must be positive") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	for _, name := range []string{"nested/surface.yml", "nested/surface.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := WriteDefault(path); err != nil {
				t.Fatalf("write default: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("load written default: %v", err)
			}
			if want := Default(); !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\nwant: %#v\n got: %#v", want, got)
			}
		})
	}
}

func TestDurationAcceptsStringsAndNumbers(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"1.5s"`), &d); err != nil || d.Duration() != 1500*time.Millisecond {
		t.Fatalf("string duration: %v, %v", d.Duration(), err)
	}
	if err := json.Unmarshal([]byte(`2000`), &d); err != nil || d.Duration() != 2000 {
		t.Fatalf("numeric duration: %v, %v", d.Duration(), err)
	}
	if err := json.Unmarshal([]byte(`null`), &d); err != nil || d != 0 {
		t.Fatalf("null duration: %v, %v", d.Duration(), err)
	}
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestBodyOptions(t *testing.T) {
	cfg := Default()
	cfg.Star.Color = "#ff8000"
	cfg.Planet.Palette = []PaletteStop{{Threshold: 0.3, Color: "#000080"}, {Threshold: 1, Color: "#00ff00"}}

	star, err := cfg.BodyOptions(body.KindStar)
	if err != nil {
		t.Fatalf("star options: %v", err)
	}
	if star.Color != (mgl64.Vec3{255, 128, 0}) {
		t.Fatalf("star color = %v", star.Color)
	}
	if star.Radius != cfg.Star.Radius || star.Seed != cfg.Star.Seed || star.Backend != noise.OpenSimplex {
		t.Fatalf("unexpected star options: %+v", star)
	}
	if star.Params == nil || star.Params.Frequency != 0 || star.Params.Octaves != 4 {
		t.Fatalf("star params = %+v", star.Params)
	}

	planet, err := cfg.BodyOptions(body.KindPlanet)
	if err != nil {
		t.Fatalf("planet options: %v", err)
	}
	if planet.Palette == nil {
		t.Fatalf("expected configured palette")
	}
	if got, _ := planet.Palette.Quantize(0.2); got != (surface.RGB{B: 128}) {
		t.Fatalf("palette bracket = %+v", got)
	}
	if planet.Position != (mgl64.Vec3{400, 0, 0}) {
		t.Fatalf("planet position = %v", planet.Position)
	}

	if _, err := cfg.BodyOptions("nebula"); !errors.Is(err, body.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestStyleTracksColouring(t *testing.T) {
	cfg := Default()
	star, planet := cfg.Style(body.KindStar), cfg.Style(body.KindPlanet)
	if star == "" || planet == "" || star == planet {
		t.Fatalf("unexpected styles %q %q", star, planet)
	}

	cfg.Planet.Palette = []PaletteStop{{Threshold: 1, Color: "#ffffff"}}
	repainted := cfg.Style(body.KindPlanet)
	if repainted == planet {
		t.Fatalf("palette change should change the planet style")
	}
	if cfg.Style(body.KindStar) != star {
		t.Fatalf("palette change should not affect the star style")
	}

	cfg.Planet.Seed++
	cfg.Planet.Noise.Octaves++
	if cfg.Style(body.KindPlanet) != repainted {
		t.Fatalf("field settings should not affect the style")
	}
}
