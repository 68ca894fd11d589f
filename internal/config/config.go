package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"celestial/internal/noise"
)

// Config captures everything needed to generate and serve surfaces.
type Config struct {
	Generator GeneratorConfig `json:"generator" yaml:"generator"`
	Star      StarConfig      `json:"star" yaml:"star"`
	Planet    PlanetConfig    `json:"planet" yaml:"planet"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Server    ServerConfig    `json:"server" yaml:"server"`
}

type GeneratorConfig struct {
	Backend  string `json:"backend" yaml:"backend"`   // "opensimplex" or "perlin"
	Workers  int    `json:"workers" yaml:"workers"`   // 0 = one per CPU
	MaxWidth int    `json:"maxWidth" yaml:"maxWidth"` // texture width limit, 0 = unlimited
}

// NoiseConfig overrides the fractal parameters. A zero Frequency derives it
// from the texture width.
type NoiseConfig struct {
	Frequency   float64 `json:"frequency" yaml:"frequency"`
	Octaves     int     `json:"octaves" yaml:"octaves"`
	Lacunarity  float64 `json:"lacunarity" yaml:"lacunarity"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
}

type StarConfig struct {
	Radius     float64     `json:"radius" yaml:"radius"`
	Seed       int64       `json:"seed" yaml:"seed"`
	Luminosity float64     `json:"luminosity" yaml:"luminosity"`
	Color      string      `json:"color" yaml:"color"` // "#rrggbb"
	Position   [3]float64  `json:"position" yaml:"position"`
	Noise      NoiseConfig `json:"noise" yaml:"noise"`
}

type PlanetConfig struct {
	Radius   float64       `json:"radius" yaml:"radius"`
	Seed     int64         `json:"seed" yaml:"seed"`
	Position [3]float64    `json:"position" yaml:"position"`
	Noise    NoiseConfig   `json:"noise" yaml:"noise"`
	Palette  []PaletteStop `json:"palette,omitempty" yaml:"palette,omitempty"` // empty = built-in palette
}

type PaletteStop struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Color     string  `json:"color" yaml:"color"`
}

type StoreConfig struct {
	Path string `json:"path" yaml:"path"` // LevelDB directory, empty disables caching
}

type ServerConfig struct {
	ListenAddress   string   `json:"listenAddress" yaml:"listenAddress"`
	HTTPPort        int      `json:"httpPort" yaml:"httpPort"`
	WriteTimeout    Duration `json:"writeTimeout" yaml:"writeTimeout"`
	ShutdownTimeout Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	MaxRadius       float64  `json:"maxRadius" yaml:"maxRadius"` // largest radius clients may request

	MaxConcurrentGenerations int `json:"maxConcurrentGenerations" yaml:"maxConcurrentGenerations"` // simultaneous surface builds across all clients
}

func Default() *Config {
	return &Config{
		Generator: GeneratorConfig{
			Backend:  string(noise.OpenSimplex),
			Workers:  0,
			MaxWidth: 8192,
		},
		Star: StarConfig{
			Radius:     100,
			Seed:       1337,
			Luminosity: 1,
			Color:      "#ffcc66",
			Position:   [3]float64{0, 0, 0},
			Noise: NoiseConfig{
				Octaves:     4,
				Lacunarity:  2,
				Persistence: 0.4,
			},
		},
		Planet: PlanetConfig{
			Radius:   50,
			Seed:     4242,
			Position: [3]float64{400, 0, 0},
			Noise: NoiseConfig{
				Frequency:   0.08,
				Octaves:     6,
				Lacunarity:  2,
				Persistence: 0.5,
			},
		},
		Store: StoreConfig{
			Path: "",
		},
		Server: ServerConfig{
			ListenAddress:   "0.0.0.0",
			HTTPPort:        28080,
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(5 * time.Second),
			MaxRadius:       500,

			MaxConcurrentGenerations: 2,
		},
	}
}

// Load reads configuration from a JSON or YAML file (by extension). An empty
// path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := Decode(data, formatForPath(path), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Format is a configuration encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

func formatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode overlays data onto cfg.
func Decode(data []byte, format Format, cfg *Config) error {
	switch format {
	case FormatYAML:
		return yaml.Unmarshal(data, cfg)
	case FormatJSON:
		return json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
}

// WriteDefault writes the default configuration to path, as YAML or JSON
// depending on the extension.
func WriteDefault(path string) error {
	return Write(path, Default())
}

func Write(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if formatForPath(path) == FormatYAML {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if _, err := noise.ParseBackend(c.Generator.Backend); err != nil {
		return fmt.Errorf("generator.backend: %w", err)
	}
	if c.Generator.Workers < 0 {
		return errors.New("generator.workers cannot be negative")
	}
	if c.Generator.MaxWidth < 0 {
		return errors.New("generator.maxWidth cannot be negative")
	}
	if c.Star.Radius <= 0 {
		return errors.New("star.radius must be positive")
	}
	if err := noise.ValidateSeed(c.Star.Seed); err != nil {
		return fmt.Errorf("star.seed: %w", err)
	}
	if c.Star.Luminosity < 0 {
		return errors.New("star.luminosity cannot be negative")
	}
	if !isValidHexColor(c.Star.Color) {
		return errors.New("star.color must be a hex RGB value")
	}
	if err := c.Star.Noise.validate("star.noise"); err != nil {
		return err
	}
	if c.Planet.Radius <= 0 {
		return errors.New("planet.radius must be positive")
	}
	if err := noise.ValidateSeed(c.Planet.Seed); err != nil {
		return fmt.Errorf("planet.seed: %w", err)
	}
	if err := c.Planet.Noise.validate("planet.noise"); err != nil {
		return err
	}
	if err := validatePalette(c.Planet.Palette); err != nil {
		return err
	}
	if c.Server.ListenAddress == "" {
		return errors.New("server.listenAddress must be set")
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return errors.New("server.httpPort must be between 1 and 65535")
	}
	if c.Server.MaxRadius <= 0 {
		return errors.New("server.maxRadius must be positive")
	}
	if c.Server.MaxConcurrentGenerations < 1 {
		return errors.New("server.maxConcurrentGenerations must be at least 1")
	}
	if c.Server.WriteTimeout < 0 || c.Server.ShutdownTimeout < 0 {
		return errors.New("server timeouts cannot be negative")
	}
	return nil
}

func (n NoiseConfig) validate(section string) error {
	if n.Frequency < 0 {
		return fmt.Errorf("%s.frequency cannot be negative", section)
	}
	if n.Octaves < 1 {
		return fmt.Errorf("%s.octaves must be at least 1", section)
	}
	if n.Lacunarity <= 1 {
		return fmt.Errorf("%s.lacunarity must be greater than 1", section)
	}
	if n.Persistence <= 0 || n.Persistence >= 1 {
		return fmt.Errorf("%s.persistence must be between 0 and 1", section)
	}
	return nil
}

func validatePalette(stops []PaletteStop) error {
	for i, stop := range stops {
		if !isValidHexColor(stop.Color) {
			return fmt.Errorf("planet.palette[%d].color must be a hex RGB value", i)
		}
		if i > 0 && stop.Threshold <= stops[i-1].Threshold {
			return fmt.Errorf("planet.palette[%d].threshold must be greater than the previous threshold", i)
		}
	}
	return nil
}

// isValidHexColor accepts "#rrggbb" in either case, the form used for star
// colours and palette stops.
func isValidHexColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, ch := range s[1:] {
		switch {
		case ch >= '0' && ch <= '9':
		case ch >= 'a' && ch <= 'f':
		case ch >= 'A' && ch <= 'F':
		default:
			return false
		}
	}
	return true
}
