// Package store caches generated surfaces in LevelDB so identical requests
// are served without resampling.
package store

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"celestial/internal/body"
	"celestial/internal/noise"
	"celestial/internal/surface"
)

var ErrNotFound = errors.New("surface not found")

const keyPrefix = "surface/"

// Key identifies a generated surface. Params are resolved, so a derived
// frequency and the same explicit one share a key.
type Key struct {
	Kind    body.Kind
	Radius  float64
	Seed    int64
	Backend noise.Backend
	Params  surface.Params
	// Style distinguishes colourings of the same field, such as different
	// palettes.
	Style string
}

// KeyForOptions resolves opts the way body generation does and returns the
// key of the surface it would produce. Invalid options fail here, before any
// sampling.
func KeyForOptions(opts body.Options, style string) (Key, error) {
	plan, err := surface.Prepare(surface.Request{
		Radius:   opts.Radius,
		Seed:     opts.Seed,
		Backend:  opts.Backend,
		Params:   opts.Params,
		MaxWidth: opts.MaxWidth,
	})
	if err != nil {
		return Key{}, err
	}
	return Key{
		Kind:    opts.Kind,
		Radius:  plan.Radius,
		Seed:    plan.Seed,
		Backend: plan.Backend,
		Params:  plan.Params,
		Style:   style,
	}, nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s/r%g/s%d/%s/f%g-o%d-l%g-p%g/%s",
		k.Kind, k.Radius, k.Seed, k.Backend,
		k.Params.Frequency, k.Params.Octaves, k.Params.Lacunarity, k.Params.Persistence,
		k.Style)
}

func (k Key) record(part string) []byte {
	return []byte(keyPrefix + k.String() + "#" + part)
}

// Store is a LevelDB backed surface cache. It is safe for concurrent use.
type Store struct {
	db *leveldb.DB
}

func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open surface store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores the surface metadata and its compressed elevation and texture
// payloads in a single batch.
func (s *Store) Put(key Key, surf *body.Surface) error {
	if surf == nil || surf.Description == nil {
		return fmt.Errorf("surface cannot be nil")
	}

	meta, err := json.Marshal(surf)
	if err != nil {
		return fmt.Errorf("marshal surface metadata: %w", err)
	}
	elevations, err := compress(encodeFloats(surf.Elevations))
	if err != nil {
		return fmt.Errorf("compress elevations: %w", err)
	}
	texture, err := compress(surf.TextureBytes)
	if err != nil {
		return fmt.Errorf("compress texture: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(key.record("meta"), meta)
	batch.Put(key.record("elevations"), elevations)
	batch.Put(key.record("texture"), texture)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("save surface %s: %w", key, err)
	}
	return nil
}

// Get returns the stored surface for key, or ErrNotFound.
func (s *Store) Get(key Key) (*body.Surface, error) {
	meta, err := s.get(key, "meta")
	if err != nil {
		return nil, err
	}
	surf := &body.Surface{Description: &surface.Description{}}
	if err := json.Unmarshal(meta, surf); err != nil {
		return nil, fmt.Errorf("unmarshal surface metadata: %w", err)
	}

	raw, err := s.get(key, "elevations")
	if err != nil {
		return nil, err
	}
	if raw, err = decompress(raw); err != nil {
		return nil, fmt.Errorf("decompress elevations: %w", err)
	}
	if surf.Elevations, err = decodeFloats(raw); err != nil {
		return nil, err
	}

	raw, err = s.get(key, "texture")
	if err != nil {
		return nil, err
	}
	if surf.TextureBytes, err = decompress(raw); err != nil {
		return nil, fmt.Errorf("decompress texture: %w", err)
	}

	cells := surf.Width * surf.Height
	if len(surf.Elevations) != cells || len(surf.TextureBytes) != 3*cells {
		return nil, fmt.Errorf("surface %s is corrupt: %d elevations, %d texture bytes for %dx%d", key, len(surf.Elevations), len(surf.TextureBytes), surf.Width, surf.Height)
	}
	return surf, nil
}

func (s *Store) get(key Key, part string) ([]byte, error) {
	data, err := s.db.Get(key.record(part), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("load surface %s %s: %w", key, part, err)
	}
	return data, nil
}

func (s *Store) Delete(key Key) error {
	batch := new(leveldb.Batch)
	for _, part := range []string{"meta", "elevations", "texture"} {
		batch.Delete(key.record(part))
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("delete surface %s: %w", key, err)
	}
	return nil
}

// Count returns the number of stored surfaces.
func (s *Store) Count() (int, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()

	n := 0
	for iter.Next() {
		if bytes.HasSuffix(iter.Key(), []byte("#meta")) {
			n++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("count surfaces: %w", err)
	}
	return n, nil
}

func encodeFloats(values []float64) []byte {
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

func decodeFloats(data []byte) ([]float64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("elevation payload has %d bytes, not a multiple of 8", len(data))
	}
	out := make([]float64, len(data)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return out, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
