package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"celestial/internal/body"
	"celestial/internal/config"
	"celestial/internal/noise"
	"celestial/internal/preview"
	"celestial/internal/store"
	"celestial/internal/surface"
)

var errRadiusTooLarge = errors.New("radius exceeds server limit")

// Server generates surfaces on demand and serves them over HTTP and
// WebSocket. Generated surfaces are cached in the store when one is set.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	httpSrv  *http.Server
	upgrader websocket.Upgrader
	logger   *log.Logger

	// generations holds one token per surface build in progress.
	generations chan struct{}
	generate    func(context.Context, body.Options) (body.Body, error)
}

// New builds a server for cfg. st may be nil to disable caching.
func New(cfg *config.Config, st *store.Store) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Server{
		cfg:   cfg,
		store: st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:      log.New(log.Writer(), "surfaced ", log.LstdFlags|log.Lmicroseconds),
		generations: make(chan struct{}, generationSlots(cfg)),
		generate:    body.New,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/bodies", s.handleBodies)
	mux.HandleFunc("/surface", s.handleSurface)
	mux.HandleFunc("/texture.png", s.handleTexture)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.ListenAddress, s.cfg.Server.HTTPPort)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		WriteTimeout: s.cfg.Server.WriteTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("HTTP server listening on %s", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout.Duration()
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Request selects a body and optionally overrides its configured seed and
// radius.
type Request struct {
	Kind   body.Kind `json:"kind"`
	Seed   *int64    `json:"seed,omitempty"`
	Radius float64   `json:"radius,omitempty"`
}

// Surface returns the surface for req, from the store when possible.
func (s *Server) Surface(ctx context.Context, req Request) (*body.Surface, bool, error) {
	opts, err := s.cfg.BodyOptions(req.Kind)
	if err != nil {
		return nil, false, err
	}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}
	if req.Radius != 0 {
		opts.Radius = req.Radius
	}
	if opts.Radius > s.cfg.Server.MaxRadius {
		return nil, false, fmt.Errorf("%w: %v > %v", errRadiusTooLarge, opts.Radius, s.cfg.Server.MaxRadius)
	}
	opts.Logger = s.logger

	key, err := store.KeyForOptions(opts, s.cfg.Style(req.Kind))
	if err != nil {
		return nil, false, err
	}

	if s.store != nil {
		surf, err := s.store.Get(key)
		if err == nil {
			return surf, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Printf("surface store read failed: %v", err)
		}
	}

	release, err := s.acquireGeneration(ctx)
	if err != nil {
		return nil, false, err
	}
	defer release()

	b, err := s.generate(ctx, opts)
	if err != nil {
		return nil, false, err
	}
	surf := b.Surface()
	if s.store != nil {
		if err := s.store.Put(key, surf); err != nil {
			s.logger.Printf("surface store write failed: %v", err)
		}
	}
	return surf, false, nil
}

// acquireGeneration waits for a free generation slot or for ctx to end.
func (s *Server) acquireGeneration(ctx context.Context) (func(), error) {
	select {
	case s.generations <- struct{}{}:
		return func() { <-s.generations }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func generationSlots(cfg *config.Config) int {
	if cfg.Server.MaxConcurrentGenerations < 1 {
		return 1
	}
	return cfg.Server.MaxConcurrentGenerations
}

// SurfaceMessage is the JSON form of a surface. Texture carries the RGB
// bytes in base64 and is only filled on request.
type SurfaceMessage struct {
	*body.Surface
	Cached  bool   `json:"cached"`
	Texture []byte `json:"texture,omitempty"`
}

type bodyInfo struct {
	Kind     body.Kind  `json:"kind"`
	Radius   float64    `json:"radius"`
	Seed     int64      `json:"seed"`
	Position [3]float64 `json:"position"`
	Width    int        `json:"width"`
	Height   int        `json:"height"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, map[string]any{"status": "ok"})
		return
	}
	n, err := s.store.Count()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "ok", "cachedSurfaces": n})
}

func (s *Server) handleBodies(w http.ResponseWriter, r *http.Request) {
	bodies := []bodyInfo{
		{Kind: body.KindStar, Radius: s.cfg.Star.Radius, Seed: s.cfg.Star.Seed, Position: s.cfg.Star.Position},
		{Kind: body.KindPlanet, Radius: s.cfg.Planet.Radius, Seed: s.cfg.Planet.Seed, Position: s.cfg.Planet.Position},
	}
	for i := range bodies {
		dim, err := surface.DimensionsForRadius(bodies[i].Radius, s.cfg.Generator.MaxWidth)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		bodies[i].Width, bodies[i].Height = dim.Width, dim.Height
	}
	writeJSON(w, bodies)
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	surf, cached, err := s.Surface(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	msg := SurfaceMessage{Surface: surf, Cached: cached}
	if r.URL.Query().Get("texture") == "1" {
		msg.Texture = surf.TextureBytes
	}
	writeJSON(w, msg)
}

func (s *Server) handleTexture(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req, err := parseRequest(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	encode := preview.EncodeTexture
	switch q.Get("layer") {
	case "", "texture":
	case "elevation":
		encode = preview.EncodeElevation
	default:
		http.Error(w, "layer must be texture or elevation", http.StatusBadRequest)
		return
	}

	surf, _, err := s.Surface(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	var buf bytes.Buffer
	if err := encode(&buf, surf.Description); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func parseRequest(q url.Values) (Request, error) {
	kindStr := q.Get("kind")
	if kindStr == "" {
		return Request{}, fmt.Errorf("kind query parameter required")
	}
	kind, err := body.ParseKind(kindStr)
	if err != nil {
		return Request{}, err
	}
	req := Request{Kind: kind}
	if v := q.Get("seed"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Request{}, fmt.Errorf("invalid seed parameter")
		}
		req.Seed = &seed
	}
	if v := q.Get("radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			return Request{}, fmt.Errorf("invalid radius parameter")
		}
		req.Radius = radius
	}
	return req, nil
}

// statusFor maps generation errors to HTTP status codes. Anything the caller
// could have avoided is a bad request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, body.ErrUnknownKind),
		errors.Is(err, noise.ErrInvalidSeed),
		errors.Is(err, noise.ErrUnknownBackend),
		errors.Is(err, surface.ErrInvalidDimensions),
		errors.Is(err, surface.ErrInvalidNoiseParams),
		errors.Is(err, errRadiusTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
