// Package fakeservice is an in-memory stand-in for the Leonardo generation
// API. It serves deterministic images so batches can run offline.
package fakeservice

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"spritegen/internal/domain"
	"spritegen/internal/imaging"
	"spritegen/internal/infra"
	"spritegen/internal/middleware"
)

// Renderer draws the image returned for a prompt.
type Renderer func(prompt string, width, height int) *imaging.RawImage

type Options struct {
	// APIKeys restricts accepted bearer tokens; empty accepts any token.
	APIKeys []string
	// CompleteAfter is how many polls report PENDING before COMPLETE.
	CompleteAfter int
	// Prompts containing one of these substrings are rejected on submit.
	RejectPrompts []string
	// Prompts containing one of these substrings end FAILED.
	FailPrompts []string
	// RateLimit caps submissions per RateWindow for each token. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
	Renderer   Renderer
	Logger     *infra.Logger
}

type job struct {
	id     string
	prompt string
	width  int
	height int
	polls  int
	failed bool
}

type Server struct {
	opts   Options
	logger *infra.Logger

	mu          sync.Mutex
	jobs        map[string]*job
	submissions int
}

func New(opts Options) *Server {
	if opts.Renderer == nil {
		opts.Renderer = CenteredSquare
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Server{opts: opts, logger: logger, jobs: make(map[string]*job)}
}

// Handler returns the API routes. It can be mounted under a prefix.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.Recoverer, middleware.Logger(*s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireBearer(s.opts.APIKeys...))
		if s.opts.RateLimit > 0 {
			r.With(middleware.RateLimit(s.opts.RateLimit, s.opts.RateWindow)).Post("/generations", s.createGeneration)
		} else {
			r.Post("/generations", s.createGeneration)
		}
		r.Get("/generations/{id}", s.getGeneration)
	})
	r.Get("/images/{id}.png", s.getImage)
	return r
}

// Submissions reports how many jobs were accepted.
func (s *Server) Submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions
}

type createRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (s *Server) createGeneration(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}
	if containsAny(body.Prompt, s.opts.RejectPrompts) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt rejected by moderation"})
		return
	}
	if body.Width <= 0 {
		body.Width = domain.DefaultGenerateWidth
	}
	if body.Height <= 0 {
		body.Height = domain.DefaultGenerateHeight
	}

	j := &job{
		id:     uuid.NewString(),
		prompt: body.Prompt,
		width:  body.Width,
		height: body.Height,
		failed: containsAny(body.Prompt, s.opts.FailPrompts),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.submissions++
	s.mu.Unlock()

	s.logger.Debug().Str("job_id", j.id).Msg("fakeservice: job created")
	writeJSON(w, http.StatusOK, map[string]any{
		"sdGenerationJob": map[string]any{"generationId": j.id, "apiCreditCost": 0},
	})
}

type generatedImage struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (s *Server) getGeneration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		j.polls++
	}
	var status string
	images := []generatedImage{}
	if ok {
		switch {
		case j.polls <= s.opts.CompleteAfter:
			status = "PENDING"
		case j.failed:
			status = "FAILED"
		default:
			status = "COMPLETE"
			images = append(images, generatedImage{ID: j.id, URL: imageURL(r, j.id)})
		}
	}
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"generations_by_pk": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generations_by_pk": map[string]any{
			"id":               id,
			"status":           status,
			"generated_images": images,
		},
	})
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	j, ok := s.jobs[id]
	var prompt string
	var width, height int
	if ok {
		prompt, width, height = j.prompt, j.width, j.height
	}
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := imaging.Encode(s.opts.Renderer(prompt, width, height), domain.FormatPNG)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", id).Msg("fakeservice: render failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(data)
}

// imageURL builds an absolute URL for the image of id, keeping any mount prefix.
func imageURL(r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	prefix := strings.TrimSuffix(r.URL.Path, "/generations/"+id)
	return scheme + "://" + r.Host + prefix + "/images/" + id + ".png"
}

func containsAny(s string, needles []string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(lower, n) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
