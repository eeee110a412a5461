// Package web exposes the pipeline over HTTP: normalization, dual-stream
// merging, layer segmentation, and the job history endpoints.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/printfarm/gcodemux/internal/codec"
	"github.com/printfarm/gcodemux/internal/events"
	"github.com/printfarm/gcodemux/internal/gcode"
	"github.com/printfarm/gcodemux/internal/pipeline"
	"github.com/printfarm/gcodemux/internal/server"
	"github.com/printfarm/gcodemux/internal/storage"
)

// Handler serves the HTTP API. All processing endpoints publish job
// lifecycle events; persistence is the publishers' concern, not ours.
type Handler struct {
	log     *slog.Logger
	store   storage.Store
	pub     events.Publisher
	fetcher *Fetcher
	strict  bool
}

// New creates the API handler. store may be nil when job history is
// disabled; pub may be nil when nothing consumes events.
func New(log *slog.Logger, store storage.Store, pub events.Publisher, fetcher *Fetcher, strict bool) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		log:     log,
		store:   store,
		pub:     pub,
		fetcher: fetcher,
		strict:  strict,
	}
}

// Routes mounts every endpoint on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/merge", h.handleMergeForm)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/normalize", h.handleNormalize)
		r.Post("/merge", h.handleMerge)
		r.Post("/layers", h.handleLayers)
		r.Get("/jobs", h.handleListJobs)
		r.Get("/jobs/{id}", h.handleGetJob)
	})
}

func (h *Handler) decodeMode() codec.Mode {
	if h.strict {
		return codec.ModeStrict
	}
	return codec.ModePermissive
}

// process runs a single document through tokenize and resolve, plus segment
// when asked.
func (h *Handler) process(r *http.Request, name string, lines []string, segment bool) (*pipeline.Document, error) {
	dec := codec.NewDecoder(codec.WithMode(h.decodeMode()), codec.WithLogger(h.log))
	stages := []pipeline.Stage{pipeline.Tokenize(dec), pipeline.Resolve()}
	if segment {
		stages = append(stages, pipeline.Segment())
	}

	doc := &pipeline.Document{Name: name, Lines: lines}
	if err := pipeline.New(h.log, stages...).Run(r.Context(), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (h *Handler) publish(r *http.Request, event *events.Event) {
	if h.pub == nil {
		return
	}
	if err := h.pub.Publish(r.Context(), event); err != nil {
		h.log.Error("failed to publish job event",
			slog.String("type", string(event.Type)),
			slog.String("job_id", event.Job.ID),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	server.AddError(r.Context(), err)
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps pipeline and storage errors to HTTP statuses: malformed
// input is the client's fault, a missing job is 404, everything else is a
// server error.
func statusFor(err error) int {
	var malformed *gcode.MalformedParameterError
	if errors.As(err, &malformed) {
		return http.StatusBadRequest
	}
	var notFound *storage.NotFoundError
	if errors.As(err, &notFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
