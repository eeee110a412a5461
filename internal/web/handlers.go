package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/printfarm/gcodemux/internal/codec"
	"github.com/printfarm/gcodemux/internal/events"
	"github.com/printfarm/gcodemux/internal/layers"
	"github.com/printfarm/gcodemux/internal/merge"
	"github.com/printfarm/gcodemux/internal/server"
	"github.com/printfarm/gcodemux/internal/stats"
	"github.com/printfarm/gcodemux/internal/storage"
	"github.com/printfarm/gcodemux/internal/verify"
)

// jobResult is the response body for the processing endpoints. Gcode and
// Layers are populated per endpoint; Findings only when a check tripped.
type jobResult struct {
	JobID    string           `json:"job_id"`
	Stats    stats.Summary    `json:"stats"`
	Findings []verify.Finding `json:"findings,omitempty"`
	Gcode    string           `json:"gcode,omitempty"`
	Layers   []layerView      `json:"layers,omitempty"`
}

type layerView struct {
	Height  float64       `json:"height"`
	Splines [][]pointView `json:"splines"`
}

type pointView struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	E float64 `json:"e"`
}

func layerViews(m *layers.Map) []layerView {
	views := make([]layerView, 0, m.Len())
	for _, height := range m.Heights() {
		layer, ok := m.Layer(height)
		if !ok {
			continue
		}
		view := layerView{Height: height}
		for _, sp := range layer.Splines {
			points := make([]pointView, 0, len(sp))
			for _, c := range sp {
				points = append(points, pointView{
					X: coord(c.X),
					Y: coord(c.Y),
					Z: coord(c.Z),
					E: coord(c.E),
				})
			}
			view.Splines = append(view.Splines, points)
		}
		views = append(views, view)
	}
	return views
}

func coord(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	src, err := h.readSource(w, r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	job := &storage.Job{ID: uuid.New().String(), Kind: storage.KindNormalize, SourceA: src.name}
	server.AddLogField(r.Context(), "job_id", job.ID)
	h.publish(r, events.New(events.TypeStarted, job))

	doc, err := h.process(r, src.name, src.lines, false)
	if err != nil {
		h.failJob(r, job, start, err)
		h.writeError(w, r, statusFor(err), err)
		return
	}

	job.Records = len(doc.Commands)
	job.Duration = time.Since(start)
	h.publish(r, events.New(events.TypeCompleted, job))

	h.writeJSON(w, http.StatusOK, jobResult{
		JobID:    job.ID,
		Stats:    stats.Collect(doc.Commands, nil),
		Findings: verify.Resolved(doc.Commands),
		Gcode:    codec.EncodeText(doc.Commands),
	})
}

func (h *Handler) handleLayers(w http.ResponseWriter, r *http.Request) {
	src, err := h.readSource(w, r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	job := &storage.Job{ID: uuid.New().String(), Kind: storage.KindLayers, SourceA: src.name}
	server.AddLogField(r.Context(), "job_id", job.ID)
	h.publish(r, events.New(events.TypeStarted, job))

	doc, err := h.process(r, src.name, src.lines, true)
	if err != nil {
		h.failJob(r, job, start, err)
		h.writeError(w, r, statusFor(err), err)
		return
	}

	job.Records = len(doc.Commands)
	job.Layers = doc.Layers.Len()
	job.Duration = time.Since(start)
	h.publish(r, events.New(events.TypeCompleted, job))

	findings := verify.Resolved(doc.Commands)
	findings = append(findings, verify.Layers(doc.Layers)...)

	h.writeJSON(w, http.StatusOK, jobResult{
		JobID:    job.ID,
		Stats:    stats.Collect(doc.Commands, doc.Layers),
		Findings: findings,
		Layers:   layerViews(doc.Layers),
	})
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	in, err := h.readMergeInput(w, r)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	job := &storage.Job{
		ID:      uuid.New().String(),
		Kind:    storage.KindMerge,
		SourceA: in.a.name,
		SourceB: in.b.name,
	}
	server.AddLogField(r.Context(), "job_id", job.ID)
	h.publish(r, events.New(events.TypeStarted, job))

	docA, err := h.process(r, in.a.name, in.a.lines, false)
	if err != nil {
		h.failJob(r, job, start, err)
		h.writeError(w, r, statusFor(err), err)
		return
	}
	docB, err := h.process(r, in.b.name, in.b.lines, false)
	if err != nil {
		h.failJob(r, job, start, err)
		h.writeError(w, r, statusFor(err), err)
		return
	}

	headerEndA := merge.DetectHeaderEnd(docA.Commands)
	if in.headerA != nil {
		headerEndA = *in.headerA
	}
	headerEndB := merge.DetectHeaderEnd(docB.Commands)
	if in.headerB != nil {
		headerEndB = *in.headerB
	}

	merged := merge.New(h.log).Merge(docA.Commands, docB.Commands, headerEndA, headerEndB)
	seg := layers.Segment(merged)

	job.Records = len(merged)
	job.Layers = seg.Len()
	job.Duration = time.Since(start)
	h.publish(r, events.New(events.TypeCompleted, job))

	text := codec.EncodeText(merged)
	if in.textOut {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)
		return
	}

	h.writeJSON(w, http.StatusOK, jobResult{
		JobID:    job.ID,
		Stats:    stats.Collect(merged, seg),
		Findings: verify.Merged(merged),
		Gcode:    text,
	})
}

func (h *Handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, errors.New("job store is disabled"))
		return
	}

	opts := storage.ListOptions{Kind: r.URL.Query().Get("kind"), Limit: 50}
	if err := queryInt(r, "limit", &opts.Limit); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := queryInt(r, "offset", &opts.Offset); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	jobs, err := h.store.ListJobs(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, errors.New("job store is disabled"))
		return
	}

	job, err := h.store.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, statusFor(err), err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) failJob(r *http.Request, job *storage.Job, start time.Time, err error) {
	job.Duration = time.Since(start)
	job.Error = err.Error()
	h.publish(r, events.New(events.TypeFailed, job))
}

// source is one Gcode document ready for the pipeline, however it arrived.
type source struct {
	name  string
	lines []string
}

// sourceInput is the JSON body for the single-stream endpoints. Exactly one
// of Gcode or URL is expected; URL wins when both are set.
type sourceInput struct {
	Gcode string `json:"gcode"`
	URL   string `json:"url"`
}

func (h *Handler) maxBytes() int64 {
	if h.fetcher != nil {
		return h.fetcher.maxBytes
	}
	return defaultMaxBytes
}

// readSource extracts the document from a single-stream request: a multipart
// "file" part, a JSON body carrying inline text or a URL, or the raw body.
func (h *Handler) readSource(w http.ResponseWriter, r *http.Request) (*source, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file field: %w", err)
		}
		defer file.Close()
		lines, err := codec.ReadLines(file)
		if err != nil {
			return nil, err
		}
		return &source{name: header.Filename, lines: lines}, nil

	case strings.HasPrefix(ct, "application/json"):
		var in sourceInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		if in.URL != "" {
			return h.fetchSource(r.Context(), in.URL)
		}
		if in.Gcode == "" {
			return nil, fmt.Errorf("gcode or url is required")
		}
		lines, err := codec.ReadLines(strings.NewReader(in.Gcode))
		if err != nil {
			return nil, err
		}
		return &source{name: "request", lines: lines}, nil

	default:
		lines, err := codec.ReadLines(r.Body)
		if err != nil {
			return nil, err
		}
		return &source{name: "request", lines: lines}, nil
	}
}

func (h *Handler) fetchSource(ctx context.Context, url string) (*source, error) {
	if h.fetcher == nil {
		return nil, fmt.Errorf("url fetching is disabled")
	}
	data, err := h.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	lines, err := codec.ReadLines(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &source{name: url, lines: lines}, nil
}

// mergeInput is the JSON body for the merge endpoint. Header ends are
// 0-based indexes of the last header record; nil means auto-detect.
type mergeInput struct {
	A       string `json:"a"`
	B       string `json:"b"`
	AURL    string `json:"a_url"`
	BURL    string `json:"b_url"`
	HeaderA *int   `json:"header_a"`
	HeaderB *int   `json:"header_b"`
}

type mergeRequest struct {
	a, b             *source
	headerA, headerB *int
	textOut          bool
}

func (h *Handler) readMergeInput(w http.ResponseWriter, r *http.Request) (*mergeRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxBytes())

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		var in mergeInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return nil, fmt.Errorf("invalid request body: %w", err)
		}
		req := &mergeRequest{headerA: in.HeaderA, headerB: in.HeaderB}
		var err error
		if req.a, err = h.inlineOrFetch(r.Context(), "a", in.A, in.AURL); err != nil {
			return nil, err
		}
		if req.b, err = h.inlineOrFetch(r.Context(), "b", in.B, in.BURL); err != nil {
			return nil, err
		}
		return req, nil

	case strings.HasPrefix(ct, "multipart/form-data"),
		strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		req := &mergeRequest{textOut: r.FormValue("format") == "text"}
		var err error
		if req.a, err = formStream(r, "a"); err != nil {
			return nil, err
		}
		if req.b, err = formStream(r, "b"); err != nil {
			return nil, err
		}
		if req.headerA, err = formInt(r, "header_a"); err != nil {
			return nil, err
		}
		if req.headerB, err = formInt(r, "header_b"); err != nil {
			return nil, err
		}
		return req, nil

	default:
		return nil, fmt.Errorf("merge requires a JSON or form body")
	}
}

func (h *Handler) inlineOrFetch(ctx context.Context, name, text, url string) (*source, error) {
	if url != "" {
		return h.fetchSource(ctx, url)
	}
	if text == "" {
		return nil, fmt.Errorf("stream %s is required", name)
	}
	lines, err := codec.ReadLines(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	return &source{name: name, lines: lines}, nil
}

// formStream reads one merge input from a form request, accepting either an
// uploaded file or an inline text field under the same name.
func formStream(r *http.Request, name string) (*source, error) {
	if file, header, err := r.FormFile(name); err == nil {
		defer file.Close()
		lines, err := codec.ReadLines(file)
		if err != nil {
			return nil, err
		}
		return &source{name: header.Filename, lines: lines}, nil
	}

	text := r.FormValue(name)
	if text == "" {
		return nil, fmt.Errorf("stream %s is required", name)
	}
	lines, err := codec.ReadLines(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	return &source{name: name, lines: lines}, nil
}

func formInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return &n, nil
}

func queryInt(r *http.Request, name string, dst *int) error {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid %s: %q", name, raw)
	}
	*dst = n
	return nil
}

func (h *Handler) handleMergeForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, mergeFormHTML)
}

const mergeFormHTML = `<!DOCTYPE html>
<html>
<head>
<title>gcodemux merge</title>
<style>
body { font-family: monospace; margin: 2rem; }
textarea { width: 48%; height: 20rem; }
label { display: block; margin-top: 1rem; }
</style>
</head>
<body>
<h1>Dual extruder merge</h1>
<form method="post" action="/v1/merge" enctype="multipart/form-data">
<input type="hidden" name="format" value="text">
<textarea name="a" placeholder="left extruder gcode"></textarea>
<textarea name="b" placeholder="right extruder gcode"></textarea>
<label>Header end A (blank = auto) <input type="text" name="header_a"></label>
<label>Header end B (blank = auto) <input type="text" name="header_b"></label>
<p><button type="submit">Merge</button></p>
</form>
</body>
</html>
`
