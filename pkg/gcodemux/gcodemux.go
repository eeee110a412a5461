// Package gcodemux is the public API for embedding the Gcode pipeline: the
// Service type for running the HTTP API inside a larger program, and direct
// helpers for processing streams in process without a server.
package gcodemux

import (
	"context"
	"log/slog"

	"github.com/printfarm/gcodemux/internal/codec"
	"github.com/printfarm/gcodemux/internal/gcode"
	"github.com/printfarm/gcodemux/internal/layers"
	"github.com/printfarm/gcodemux/internal/merge"
	"github.com/printfarm/gcodemux/internal/pipeline"
	"github.com/printfarm/gcodemux/internal/runtime"
)

// Service runs the full HTTP API. See internal/runtime.Service for the
// lifecycle documentation.
type Service = runtime.Service

// Option is a functional option for configuring a Service.
type Option = runtime.Option

// New creates a Service with the given options. Example:
//
//	svc, err := gcodemux.New(
//	    gcodemux.WithConfigFile("config.yaml"),
//	)
var New = runtime.New

// Configuration options.
var (
	WithConfig     = runtime.WithConfig
	WithConfigFile = runtime.WithConfigFile
	WithLogger     = runtime.WithLogger
	WithLogLevel   = runtime.WithLogLevel
	WithStore      = runtime.WithStore
	WithPublisher  = runtime.WithPublisher
)

// Command is one parsed protocol line.
type Command = gcode.Command

// LayerMap groups a resolved stream by build height.
type LayerMap = layers.Map

// EncodeText renders a stream back to its textual form.
var EncodeText = codec.EncodeText

// Normalize tokenizes one document and resolves the implicit machine state,
// so every record carries the full coordinate context.
func Normalize(ctx context.Context, lines []string) ([]*Command, error) {
	doc := &pipeline.Document{Name: "normalize", Lines: lines}
	exec := pipeline.New(slog.Default(), pipeline.Tokenize(nil), pipeline.Resolve())
	if err := exec.Run(ctx, doc); err != nil {
		return nil, err
	}
	return doc.Commands, nil
}

// SegmentLayers normalizes one document and groups it by build height.
func SegmentLayers(ctx context.Context, lines []string) (*LayerMap, error) {
	doc := &pipeline.Document{Name: "layers", Lines: lines}
	exec := pipeline.New(slog.Default(),
		pipeline.Tokenize(nil), pipeline.Resolve(), pipeline.Segment())
	if err := exec.Run(ctx, doc); err != nil {
		return nil, err
	}
	return doc.Layers, nil
}

// Merge normalizes two extruder programs and interleaves them into one
// tool-tagged stream ordered by height. headerEndA and headerEndB are the
// indices of each stream's last header record; pass a negative index to
// auto-detect the split.
func Merge(ctx context.Context, a, b []string, headerEndA, headerEndB int) ([]*Command, error) {
	docA, err := Normalize(ctx, a)
	if err != nil {
		return nil, err
	}
	docB, err := Normalize(ctx, b)
	if err != nil {
		return nil, err
	}
	if headerEndA < 0 {
		headerEndA = merge.DetectHeaderEnd(docA)
	}
	if headerEndB < 0 {
		headerEndB = merge.DetectHeaderEnd(docB)
	}
	return merge.New(slog.Default()).Merge(docA, docB, headerEndA, headerEndB), nil
}
