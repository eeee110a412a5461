// Package pipeline chains the parsing stages over a single document.
//
// A Document starts as raw text lines and accumulates derived forms as stages
// run: tokenized records, synchronized records, segmented layers. Stages run
// strictly in the order given and the first failing stage stops the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/printfarm/gcodemux/internal/gcode"
	"github.com/printfarm/gcodemux/internal/layers"
)

// Document is the unit of work a pipeline operates on. Stages fill in the
// derived fields; earlier fields are left as the stage found them.
type Document struct {
	Name     string
	Lines    []string
	Commands []*gcode.Command
	Layers   *layers.Map
}

// Stage transforms one document in place.
type Stage interface {
	Name() string
	Run(ctx context.Context, doc *Document) error
}

// Executor runs an ordered list of stages over documents.
type Executor struct {
	log    *slog.Logger
	stages []Stage
}

// New creates an executor. Stages execute in argument order.
func New(log *slog.Logger, stages ...Stage) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{log: log, stages: stages}
}

// Run executes every stage against the document. The first stage error aborts
// the run and is returned wrapped with the stage name.
func (e *Executor) Run(ctx context.Context, doc *Document) error {
	for _, s := range e.stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Run(ctx, doc); err != nil {
			return fmt.Errorf("pipeline stage %s error: %w", s.Name(), err)
		}
		e.log.Debug("pipeline stage complete",
			slog.String("stage", s.Name()),
			slog.String("document", doc.Name),
			slog.Int("records", len(doc.Commands)),
		)
	}
	return nil
}
