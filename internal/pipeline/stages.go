package pipeline

import (
	"context"

	"github.com/printfarm/gcodemux/internal/codec"
	"github.com/printfarm/gcodemux/internal/layers"
	"github.com/printfarm/gcodemux/internal/resolve"
)

// Tokenize turns the document's raw lines into command records using the
// given decoder. A nil decoder gets the default permissive one.
func Tokenize(dec *codec.Decoder) Stage {
	if dec == nil {
		dec = codec.NewDecoder()
	}
	return tokenizeStage{dec: dec}
}

type tokenizeStage struct {
	dec *codec.Decoder
}

func (tokenizeStage) Name() string { return "tokenize" }

func (s tokenizeStage) Run(_ context.Context, doc *Document) error {
	cmds, err := s.dec.DecodeAll(doc.Lines)
	if err != nil {
		return err
	}
	doc.Commands = cmds
	return nil
}

// Resolve synchronizes the document's records, filling unset fields from the
// accumulated machine state.
func Resolve() Stage { return resolveStage{} }

type resolveStage struct{}

func (resolveStage) Name() string { return "resolve" }

func (resolveStage) Run(_ context.Context, doc *Document) error {
	doc.Commands = resolve.Stream(doc.Commands)
	return nil
}

// Segment buckets the document's resolved records into the layer map.
func Segment() Stage { return segmentStage{} }

type segmentStage struct{}

func (segmentStage) Name() string { return "segment" }

func (segmentStage) Run(_ context.Context, doc *Document) error {
	doc.Layers = layers.Segment(doc.Commands)
	return nil
}
