// Package merge interleaves two resolved extruder streams into one
// tool-tagged stream ordered by build height.
package merge

import (
	"log/slog"
	"sort"

	"github.com/printfarm/gcodemux/internal/gcode"
)

// Provenance prefixes carried by merged sequence labels.
const (
	// SourceA marks records relocated from the first stream.
	SourceA = "a"

	// SourceB marks records relocated from the second stream.
	SourceB = "b"

	// SourceSynthetic marks tool-switch and comment markers the merger
	// fabricates.
	SourceSynthetic = "x"
)

// Merger combines two resolved streams. Both inputs must be fully resolved
// before Merge runs; the merger inspects whole-stream height sets and never
// re-tokenizes.
type Merger struct {
	log *slog.Logger
}

// New creates a merger. A nil logger falls back to slog.Default.
func New(log *slog.Logger) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{log: log}
}

// Merge produces one stream from streams a and b. headerEndA and headerEndB
// are the indices of the last record of each stream's initialization block.
//
// The headers are emitted first, each introduced by a synthetic tool select
// and closed by a synthetic comment marker. The bodies are then interleaved
// by the ascending union of their heights; within one height, all of a's
// records precede all of b's. Emitted records are clones relabeled with a
// provenance prefix and a forced tool index; the input slices are never
// modified.
//
// A cursor that runs out of records before all heights are processed is
// logged and skipped, never an error. Body records the cursor cannot match
// to a height, such as comment lines between moves, strand the cursor and
// end that stream's emission; the leftover count is logged.
func (m *Merger) Merge(a, b []*gcode.Command, headerEndA, headerEndB int) []*gcode.Command {
	out := make([]*gcode.Command, 0, len(a)+len(b)+8)
	var syn int

	marker := func(opcode string, tool int) *gcode.Command {
		syn++
		c := gcode.New(opcode, syn)
		c.Seq.Source = SourceSynthetic
		c.Tool = gcode.Int(tool)
		return c
	}
	closer := func(source string, tool int) *gcode.Command {
		syn++
		c := gcode.New(gcode.OpcodeComment, syn)
		c.Seq.Source = SourceSynthetic
		c.Tool = gcode.Int(tool)
		c.SetComment("end of stream " + source + " header")
		return c
	}
	relabel := func(c *gcode.Command, source string, tool int) *gcode.Command {
		dup := c.Clone()
		dup.Seq.Source = source
		dup.Tool = gcode.Int(tool)
		return dup
	}

	out = append(out, marker("T0", 0))
	for _, c := range header(a, headerEndA) {
		out = append(out, relabel(c, SourceA, 0))
	}
	out = append(out, closer(SourceA, 0))

	out = append(out, marker("T1", 1))
	for _, c := range header(b, headerEndB) {
		out = append(out, relabel(c, SourceB, 1))
	}
	out = append(out, closer(SourceB, 1))

	bodyA := body(a, headerEndA)
	bodyB := body(b, headerEndB)

	var ai, bi int
	var exhaustedA, exhaustedB bool
	for _, h := range heightUnion(bodyA, bodyB) {
		if ai >= len(bodyA) && !exhaustedA {
			exhaustedA = true
			err := gcode.NewMergeCursorExhausted(SourceA, h)
			m.log.Warn("merge cursor exhausted", slog.String("error", err.Error()))
		}
		if bi >= len(bodyB) && !exhaustedB {
			exhaustedB = true
			err := gcode.NewMergeCursorExhausted(SourceB, h)
			m.log.Warn("merge cursor exhausted", slog.String("error", err.Error()))
		}

		if ai < len(bodyA) && atHeight(bodyA[ai], h) {
			out = append(out, marker("T0", 0))
			for ai < len(bodyA) && atHeight(bodyA[ai], h) {
				out = append(out, relabel(bodyA[ai], SourceA, 0))
				ai++
			}
		}
		if bi < len(bodyB) && atHeight(bodyB[bi], h) {
			out = append(out, marker("T1", 1))
			for bi < len(bodyB) && atHeight(bodyB[bi], h) {
				out = append(out, relabel(bodyB[bi], SourceB, 1))
				bi++
			}
		}
	}

	if left := len(bodyA) - ai; left > 0 {
		m.log.Warn("body records left unmerged",
			slog.String("stream", SourceA), slog.Int("count", left))
	}
	if left := len(bodyB) - bi; left > 0 {
		m.log.Warn("body records left unmerged",
			slog.String("stream", SourceB), slog.Int("count", left))
	}
	return out
}

// DetectHeaderEnd locates the initialization block of a resolved stream: the
// header ends on the record before the first motion record that extrudes at
// a set height. A stream with no such drawing move is all header.
func DetectHeaderEnd(cmds []*gcode.Command) int {
	for i, c := range cmds {
		if c.IsMotion() && c.Z != nil && c.E != nil && *c.E > 0 {
			return i - 1
		}
	}
	return len(cmds) - 1
}

// header returns the records with index <= headerEnd.
func header(cmds []*gcode.Command, headerEnd int) []*gcode.Command {
	if headerEnd < 0 {
		return nil
	}
	if headerEnd >= len(cmds) {
		return cmds
	}
	return cmds[:headerEnd+1]
}

// body returns the records with index > headerEnd.
func body(cmds []*gcode.Command, headerEnd int) []*gcode.Command {
	if headerEnd < 0 {
		return cmds
	}
	if headerEnd >= len(cmds) {
		return nil
	}
	return cmds[headerEnd+1:]
}

// heightUnion collects the distinct set heights across both bodies, sorted
// ascending.
func heightUnion(a, b []*gcode.Command) []float64 {
	set := make(map[float64]struct{})
	for _, c := range a {
		if c.Z != nil {
			set[*c.Z] = struct{}{}
		}
	}
	for _, c := range b {
		if c.Z != nil {
			set[*c.Z] = struct{}{}
		}
	}
	heights := make([]float64, 0, len(set))
	for h := range set {
		heights = append(heights, h)
	}
	sort.Float64s(heights)
	return heights
}

func atHeight(c *gcode.Command, h float64) bool {
	return c.Z != nil && *c.Z == h
}
