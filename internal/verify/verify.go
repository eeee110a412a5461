// Package verify re-checks the pipeline's ordering and propagation guarantees
// on finished streams. Findings are advisory: they report where an output
// breaks an expected property, they never stop processing.
package verify

import (
	"fmt"
	"strconv"

	"github.com/printfarm/gcodemux/internal/gcode"
	"github.com/printfarm/gcodemux/internal/layers"
	"github.com/printfarm/gcodemux/internal/merge"
)

// Check categorizes the property a finding violates.
type Check string

const (
	// CheckAxisPropagation flags a record missing a field that an earlier
	// record in the same stream already set.
	CheckAxisPropagation Check = "axis_propagation"

	// CheckHeightOrder flags a merged record whose height is below an
	// earlier record's height.
	CheckHeightOrder Check = "height_order"

	// CheckSourceOrder flags a first-stream record emitted after a
	// second-stream record at the same height.
	CheckSourceOrder Check = "source_order"

	// CheckLabelOrder flags a sequence label that does not increase within
	// its source stream.
	CheckLabelOrder Check = "label_order"

	// CheckSplineSize flags a spline with fewer than two points.
	CheckSplineSize Check = "spline_size"
)

// Finding describes one violated property at one position in the output.
type Finding struct {
	Check   Check  `json:"check"`
	Path    string `json:"path"`
	Got     string `json:"got"`
	Want    string `json:"want"`
	Message string `json:"message"`
}

// Resolved checks a synchronized stream: once a field is set on any record,
// every later non-sentinel record must carry it too.
func Resolved(cmds []*gcode.Command) []Finding {
	var findings []Finding

	type axis struct {
		name string
		get  func(*gcode.Command) bool
	}
	axes := []axis{
		{"X", func(c *gcode.Command) bool { return c.X != nil }},
		{"Y", func(c *gcode.Command) bool { return c.Y != nil }},
		{"Z", func(c *gcode.Command) bool { return c.Z != nil }},
		{"E", func(c *gcode.Command) bool { return c.E != nil }},
		{"F", func(c *gcode.Command) bool { return c.F != nil }},
		{"T", func(c *gcode.Command) bool { return c.Tool != nil }},
	}

	seen := make(map[string]int)
	for i, c := range cmds {
		if c.IsSentinel() {
			continue
		}
		for _, a := range axes {
			set := a.get(c)
			if first, ok := seen[a.name]; ok && !set {
				findings = append(findings, Finding{
					Check:   CheckAxisPropagation,
					Path:    fmt.Sprintf("records[%d].%s", i, a.name),
					Got:     "unset",
					Want:    "set",
					Message: fmt.Sprintf("field %s set at record %d but missing at record %d", a.name, first, i),
				})
			} else if set {
				if _, ok := seen[a.name]; !ok {
					seen[a.name] = i
				}
			}
		}
	}

	return findings
}

// Merged checks a merged stream: heights never descend, the first stream's
// records come before the second stream's within a height, and each source's
// sequence labels increase in emission order. The header blocks are exempt
// from the height and source checks; they are emitted verbatim before the
// interleave begins.
func Merged(cmds []*gcode.Command) []Finding {
	var findings []Finding
	start := bodyStart(cmds)
	findings = append(findings, checkHeightOrder(cmds, start)...)
	findings = append(findings, checkSourceOrder(cmds, start)...)
	findings = append(findings, checkLabelOrder(cmds)...)
	return findings
}

// bodyStart returns the index where the body interleave begins: right after
// the second synthetic closer comment. A stream without both closers is
// checked whole.
func bodyStart(cmds []*gcode.Command) int {
	closers := 0
	for i, c := range cmds {
		if c.Seq.Source == merge.SourceSynthetic && c.Opcode == gcode.OpcodeComment {
			closers++
			if closers == 2 {
				return i + 1
			}
		}
	}
	return 0
}

func checkHeightOrder(cmds []*gcode.Command, start int) []Finding {
	var findings []Finding
	prev := 0.0
	havePrev := false
	for i := start; i < len(cmds); i++ {
		c := cmds[i]
		if !fromSource(c) || c.Z == nil {
			continue
		}
		if havePrev && *c.Z < prev {
			findings = append(findings, Finding{
				Check:   CheckHeightOrder,
				Path:    fmt.Sprintf("records[%d].Z", i),
				Got:     formatHeight(*c.Z),
				Want:    ">= " + formatHeight(prev),
				Message: fmt.Sprintf("height drops from %s to %s at record %d", formatHeight(prev), formatHeight(*c.Z), i),
			})
		}
		prev, havePrev = *c.Z, true
	}
	return findings
}

func checkSourceOrder(cmds []*gcode.Command, start int) []Finding {
	var findings []Finding
	var height float64
	haveHeight := false
	seenSecond := false
	for i := start; i < len(cmds); i++ {
		c := cmds[i]
		if !fromSource(c) || c.Z == nil {
			continue
		}
		if !haveHeight || *c.Z != height {
			height, haveHeight = *c.Z, true
			seenSecond = false
		}
		switch c.Seq.Source {
		case merge.SourceB:
			seenSecond = true
		case merge.SourceA:
			if seenSecond {
				findings = append(findings, Finding{
					Check:   CheckSourceOrder,
					Path:    fmt.Sprintf("records[%d]", i),
					Got:     c.Seq.String(),
					Want:    "before stream b at this height",
					Message: fmt.Sprintf("stream a record %s follows stream b at height %s", c.Seq, formatHeight(height)),
				})
			}
		}
	}
	return findings
}

func checkLabelOrder(cmds []*gcode.Command) []Finding {
	var findings []Finding
	last := make(map[string]int)
	for i, c := range cmds {
		src := c.Seq.Source
		if src == "" {
			continue
		}
		if prev, ok := last[src]; ok && c.Seq.Line <= prev {
			findings = append(findings, Finding{
				Check:   CheckLabelOrder,
				Path:    fmt.Sprintf("records[%d]", i),
				Got:     c.Seq.String(),
				Want:    fmt.Sprintf("label above %s_%d", src, prev),
				Message: fmt.Sprintf("sequence label %s does not increase within stream %s", c.Seq, src),
			})
		}
		last[src] = c.Seq.Line
	}
	return findings
}

// Layers checks a segmented layer map: every surviving spline must hold at
// least two points.
func Layers(m *layers.Map) []Finding {
	if m == nil {
		return nil
	}
	var findings []Finding
	for _, h := range m.Heights() {
		layer, ok := m.Layer(h)
		if !ok {
			continue
		}
		for i, sp := range layer.Splines {
			if len(sp) < 2 {
				findings = append(findings, Finding{
					Check:   CheckSplineSize,
					Path:    fmt.Sprintf("layers[%s].splines[%d]", formatHeight(h), i),
					Got:     strconv.Itoa(len(sp)),
					Want:    ">= 2",
					Message: fmt.Sprintf("spline %d at height %s has %d point(s)", i, formatHeight(h), len(sp)),
				})
			}
		}
	}
	return findings
}

func fromSource(c *gcode.Command) bool {
	return c.Seq.Source == merge.SourceA || c.Seq.Source == merge.SourceB
}

func formatHeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
