// Package stats summarizes resolved gcode streams for CLI reports and API
// responses.
package stats

import (
	"github.com/printfarm/gcodemux/internal/gcode"
	"github.com/printfarm/gcodemux/internal/layers"
)

// Summary is a one-row report over a resolved stream. Draw and travel counts
// partition the motion records by whether they advance the extruder. Filament
// is the total positive extruder advance, in stream units.
type Summary struct {
	Records    int `json:"records"`
	Motion     int `json:"motion"`
	Draws      int `json:"draws"`
	Travels    int `json:"travels"`
	Comments   int `json:"comments"`
	Skeinforge int `json:"skeinforge"`
	Unknown    int `json:"unknown"`

	Layers  int `json:"layers"`
	Splines int `json:"splines"`

	Filament  float64 `json:"filament"`
	MinHeight float64 `json:"min_height"`
	MaxHeight float64 `json:"max_height"`
}

// Collect walks a resolved stream and derives its summary. The layer map is
// optional; when present it contributes the layer and spline counts, which
// reflect segmentation rules (singleton splines dropped) rather than raw
// record totals.
func Collect(cmds []*gcode.Command, m *layers.Map) Summary {
	var s Summary
	s.Records = len(cmds)

	prevE := 0.0
	heightSeen := false
	for _, c := range cmds {
		switch c.Opcode {
		case gcode.OpcodeComment:
			s.Comments++
			continue
		case gcode.OpcodeSkeinforge:
			s.Skeinforge++
			continue
		case gcode.OpcodeUnknown:
			s.Unknown++
			continue
		}

		if c.Z != nil {
			if !heightSeen || *c.Z < s.MinHeight {
				s.MinHeight = *c.Z
			}
			if !heightSeen || *c.Z > s.MaxHeight {
				s.MaxHeight = *c.Z
			}
			heightSeen = true
		}

		if !c.IsMotion() {
			continue
		}
		s.Motion++
		e := prevE
		if c.E != nil {
			e = *c.E
		}
		if de := e - prevE; de > 0 {
			s.Draws++
			s.Filament += de
		} else {
			s.Travels++
		}
		prevE = e
	}

	if m != nil {
		s.Layers = m.Len()
		s.Splines = m.Splines()
	}
	return s
}
