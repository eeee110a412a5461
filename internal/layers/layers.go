// Package layers groups a resolved stream by build height and splits each
// height into continuous drawn splines, bounded by retraction and travel
// moves.
package layers

import (
	"sort"

	"github.com/printfarm/gcodemux/internal/gcode"
)

// Spline is one continuous drawn sub-path within a height.
type Spline []*gcode.Command

// Layer owns the records sharing one height and the splines built from them.
// Records that contribute no positional movement stay in Commands but never
// appear in a spline.
type Layer struct {
	Height   float64
	Commands []*gcode.Command
	Splines  []Spline
}

// Map is the segmentation result for one stream, keyed by exact height
// value. Two heights differing by any epsilon are distinct layers. A Map is
// owned by its caller; segmenting the same stream twice yields two
// independent, identical Maps.
type Map struct {
	byHeight map[float64]*Layer
}

// Heights returns every segmented height in ascending order, bottom to top.
func (m *Map) Heights() []float64 {
	hs := make([]float64, 0, len(m.byHeight))
	for h := range m.byHeight {
		hs = append(hs, h)
	}
	sort.Float64s(hs)
	return hs
}

// Layer returns the layer at an exact height value.
func (m *Map) Layer(height float64) (*Layer, bool) {
	l, ok := m.byHeight[height]
	return l, ok
}

// Len returns the number of layers.
func (m *Map) Len() int {
	return len(m.byHeight)
}

// Splines returns the total spline count across all layers.
func (m *Map) Splines() int {
	var n int
	for _, l := range m.byHeight {
		n += len(l.Splines)
	}
	return n
}

// Segment builds the height map for one resolved stream. Sentinel records
// and records whose height was never set are discarded; so are splines with
// fewer than two points and layers left with no splines at all, since a
// single point draws nothing.
func Segment(cmds []*gcode.Command) *Map {
	m := &Map{byHeight: make(map[float64]*Layer)}

	for _, c := range cmds {
		if c.IsSentinel() || c.Z == nil {
			continue
		}
		layer, ok := m.byHeight[*c.Z]
		if !ok {
			layer = &Layer{Height: *c.Z}
			m.byHeight[*c.Z] = layer
		}
		layer.Commands = append(layer.Commands, c)
	}

	for h, layer := range m.byHeight {
		layer.Splines = buildSplines(layer.Commands)
		if len(layer.Splines) == 0 {
			delete(m.byHeight, h)
		}
	}
	return m
}

// buildSplines walks one height group in original order. The comparison
// baseline is the last point appended to the current spline, not the
// previous record in the group: a record without positional movement is
// dropped and leaves the baseline where it was.
func buildSplines(cmds []*gcode.Command) []Spline {
	var splines []Spline
	var current Spline

	for _, c := range cmds {
		if len(current) == 0 {
			current = Spline{c}
			continue
		}
		last := current[len(current)-1]
		dx := coord(c.X) - coord(last.X)
		dy := coord(c.Y) - coord(last.Y)
		de := coord(c.E) - coord(last.E)

		switch {
		case dx == 0 && dy == 0:
			// no positional movement, irrelevant to curve geometry
		case de > 0:
			current = append(current, c)
		default:
			// retraction or travel: the drawn path ends here
			splines = append(splines, current)
			current = Spline{c}
		}
	}
	if len(current) > 0 {
		splines = append(splines, current)
	}

	kept := splines[:0]
	for _, sp := range splines {
		if len(sp) >= 2 {
			kept = append(kept, sp)
		}
	}
	return kept
}

func coord(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
