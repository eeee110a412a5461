// Package gcode defines the command record model shared by every stage of
// the parsing pipeline: tokenization, state resolution, layer segmentation,
// and dual-stream merging.
package gcode

import "strconv"

// Well-known auxiliary parameter keys.
const (
	// AuxComment holds free-text comment content attached to a record.
	AuxComment = "comment"

	// AuxSkeinforge holds the payload of a Skeinforge meta line, outer
	// parentheses stripped.
	AuxSkeinforge = "skeinforge"

	// AuxUnits holds the active unit system, "mm" or "inch".
	AuxUnits = "units"

	// AuxFan holds the cooling fan state as a bool.
	AuxFan = "fan"

	// AuxExtruderTemp holds the target extruder temperature.
	AuxExtruderTemp = "extruderTemp"

	// AuxExtruderPWM holds the extruder motor PWM value.
	AuxExtruderPWM = "extruderPWM"

	// AuxAbsolute holds the positioning mode as a bool (true = absolute).
	AuxAbsolute = "absolutePos"
)

// Sentinel opcodes for records that carry no machine instruction. Exactly
// one of a structured opcode or a sentinel is set per record.
const (
	// OpcodeComment marks a record whose line held only comment text.
	OpcodeComment = "comment"

	// OpcodeSkeinforge marks a Skeinforge meta line such as "(<layer>)".
	OpcodeSkeinforge = "skeinforge"

	// OpcodeUnknown marks a line whose leading token is not in the
	// recognized opcode table. Unknown is a classification, not an error.
	OpcodeUnknown = "unknown"
)

// Label identifies a record within its stream. Source is empty while the
// record is owned by the stream it was tokenized from and carries a
// provenance prefix after a merge: "a" or "b" for relocated records, "x"
// for synthetic markers.
type Label struct {
	Source string
	Line   int
}

// String renders the label in its textual form, e.g. "14" or "a_14".
func (l Label) String() string {
	if l.Source == "" {
		return strconv.Itoa(l.Line)
	}
	return l.Source + "_" + strconv.Itoa(l.Line)
}

// MarshalJSON renders the label as its textual form.
func (l Label) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, l.String()), nil
}

// Command is one parsed protocol line. The coordinate fields are pointers so
// a record distinguishes absent from zero before resolution; after
// resolution E, F, and Tool are always set, and X, Y, Z are unset only when
// no earlier record in the stream ever set that axis.
type Command struct {
	Seq    Label          `json:"sequence_id"`
	Opcode string         `json:"opcode"`
	X      *float64       `json:"x,omitempty"`
	Y      *float64       `json:"y,omitempty"`
	Z      *float64       `json:"z,omitempty"`
	E      *float64       `json:"e,omitempty"`
	F      *float64       `json:"f,omitempty"`
	Tool   *int           `json:"tool,omitempty"`
	Aux    map[string]any `json:"aux,omitempty"`
}

// New creates a record for the given opcode and 1-based line number.
func New(opcode string, line int) *Command {
	return &Command{Seq: Label{Line: line}, Opcode: opcode}
}

// Float returns a pointer to v. Convenience for building records.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// IsSentinel reports whether the record is a Comment, Skeinforge meta, or
// Unknown classification rather than a machine instruction.
func (c *Command) IsSentinel() bool {
	switch c.Opcode {
	case OpcodeComment, OpcodeSkeinforge, OpcodeUnknown:
		return true
	}
	return false
}

// IsMotion reports whether the record is a movement instruction.
func (c *Command) IsMotion() bool {
	return c.Opcode == "G0" || c.Opcode == "G1"
}

// SetAux stores an auxiliary parameter, allocating the map on first use.
func (c *Command) SetAux(key string, value any) {
	if c.Aux == nil {
		c.Aux = make(map[string]any)
	}
	c.Aux[key] = value
}

// AuxFloat returns the named auxiliary parameter when it holds a float.
func (c *Command) AuxFloat(key string) (float64, bool) {
	v, ok := c.Aux[key].(float64)
	return v, ok
}

// Comment returns the free-text comment attached to the record, if any.
func (c *Command) Comment() string {
	s, _ := c.Aux[AuxComment].(string)
	return s
}

// SetComment attaches free-text comment content to the record.
func (c *Command) SetComment(text string) {
	c.SetAux(AuxComment, text)
}

// Point is a fully-resolved coordinate tuple.
type Point struct {
	X, Y, Z, E, F float64
}

// Point returns the record's coordinate tuple. It fails with a
// MissingRequiredFieldError naming the first field that was never set
// anywhere in the stream's history.
func (c *Command) Point() (Point, error) {
	for _, f := range []struct {
		name  string
		value *float64
	}{{"X", c.X}, {"Y", c.Y}, {"Z", c.Z}, {"E", c.E}, {"F", c.F}} {
		if f.value == nil {
			return Point{}, NewMissingRequiredField(f.name, c.Seq)
		}
	}
	return Point{X: *c.X, Y: *c.Y, Z: *c.Z, E: *c.E, F: *c.F}, nil
}

// Clone returns a deep copy of the record. The merger emits clones so the
// source streams keep their records untouched.
func (c *Command) Clone() *Command {
	dup := *c
	if c.X != nil {
		dup.X = Float(*c.X)
	}
	if c.Y != nil {
		dup.Y = Float(*c.Y)
	}
	if c.Z != nil {
		dup.Z = Float(*c.Z)
	}
	if c.E != nil {
		dup.E = Float(*c.E)
	}
	if c.F != nil {
		dup.F = Float(*c.F)
	}
	if c.Tool != nil {
		dup.Tool = Int(*c.Tool)
	}
	if c.Aux != nil {
		dup.Aux = make(map[string]any, len(c.Aux))
		for k, v := range c.Aux {
			dup.Aux[k] = v
		}
	}
	return &dup
}
