package gcode

import "strconv"

// Known reports whether the leading token of a line is in the recognized
// opcode table. Tool selects are accepted for any index, not just T0/T1.
// Lines whose first token is not recognized are classified Unknown by the
// tokenizer and never reach Transform.
func Known(opcode string) bool {
	switch opcode {
	case "G0", "G1", "G20", "G21", "G28", "G90", "G91", "G92",
		"M101", "M103", "M104", "M105", "M106", "M107", "M108", "M109", "M113":
		return true
	}
	_, ok := toolIndex(opcode)
	return ok
}

// Transform applies the opcode's semantic rewrite to the record's own
// fields. Transforms are pure over the record: they never consult prior
// stream state. Recognized opcodes without special semantics pass through
// unchanged, as does anything unrecognized that reaches the default arm.
func Transform(c *Command) {
	switch c.Opcode {
	case "G0", "G1", "G92", "M105", "M108":
		// no field rewriting
	case "G20":
		c.SetAux(AuxUnits, "inch")
	case "G21":
		c.SetAux(AuxUnits, "mm")
	case "G28":
		homeAxes(c)
	case "G90":
		c.SetAux(AuxAbsolute, true)
	case "G91":
		c.SetAux(AuxAbsolute, false)
	case "M101":
		c.E = Float(0.999)
	case "M103":
		c.E = Float(0)
	case "M104", "M109":
		if s, ok := c.AuxFloat("S"); ok {
			c.SetAux(AuxExtruderTemp, s)
		}
	case "M106":
		c.SetAux(AuxFan, true)
	case "M107":
		c.SetAux(AuxFan, false)
	case "M113":
		if s, ok := c.AuxFloat("S"); ok {
			c.SetAux(AuxExtruderPWM, s)
		}
	default:
		if tool, ok := toolIndex(c.Opcode); ok {
			c.Tool = Int(tool)
		}
	}
}

// homeAxes zeroes the axes named on a G28 line, or all three when the line
// names none. Axes the line leaves out inherit from prior state during
// resolution.
func homeAxes(c *Command) {
	if c.X == nil && c.Y == nil && c.Z == nil {
		c.X, c.Y, c.Z = Float(0), Float(0), Float(0)
		return
	}
	if c.X != nil {
		c.X = Float(0)
	}
	if c.Y != nil {
		c.Y = Float(0)
	}
	if c.Z != nil {
		c.Z = Float(0)
	}
}

func toolIndex(opcode string) (int, bool) {
	if len(opcode) < 2 || opcode[0] != 'T' {
		return 0, false
	}
	n, err := strconv.Atoi(opcode[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
