// Package resolve implements the forward state-resolution pass: every field
// a command omits inherits the last explicitly set value, and every field a
// command sets becomes the baseline for the records after it.
package resolve

import "github.com/printfarm/gcodemux/internal/gcode"

// state is the running machine state carried across one stream. Axes and the
// named machine settings start unset; extrusion, feed rate, and tool carry
// the protocol's zero defaults; the fan starts off.
type state struct {
	x, y, z  *float64
	e, f     float64
	tool     int
	units    *string
	temp     *float64
	pwm      *float64
	absolute *bool
	fan      bool
}

// Stream resolves a tokenized stream in place, in one forward pass, and
// returns the same slice. Comment, Skeinforge meta, and Unknown records pass
// through untouched: they neither read nor write the running state. Streams
// are independent; resolving two extruders concurrently is safe as long as
// each call owns its slice.
func Stream(cmds []*gcode.Command) []*gcode.Command {
	var s state
	for _, c := range cmds {
		if c.IsSentinel() {
			continue
		}
		s.apply(c)
	}
	return cmds
}

// apply runs the record's opcode transform, fills its unset fields from the
// running state, and folds its set fields back into the state. Inherited
// values are fresh copies so an emitted record is never mutated by a later
// one.
func (s *state) apply(c *gcode.Command) {
	gcode.Transform(c)

	if c.X == nil {
		if s.x != nil {
			c.X = gcode.Float(*s.x)
		}
	} else {
		v := *c.X
		s.x = &v
	}
	if c.Y == nil {
		if s.y != nil {
			c.Y = gcode.Float(*s.y)
		}
	} else {
		v := *c.Y
		s.y = &v
	}
	if c.Z == nil {
		if s.z != nil {
			c.Z = gcode.Float(*s.z)
		}
	} else {
		v := *c.Z
		s.z = &v
	}

	if c.E == nil {
		c.E = gcode.Float(s.e)
	} else {
		s.e = *c.E
	}
	if c.F == nil {
		c.F = gcode.Float(s.f)
	} else {
		s.f = *c.F
	}
	if c.Tool == nil {
		c.Tool = gcode.Int(s.tool)
	} else {
		s.tool = *c.Tool
	}

	if v, ok := c.Aux[gcode.AuxUnits].(string); ok {
		s.units = &v
	} else if s.units != nil {
		c.SetAux(gcode.AuxUnits, *s.units)
	}
	if v, ok := c.AuxFloat(gcode.AuxExtruderTemp); ok {
		s.temp = &v
	} else if s.temp != nil {
		c.SetAux(gcode.AuxExtruderTemp, *s.temp)
	}
	if v, ok := c.AuxFloat(gcode.AuxExtruderPWM); ok {
		s.pwm = &v
	} else if s.pwm != nil {
		c.SetAux(gcode.AuxExtruderPWM, *s.pwm)
	}
	if v, ok := c.Aux[gcode.AuxAbsolute].(bool); ok {
		s.absolute = &v
	} else if s.absolute != nil {
		c.SetAux(gcode.AuxAbsolute, *s.absolute)
	}
	if v, ok := c.Aux[gcode.AuxFan].(bool); ok {
		s.fan = v
	} else {
		c.SetAux(gcode.AuxFan, s.fan)
	}
}
