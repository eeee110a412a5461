package codec

import (
	"sort"
	"strconv"
	"strings"

	"github.com/printfarm/gcodemux/internal/gcode"
)

// EncodeCommand renders one record in the reference textual form: the opcode,
// the explicitly-present typed fields in X, Y, Z, E, F order, any remaining
// single-letter parameters, and the comment in trailing parentheses.
// Sentinel records render as comment or meta lines. State annotations the
// resolver attaches (units, fan, temperatures, positioning mode) are not
// protocol parameters and are never emitted.
func EncodeCommand(c *gcode.Command) string {
	switch c.Opcode {
	case gcode.OpcodeComment:
		if text := c.Comment(); text != "" {
			return "; " + text
		}
		return ";"
	case gcode.OpcodeSkeinforge:
		s, _ := c.Aux[gcode.AuxSkeinforge].(string)
		return "(" + s + ")"
	case gcode.OpcodeUnknown:
		return c.Comment()
	}

	parts := []string{c.Opcode}
	for _, f := range []struct {
		key   string
		value *float64
	}{{"X", c.X}, {"Y", c.Y}, {"Z", c.Z}, {"E", c.E}, {"F", c.F}} {
		if f.value != nil {
			parts = append(parts, f.key+formatFloat(*f.value))
		}
	}
	for _, key := range letterKeys(c.Aux) {
		if v, ok := c.AuxFloat(key); ok {
			parts = append(parts, key+formatFloat(v))
		}
	}

	out := strings.Join(parts, " ")
	if text := c.Comment(); text != "" {
		out += " (" + text + ")"
	}
	return out
}

// EncodeAll renders a stream one line per record, preserving order.
func EncodeAll(cmds []*gcode.Command) []string {
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = EncodeCommand(c)
	}
	return lines
}

// EncodeText renders a stream as one newline-terminated document.
func EncodeText(cmds []*gcode.Command) string {
	if len(cmds) == 0 {
		return ""
	}
	return strings.Join(EncodeAll(cmds), "\n") + "\n"
}

// letterKeys returns the single-uppercase-letter auxiliary keys in sorted
// order so encoding is deterministic.
func letterKeys(aux map[string]any) []string {
	var keys []string
	for k := range aux {
		if len(k) == 1 && k[0] >= 'A' && k[0] <= 'Z' {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
