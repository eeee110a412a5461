// Package testutil provides canonical gcode programs shared by tests across
// the pipeline, handler, and storage packages.
package testutil

import "strings"

// Square returns a complete single-extruder program: heat-up header, a square
// perimeter at height 0.2, a partial perimeter at 0.4, cool-down footer.
// Segmenting it yields two layers with one spline each; total filament is 6.
func Square() []string {
	return []string{
		"(<layer> 0.2)",
		"G21",
		"G90",
		"M104 S210",
		"G1 X0 Y0 Z0.2 F1200",
		"G1 X20 Y0 E1",
		"G1 X20 Y20 E2",
		"G1 X0 Y20 E3",
		"G1 X0 Y0 E4",
		"G1 X0 Y0 Z0.4 E4",
		"G1 X20 Y0 E5",
		"G1 X20 Y20 E6",
		"; done",
		"M104 S0",
		"M103",
	}
}

// DualPair returns matched first- and second-extruder programs plus the index
// of each header's last record. The bodies share height 0.2; stream a alone
// prints at 0.4 and stream b alone at 0.6.
func DualPair() (a, b []string, headerEndA, headerEndB int) {
	a = []string{
		"G21",
		"M104 S210",
		"G1 X0 Y0 Z0.2 F1200",
		"G1 X10 Y0 E1",
		"G1 X10 Y10 E2",
		"G1 X0 Y0 Z0.4 E2",
		"G1 X10 Y0 E3",
	}
	b = []string{
		"G21",
		"M109 S195",
		"G1 X30 Y30 Z0.2 F900",
		"G1 X40 Y30 E1",
		"G1 X40 Y40 Z0.6 E2",
	}
	return a, b, 2, 2
}

// Text joins program lines into the newline-terminated wire form HTTP
// handlers accept.
func Text(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
