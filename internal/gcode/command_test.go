package gcode

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestLabel_String(t *testing.T) {
	tests := []struct {
		name     string
		label    Label
		expected string
	}{
		{
			name:     "plain line number",
			label:    Label{Line: 14},
			expected: "14",
		},
		{
			name:     "stream a provenance",
			label:    Label{Source: "a", Line: 14},
			expected: "a_14",
		},
		{
			name:     "stream b provenance",
			label:    Label{Source: "b", Line: 3},
			expected: "b_3",
		},
		{
			name:     "synthetic marker",
			label:    Label{Source: "x", Line: 2},
			expected: "x_2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.label.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestLabel_MarshalJSON(t *testing.T) {
	cmd := New("G1", 7)
	cmd.Seq.Source = "a"

	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := decoded["sequence_id"]; got != "a_7" {
		t.Errorf("sequence_id = %v, want %q", got, "a_7")
	}
}

func TestCommand_IsSentinel(t *testing.T) {
	tests := []struct {
		opcode   string
		expected bool
	}{
		{OpcodeComment, true},
		{OpcodeSkeinforge, true},
		{OpcodeUnknown, true},
		{"G1", false},
		{"M104", false},
		{"T0", false},
	}

	for _, tt := range tests {
		t.Run(tt.opcode, func(t *testing.T) {
			if got := New(tt.opcode, 1).IsSentinel(); got != tt.expected {
				t.Errorf("IsSentinel() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCommand_Point(t *testing.T) {
	cmd := New("G1", 1)
	cmd.X = Float(10)
	cmd.Y = Float(10)
	cmd.Z = Float(0.2)
	cmd.E = Float(5)
	cmd.F = Float(1200)

	pt, err := cmd.Point()
	if err != nil {
		t.Fatalf("Point() error = %v", err)
	}
	want := Point{X: 10, Y: 10, Z: 0.2, E: 5, F: 1200}
	if pt != want {
		t.Errorf("Point() = %+v, want %+v", pt, want)
	}
}

func TestCommand_PointMissingField(t *testing.T) {
	cmd := New("G1", 9)
	cmd.X = Float(10)
	cmd.Y = Float(10)
	cmd.E = Float(5)
	cmd.F = Float(1200)
	// Z never set anywhere in the stream.

	_, err := cmd.Point()
	if err == nil {
		t.Fatal("Point() error = nil, want MissingRequiredFieldError")
	}

	var missing *MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("Point() error = %T, want *MissingRequiredFieldError", err)
	}
	if missing.Field != "Z" {
		t.Errorf("Field = %q, want %q", missing.Field, "Z")
	}
	if missing.Seq.Line != 9 {
		t.Errorf("Seq.Line = %d, want 9", missing.Seq.Line)
	}
}

func TestCommand_Clone(t *testing.T) {
	cmd := New("G1", 4)
	cmd.X = Float(1)
	cmd.E = Float(2)
	cmd.Tool = Int(1)
	cmd.SetComment("perimeter")

	dup := cmd.Clone()
	*dup.X = 99
	*dup.Tool = 0
	dup.Seq = Label{Source: "a", Line: 4}
	dup.SetComment("changed")

	if *cmd.X != 1 {
		t.Errorf("original X = %v after clone mutation, want 1", *cmd.X)
	}
	if *cmd.Tool != 1 {
		t.Errorf("original Tool = %d after clone mutation, want 1", *cmd.Tool)
	}
	if cmd.Seq.Source != "" {
		t.Errorf("original Seq.Source = %q after clone mutation, want empty", cmd.Seq.Source)
	}
	if cmd.Comment() != "perimeter" {
		t.Errorf("original comment = %q after clone mutation, want %q", cmd.Comment(), "perimeter")
	}
	if dup.Y != nil {
		t.Errorf("clone Y = %v, want nil", *dup.Y)
	}
}

func TestCommand_AuxFloat(t *testing.T) {
	cmd := New("M104", 1)
	cmd.SetAux("S", 210.0)
	cmd.SetComment("heat up")

	if v, ok := cmd.AuxFloat("S"); !ok || v != 210.0 {
		t.Errorf("AuxFloat(S) = %v, %v, want 210, true", v, ok)
	}
	if _, ok := cmd.AuxFloat(AuxComment); ok {
		t.Error("AuxFloat(comment) ok = true for a string value, want false")
	}
	if _, ok := cmd.AuxFloat("P"); ok {
		t.Error("AuxFloat(P) ok = true for an absent key, want false")
	}
}
