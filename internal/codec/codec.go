// Package codec converts between raw Gcode text and command records: the
// line tokenizer on the decode side and the reference textual form on the
// encode side.
package codec

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/printfarm/gcodemux/internal/gcode"
)

// Mode selects the whole-stream policy for malformed parameters.
type Mode int

const (
	// ModePermissive logs a malformed record, classifies it Unknown, and
	// keeps going. This is the reference behavior and the default.
	ModePermissive Mode = iota

	// ModeStrict fails the whole stream on the first malformed record.
	ModeStrict
)

// Decoder tokenizes raw Gcode lines into command records.
type Decoder struct {
	mode Mode
	log  *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMode sets the malformed-parameter policy.
func WithMode(m Mode) Option {
	return func(d *Decoder) { d.mode = m }
}

// WithLogger sets the logger used for permissive-mode warnings.
func WithLogger(log *slog.Logger) Option {
	return func(d *Decoder) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDecoder creates a decoder. The zero configuration is permissive and
// logs through slog.Default.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{mode: ModePermissive, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeLine tokenizes one raw line into a command record. lineNo is
// 1-based and becomes the record's sequence label. Classification follows a
// fixed priority: Skeinforge meta, comment extraction, empty-after-comments,
// unrecognized opcode, then parameter routing. A parameter token whose value
// portion is not numeric fails with a MalformedParameterError; DecodeAll
// applies the configured policy on top.
func (d *Decoder) DecodeLine(raw string, lineNo int) (*gcode.Command, error) {
	line := strings.TrimSpace(raw)

	if strings.HasPrefix(line, "(<") {
		cmd := gcode.New(gcode.OpcodeSkeinforge, lineNo)
		cmd.SetAux(gcode.AuxSkeinforge, strings.Trim(line, "()"))
		return cmd, nil
	}

	rest := line
	var comment string
	var hasComment bool
	if i := strings.Index(rest, ";"); i >= 0 {
		comment = strings.TrimSpace(rest[i+1:])
		hasComment = true
		rest = rest[:i]
	}
	if i := strings.Index(rest, "("); i >= 0 {
		comment = strings.Trim(rest[i+1:], ";) \t")
		hasComment = true
		rest = rest[:i]
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		// Nothing but comment text. Recover it from the whole line so a
		// bare ";" or "(...)" wrapper is not lost.
		cmd := gcode.New(gcode.OpcodeComment, lineNo)
		cmd.SetComment(strings.TrimSpace(strings.Trim(line, ";()")))
		return cmd, nil
	}

	opcode := fields[0]
	if !gcode.Known(opcode) {
		cmd := gcode.New(gcode.OpcodeUnknown, lineNo)
		cmd.SetComment(strings.Join(fields, " "))
		return cmd, nil
	}

	cmd := gcode.New(opcode, lineNo)
	if hasComment {
		cmd.SetComment(comment)
	}
	for _, tok := range fields[1:] {
		if err := routeParameter(cmd, tok, lineNo); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// routeParameter assigns one "K<value>" token: X, Y, Z, E, F to the typed
// fields, T to the tool index, anything else to the auxiliary map.
func routeParameter(cmd *gcode.Command, tok string, lineNo int) error {
	key := tok[0]
	value := strings.TrimSpace(tok[1:])

	if key == 'T' {
		n, err := strconv.Atoi(value)
		if err != nil {
			return gcode.NewMalformedParameter(lineNo, tok)
		}
		cmd.Tool = gcode.Int(n)
		return nil
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return gcode.NewMalformedParameter(lineNo, tok)
	}
	switch key {
	case 'X':
		cmd.X = gcode.Float(v)
	case 'Y':
		cmd.Y = gcode.Float(v)
	case 'Z':
		cmd.Z = gcode.Float(v)
	case 'E':
		cmd.E = gcode.Float(v)
	case 'F':
		cmd.F = gcode.Float(v)
	default:
		cmd.SetAux(string(key), v)
	}
	return nil
}

// DecodeAll tokenizes a whole document in line order. Under ModePermissive a
// malformed record is logged, replaced by an Unknown classification carrying
// the raw token list, and the pass continues; under ModeStrict the first
// malformed record fails the stream.
func (d *Decoder) DecodeAll(lines []string) ([]*gcode.Command, error) {
	cmds := make([]*gcode.Command, 0, len(lines))
	for i, raw := range lines {
		lineNo := i + 1
		cmd, err := d.DecodeLine(raw, lineNo)
		if err != nil {
			if d.mode == ModeStrict {
				return nil, fmt.Errorf("failed to decode stream: %w", err)
			}
			d.log.Warn("skipping malformed gcode line",
				slog.Int("line", lineNo),
				slog.String("error", err.Error()))
			cmd = gcode.New(gcode.OpcodeUnknown, lineNo)
			cmd.SetComment(strings.Join(strings.Fields(raw), " "))
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ReadLines slurps a document into its lines, tolerating a missing trailing
// newline.
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines: %w", err)
	}
	return lines, nil
}
