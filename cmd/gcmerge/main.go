// Package main provides gcmerge, the batch front end for the gcode
// pipeline: it normalizes one stream or merges two extruder streams by build
// height, without running the HTTP service.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/printfarm/gcodemux/internal/codec"
	"github.com/printfarm/gcodemux/internal/gcode"
	"github.com/printfarm/gcodemux/internal/layers"
	"github.com/printfarm/gcodemux/internal/merge"
	"github.com/printfarm/gcodemux/internal/resolve"
	"github.com/printfarm/gcodemux/internal/stats"
	"github.com/printfarm/gcodemux/internal/verify"
)

func main() {
	var (
		pathA      string
		pathB      string
		headerA    int
		headerB    int
		outPath    string
		showLayers bool
		check      bool
		strict     bool
		verbose    bool
	)

	flag.StringVar(&pathA, "a", "", "first (or only) gcode input path")
	flag.StringVar(&pathB, "b", "", "second gcode input path; selects the merge flow")
	flag.IntVar(&headerA, "header-a", -1, "records in stream a's header (negative = auto-detect)")
	flag.IntVar(&headerB, "header-b", -1, "records in stream b's header (negative = auto-detect)")
	flag.StringVar(&outPath, "o", "", "output path (default stdout)")
	flag.BoolVar(&showLayers, "layers", false, "print the layer and spline summary instead of gcode")
	flag.BoolVar(&check, "check", false, "verify the output stream, reporting findings on stderr")
	flag.BoolVar(&strict, "strict", false, "fail on malformed parameters instead of keeping them as unknown records")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	if pathA == "" {
		fmt.Fprintln(os.Stderr, "Usage: gcmerge -a first.gcode [-b second.gcode] [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(logger, pathA, pathB, headerA, headerB, outPath, showLayers, check, strict); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, pathA, pathB string, headerA, headerB int, outPath string, showLayers, check, strict bool) error {
	out, err := load(log, pathA, strict)
	if err != nil {
		return err
	}

	merged := pathB != ""
	if merged {
		b, err := load(log, pathB, strict)
		if err != nil {
			return err
		}
		if headerA < 0 {
			headerA = merge.DetectHeaderEnd(out)
		}
		if headerB < 0 {
			headerB = merge.DetectHeaderEnd(b)
		}
		out = merge.New(log).Merge(out, b, headerA, headerB)
	}

	w := io.Writer(os.Stdout)
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if showLayers {
		if err := printLayers(w, out); err != nil {
			return err
		}
	} else {
		if _, err := io.WriteString(w, codec.EncodeText(out)); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	if check {
		if n := report(os.Stderr, out, merged); n > 0 {
			return fmt.Errorf("verification reported %d finding(s)", n)
		}
	}
	return nil
}

// load reads one gcode file and runs it through the tokenize and resolve
// stages.
func load(log *slog.Logger, path string, strict bool) ([]*gcode.Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	lines, err := codec.ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	mode := codec.ModePermissive
	if strict {
		mode = codec.ModeStrict
	}
	cmds, err := codec.NewDecoder(codec.WithMode(mode), codec.WithLogger(log)).DecodeAll(lines)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return resolve.Stream(cmds), nil
}

func printLayers(w io.Writer, cmds []*gcode.Command) error {
	m := layers.Segment(cmds)
	s := stats.Collect(cmds, m)

	fmt.Fprintf(w, "records:  %d (%d draws, %d travels, %d comments)\n", s.Records, s.Draws, s.Travels, s.Comments)
	fmt.Fprintf(w, "layers:   %d\n", s.Layers)
	fmt.Fprintf(w, "splines:  %d\n", s.Splines)
	fmt.Fprintf(w, "filament: %s\n", formatFloat(s.Filament))
	if s.Layers > 0 {
		fmt.Fprintf(w, "height:   %s to %s\n", formatFloat(s.MinHeight), formatFloat(s.MaxHeight))
	}
	for _, h := range m.Heights() {
		layer, ok := m.Layer(h)
		if !ok {
			continue
		}
		points := 0
		for _, sp := range layer.Splines {
			points += len(sp)
		}
		fmt.Fprintf(w, "  z=%s: %d spline(s), %d point(s)\n", formatFloat(h), len(layer.Splines), points)
	}
	return nil
}

// report prints verifier findings and returns how many there were. Merged
// streams get the merge-order checks instead of axis propagation, which the
// bare synthetic tool markers do not satisfy.
func report(w io.Writer, cmds []*gcode.Command, merged bool) int {
	var findings []verify.Finding
	if merged {
		findings = verify.Merged(cmds)
	} else {
		findings = verify.Resolved(cmds)
	}
	findings = append(findings, verify.Layers(layers.Segment(cmds))...)

	for _, f := range findings {
		fmt.Fprintf(w, "check %s at %s: %s\n", f.Check, f.Path, f.Message)
	}
	return len(findings)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
