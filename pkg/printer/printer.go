// Package printer translates a single dag.Op into the argv of an external
// media-tool invocation, following the teacher's CommandBuilder: build up
// an argument slice incrementally, one field at a time, instead of
// templating a shell string.
package printer

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/dag"
	"github.com/vidlang/dve/pkg/rat"
)

// DurationEpsilonFPS is the hard-coded frame rate used to compute the
// half-frame duration bias. The correct derivation is step/2 read from the
// catalog per-video; hard-coding 24 here is a known latent inaccuracy for
// non-24fps sources, carried over unchanged from the reference compiler.
const DurationEpsilonFPS = 24.0

// Command is one external media-tool invocation.
type Command struct {
	// Program is the executable name ("ffmpeg").
	Program string
	Args    []string
}

// ManifestNamer produces a fresh scratch path for a Concat's input
// manifest file.
type ManifestNamer func() string

// DefaultManifestNamer names manifests /scratch/tmp_<uuid>.txt.
func DefaultManifestNamer() string {
	return fmt.Sprintf("/scratch/tmp_%s.txt", uuid.NewString())
}

// Printer holds the knobs needed to print a Concat's manifest file.
type Printer struct {
	ManifestNamer ManifestNamer
}

// New returns a Printer using the UUID-backed default manifest namer.
func New() *Printer {
	return &Printer{ManifestNamer: DefaultManifestNamer}
}

// Print translates op into its external command. Concat additionally
// writes a manifest file to the scratch directory as a side effect.
func (p *Printer) Print(op dag.Op) (Command, error) {
	switch v := op.(type) {
	case dag.Clip:
		return printClip(v), nil
	case dag.Concat:
		return p.printConcat(v)
	case dag.Filter:
		return printFilter(v), nil
	default:
		return Command{}, fmt.Errorf("printer: unrecognized op %T", op)
	}
}

func ffmpegTime(t rat.Rat, duration bool) string {
	v := t.Float64()
	if duration {
		v += 0.5 / DurationEpsilonFPS
	}
	return fmt.Sprintf("%.6f", v)
}

func printClip(c dag.Clip) Command {
	args := []string{"-hide_banner", "-loglevel", "error"}

	args = append(args, "-ss", ffmpegTime(c.Range.Start, false))
	args = append(args, "-i", c.Input)
	args = append(args, "-t", ffmpegTime(c.Range.End.Sub(c.Range.Start), true))

	switch c.Method {
	case dag.StreamCopy:
		args = append(args, "-c:v", "copy", "-c:a", "copy")
	default:
		switch c.Codec {
		case catalog.VP9:
			args = append(args, "-c:v", "libvpx-vp9", "-deadline", "realtime", "-speed", "8")
		default:
			args = append(args, "-c:v", "libx264", "-preset", "ultrafast")
		}
		args = append(args, "-vf", scaleFilter())
	}

	args = append(args, c.Output, "-y")
	return Command{Program: "ffmpeg", Args: args}
}

func (p *Printer) printConcat(c dag.Concat) (Command, error) {
	manifestPath := p.ManifestNamer()
	var lines []string
	for _, in := range c.Inputs {
		lines = append(lines, fmt.Sprintf("file '%s'", in))
	}
	if err := os.WriteFile(manifestPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return Command{}, fmt.Errorf("printer: writing concat manifest: %w", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		c.Output, "-y",
	}
	return Command{Program: "ffmpeg", Args: args}, nil
}

func printFilter(f dag.Filter) Command {
	args := []string{"-hide_banner", "-loglevel", "error"}

	for _, in := range f.Inputs {
		if in.Range != nil {
			args = append(args, "-ss", ffmpegTime(in.Range.Start, false))
		}
		args = append(args, "-i", in.Path)
	}

	// Ranges bind to the first input only: -t is taken from Inputs[0].
	if len(f.Inputs) > 0 && f.Inputs[0].Range != nil {
		r := f.Inputs[0].Range
		args = append(args, "-t", ffmpegTime(r.End.Sub(r.Start), true))
	}

	if f.Complex {
		graph := f.Filter
		if f.Approx {
			graph = strings.Replace(graph,
				fmt.Sprintf("setpts=PTS-STARTPTS, scale=%dx%d", targetWidth, targetHeight),
				fmt.Sprintf("setpts=PTS-STARTPTS, fps=12, scale=%dx%d", targetWidth, targetHeight),
				-1)
		}
		args = append(args, "-filter_complex", graph)
	} else if f.Approx {
		args = append(args, "-vf", fmt.Sprintf("fps=12,%s,%s", scaleFilter(), f.Filter))
	} else {
		args = append(args, "-vf", fmt.Sprintf("%s,%s", scaleFilter(), f.Filter))
	}

	args = append(args, "-c:v", "libx264", "-preset", "ultrafast")
	args = append(args, f.Output, "-y")
	return Command{Program: "ffmpeg", Args: args}
}

const (
	targetWidth  = 1280
	targetHeight = 720
)

func scaleFilter() string {
	return fmt.Sprintf("scale=%d:%d", targetWidth, targetHeight)
}
