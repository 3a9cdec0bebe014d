// Package probeimport ingests ffprobe JSON output into catalog entries:
// deriving the exact rational step from frame PTS values and GOP
// boundaries from keyframe positions. The Prober type mirrors the
// teacher's functional-options ffprobe wrapper; Import is pure and takes
// already-read probe JSON, since the core never shells out to ffprobe
// itself.
package probeimport

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/pkgerr"
	"github.com/vidlang/dve/pkg/rat"
	"github.com/vidlang/dve/pkg/timeline"
)

// Prober runs ffprobe against a media file and returns its raw JSON.
type Prober struct {
	ffprobePath string
}

// ProberOption is a functional option for Prober.
type ProberOption func(*Prober)

// WithFFprobePath sets a custom ffprobe binary path.
func WithFFprobePath(path string) ProberOption {
	return func(p *Prober) { p.ffprobePath = path }
}

// NewProber returns a Prober that locates ffprobe on PATH unless
// overridden by WithFFprobePath.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{ffprobePath: findFFprobe()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs ffprobe on filePath and returns the raw show_streams +
// show_frames JSON.
func (p *Prober) Probe(ctx context.Context, filePath string) ([]byte, error) {
	if p.ffprobePath == "" {
		return nil, fmt.Errorf("probeimport: ffprobe not found in PATH")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_frames",
		filePath,
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, pkgerr.ExternalToolFailuref(err, "ffprobe failed: %s", string(exitErr.Stderr))
		}
		return nil, pkgerr.ExternalToolFailuref(err, "ffprobe execution error")
	}
	return out, nil
}

func findFFprobe() string {
	candidates := []string{"ffprobe", "/usr/local/bin/ffprobe", "/opt/homebrew/bin/ffprobe", "/usr/bin/ffprobe"}
	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c
		}
	}
	return ""
}

// --- probe JSON shapes ---

type probeDoc struct {
	Streams []probeStream `json:"streams"`
	Frames  []probeFrame  `json:"frames"`
}

type probeStream struct {
	CodecName string `json:"codec_name"`
	TimeBase  string `json:"time_base"`
}

type probeFrame struct {
	PTS       *int64 `json:"pts"`
	PktPTS    *int64 `json:"pkt_pts"`
	PictType  string `json:"pict_type"`
	KeyFrame  int    `json:"key_frame"`
}

func (f probeFrame) pts() (int64, bool) {
	if f.PTS != nil {
		return *f.PTS, true
	}
	if f.PktPTS != nil {
		return *f.PktPTS, true
	}
	return 0, false
}

// Import parses ffprobe JSON (streams[0].time_base, streams[0].codec_name,
// and a frames[] array, which Import sorts by PTS) into a catalog entry for key, keyed to
// path. probePath is recorded on the entry as provenance (the ffprobe
// JSON file this entry was derived from) but otherwise unused. AV1
// sources are rejected.
func Import(probeJSON []byte, key, path, probePath string) (catalog.Entry, error) {
	var doc probeDoc
	if err := json.Unmarshal(probeJSON, &doc); err != nil {
		return catalog.Entry{}, fmt.Errorf("probeimport: invalid probe JSON: %w", err)
	}
	if len(doc.Streams) == 0 {
		return catalog.Entry{}, pkgerr.BadSpecf("probeimport: no streams in probe JSON")
	}

	// ffprobe's -show_frames emits frames in decode order, which is not
	// necessarily PTS order once B-frames are present; we assume the
	// frames are in order later, so sort by PTS first.
	sort.Slice(doc.Frames, func(i, j int) bool {
		pi, _ := doc.Frames[i].pts()
		pj, _ := doc.Frames[j].pts()
		return pi < pj
	})

	stream := doc.Streams[0]
	codec, err := parseCodec(stream.CodecName)
	if err != nil {
		return catalog.Entry{}, err
	}

	tbn, err := parseTimeBaseDenominator(stream.TimeBase)
	if err != nil {
		return catalog.Entry{}, err
	}

	if len(doc.Frames) < 2 {
		return catalog.Entry{}, pkgerr.BadSpecf("probeimport: need at least 2 frames to derive step, got %d", len(doc.Frames))
	}

	step, err := frameTime(doc.Frames[1], tbn)
	if err != nil {
		return catalog.Entry{}, err
	}

	gops, lastPTS, err := deriveGops(doc.Frames, tbn)
	if err != nil {
		return catalog.Entry{}, err
	}

	r, err := timeline.NewRange(rat.Zero, lastPTS, step)
	if err != nil {
		return catalog.Entry{}, fmt.Errorf("probeimport: deriving overall range: %w", err)
	}

	return catalog.Entry{
		Key:       key,
		Path:      path,
		ProbePath: probePath,
		Range:     r,
		Codec:     codec,
		Gops:      gops,
	}, nil
}

func parseCodec(name string) (catalog.Codec, error) {
	switch strings.ToLower(name) {
	case "h264":
		return catalog.H264, nil
	case "vp9":
		return catalog.VP9, nil
	case "av1":
		return "", pkgerr.BadSpecf("probeimport: AV1 is not supported")
	default:
		return "", pkgerr.BadSpecf("probeimport: unrecognized codec %q", name)
	}
}

func parseTimeBaseDenominator(tb string) (int64, error) {
	parts := strings.SplitN(tb, "/", 2)
	if len(parts) != 2 {
		return 0, pkgerr.BadSpecf("probeimport: malformed time_base %q", tb)
	}
	tbn, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, pkgerr.BadSpecf("probeimport: malformed time_base denominator %q", tb)
	}
	return tbn, nil
}

func frameTime(f probeFrame, tbn int64) (rat.Rat, error) {
	pts, ok := f.pts()
	if !ok {
		return rat.Zero, pkgerr.BadSpecf("probeimport: frame missing pts/pkt_pts")
	}
	return rat.New(pts, tbn), nil
}

// deriveGops walks frames in order: each key frame opens a new GOP, the
// previous GOP's end is the PTS of the frame immediately before it, and
// the final GOP closes at the last frame's PTS.
func deriveGops(frames []probeFrame, tbn int64) ([]catalog.GopBound, rat.Rat, error) {
	var gops []catalog.GopBound
	var lastPTS rat.Rat
	var open *rat.Rat

	for i, f := range frames {
		t, err := frameTime(f, tbn)
		if err != nil {
			return nil, rat.Zero, err
		}
		lastPTS = t

		if isKeyFrame(f) {
			if open != nil {
				gops = append(gops, catalog.GopBound{Start: *open, End: prevFrameTime(frames, i, tbn)})
			}
			start := t
			open = &start
		}
	}

	if open != nil {
		gops = append(gops, catalog.GopBound{Start: *open, End: lastPTS})
	}

	return gops, lastPTS, nil
}

func prevFrameTime(frames []probeFrame, i int, tbn int64) rat.Rat {
	if i == 0 {
		return rat.Zero
	}
	t, _ := frameTime(frames[i-1], tbn)
	return t
}

func isKeyFrame(f probeFrame) bool {
	return f.KeyFrame != 0 || f.PictType == "I"
}
