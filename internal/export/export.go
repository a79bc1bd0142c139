// Package export writes per-chunk audit files and the combined track of a run.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"segcut/internal/label"
	"segcut/internal/track"

	"github.com/go-audio/audio"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrExport marks a failed write of a chunk or of the combined track.
var ErrExport = errors.New("export failed")

// RunDirLayout is the timestamp layout of run directories (day-hourminute).
const RunDirLayout = "02-1504"

// Exporter writes the artifacts of one run into an explicit run directory.
type Exporter struct {
	runDir  string
	desired label.Label
	logger  *logrus.Logger
}

// Result is the outcome of Export.
type Result struct {
	Combined *audio.IntBuffer // nil when no chunk matched
	Desired  []int            // chunk indices in the combined track
	Files    []string         // per-chunk files written, ascending index
	Failures []error          // per-chunk write failures, each wraps ErrExport
	Counts   map[label.Label]int
}

// Empty reports whether no chunk matched the desired category.
func (r *Result) Empty() bool {
	return r == nil || r.Combined == nil
}

// Duration is the playback length of the combined track.
func (r *Result) Duration() time.Duration {
	if r.Empty() {
		return 0
	}
	return track.Duration(r.Combined)
}

// New creates an Exporter. desired must be a concrete category.
func New(runDir string, desired label.Label, logger *logrus.Logger) (*Exporter, error) {
	if !desired.Known() {
		return nil, fmt.Errorf("export: desired category must be A or B (got %s)", desired)
	}
	if strings.TrimSpace(runDir) == "" {
		return nil, errors.New("export: run directory is empty")
	}
	return &Exporter{runDir: runDir, desired: desired, logger: logger}, nil
}

// ChunkPath returns the audit file path for chunk index under category l.
func (e *Exporter) ChunkPath(index int, l label.Label) string {
	cat := l.String()
	return filepath.Join(e.runDir, cat, fmt.Sprintf("chunk_%d_%s.wav", index, cat))
}

// Export writes every chunk, in ascending index order, to the directory of
// its corrected label and concatenates the desired ones. Per-chunk failures
// are logged and collected; they never stop the loop.
func (e *Exporter) Export(chunks []track.Chunk, corrected []label.Label) (*Result, error) {
	if len(chunks) != len(corrected) {
		return nil, fmt.Errorf("export: %d chunks but %d labels", len(chunks), len(corrected))
	}
	res := &Result{Counts: make(map[label.Label]int, 3)}
	var parts []*audio.IntBuffer
	for i, chunk := range chunks {
		l := corrected[i]
		res.Counts[l]++
		if err := e.writeChunk(chunk.Index, l, chunk.Payload); err != nil {
			err = fmt.Errorf("%w: chunk %03d: %v", ErrExport, chunk.Index+1, err)
			e.logger.WithField("chunk", chunk.Index+1).Warn(err)
			res.Failures = append(res.Failures, err)
		} else {
			res.Files = append(res.Files, e.ChunkPath(chunk.Index, l))
		}
		if l == e.desired {
			parts = append(parts, chunk.Payload)
			res.Desired = append(res.Desired, chunk.Index)
		}
	}
	if len(parts) > 0 {
		combined, err := track.Concat(parts...)
		if err != nil {
			return res, fmt.Errorf("%w: combine: %v", ErrExport, err)
		}
		res.Combined = combined
	}
	return res, nil
}

func (e *Exporter) writeChunk(index int, l label.Label, buf *audio.IntBuffer) error {
	path := e.ChunkPath(index, l)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return track.WriteFile(path, buf)
}

// WriteCombined persists the combined track at path. An empty result writes
// nothing and returns false.
func (e *Exporter) WriteCombined(path string, res *Result) (bool, error) {
	if res.Empty() {
		e.logger.Info("no chunk matched the desired category; combined track omitted")
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("%w: %v", ErrExport, err)
	}
	if err := track.WriteFile(path, res.Combined); err != nil {
		return false, fmt.Errorf("%w: combined track: %v", ErrExport, err)
	}
	return true, nil
}

// CombinedPath returns <dir>/<stem>_cut<ext> for input.
func CombinedPath(input string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(input, ext)
	if ext == "" {
		ext = ".wav"
	}
	return stem + "_cut" + ext
}

// RunDir creates a fresh run directory under root named by now. When the
// name is taken a short random suffix is appended.
func RunDir(root string, now time.Time) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExport, err)
	}
	name := now.Format(RunDirLayout)
	dir := filepath.Join(root, name)
	for attempt := 0; attempt < 5; attempt++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %v", ErrExport, err)
		}
		dir = filepath.Join(root, name+"-"+uuid.NewString()[:8])
	}
	return "", fmt.Errorf("%w: no free run directory under %s", ErrExport, root)
}
