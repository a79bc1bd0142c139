// Package classify turns one audio chunk into a category label. The
// Classifier interface hides how the decision is made: an external program
// per chunk, a remote service, or in-process analysis.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"segcut/internal/config"
	"segcut/internal/label"
	"segcut/internal/track"

	"github.com/sirupsen/logrus"
)

var (
	// ErrClassification is wrapped by every per-chunk Failure.
	ErrClassification = errors.New("classification failed")
	// ErrUnrecognized reports oracle output that names no single category.
	ErrUnrecognized = errors.New("unrecognized oracle output")
	// ErrUnavailable reports a backend that is not compiled into this binary.
	ErrUnavailable = errors.New("classifier backend unavailable")
)

// Classifier decides the category of one chunk.
type Classifier interface {
	Classify(ctx context.Context, chunk track.Chunk) (label.Label, error)
}

// Failure is a contained, per-chunk classification error.
type Failure struct {
	Index int
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("chunk %03d: %v", f.Index+1, f.Err)
}

func (f *Failure) Unwrap() []error {
	return []error{ErrClassification, f.Err}
}

// Run classifies chunk with c. It never panics and never returns a
// non-Failure error: anything short of a definitive category becomes
// label.Unknown plus a *Failure for the caller to log.
func Run(ctx context.Context, c Classifier, chunk track.Chunk) (l label.Label, err error) {
	defer func() {
		if r := recover(); r != nil {
			l = label.Unknown
			err = &Failure{Index: chunk.Index, Err: fmt.Errorf("classifier panic: %v", r)}
		}
	}()
	l, err = c.Classify(ctx, chunk)
	if err != nil {
		return label.Unknown, &Failure{Index: chunk.Index, Err: err}
	}
	if !l.Known() {
		return label.Unknown, &Failure{Index: chunk.Index, Err: ErrUnrecognized}
	}
	return l, nil
}

// New builds the backend selected by cfg.Classify.Backend.
func New(cfg *config.Config, logger *logrus.Logger) (Classifier, error) {
	switch strings.ToLower(cfg.Classify.Backend) {
	case "command", "":
		return NewCommandClassifier(cfg, logger)
	case "http":
		return NewHTTPClassifier(cfg)
	case "energy":
		return NewEnergyClassifier(cfg)
	case "vad":
		return newVADClassifier(cfg)
	case "whisper":
		return newWhisperClassifier(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unknown classify.backend %q", config.ErrInvalid, cfg.Classify.Backend)
	}
}

// Close releases c if it holds resources.
func Close(c Classifier) error {
	if closer, ok := c.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// withArtifact materializes chunk as a temporary WAV file for the duration of
// fn. The file is removed on every return path.
func withArtifact(dir string, mono bool, chunk track.Chunk, fn func(path string) error) error {
	buf := chunk.Payload
	if mono {
		buf = track.Mono(buf)
	}
	path, err := track.WriteTemp(dir, fmt.Sprintf("segcut-chunk-%03d-*.wav", chunk.Index+1), buf)
	if err != nil {
		return fmt.Errorf("write chunk artifact: %w", err)
	}
	defer func() { _ = os.Remove(path) }()
	return fn(path)
}
