// Package pipeline runs one recording through chunking, classification,
// correction and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"segcut/internal/classify"
	"segcut/internal/config"
	"segcut/internal/dispatch"
	"segcut/internal/export"
	"segcut/internal/heuristic"
	"segcut/internal/label"
	"segcut/internal/logging"
	"segcut/internal/metrics"
	"segcut/internal/track"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoChunks is returned when the recording is shorter than one chunk.
var ErrNoChunks = errors.New("recording shorter than one chunk")

// AuditLogName is the audit log file name inside a run directory.
const AuditLogName = "classifications.log"

// Pipeline processes recordings with a fixed configuration and classifier.
type Pipeline struct {
	cfg        *config.Config
	classifier classify.Classifier
	logger     *logrus.Logger
	now        func() time.Time
}

// New returns a Pipeline. The classifier is owned by the caller.
func New(cfg *config.Config, c classify.Classifier, logger *logrus.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, classifier: c, logger: logger, now: time.Now}
}

// Process runs the full pipeline for input and returns its report. Errors
// from configuration, decoding or dispatch setup are fatal; per-chunk
// classification and export failures are contained in the report.
func (p *Pipeline) Process(ctx context.Context, input string) (*Report, error) {
	started := p.now()
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	desired, err := label.MustCategory(p.cfg.Output.Desired)
	if err != nil {
		return nil, fmt.Errorf("%w: output.desired: %v", config.ErrInvalid, err)
	}

	tl, err := track.LoadFile(input)
	if err != nil {
		return nil, err
	}
	chunks, err := track.Split(tl, p.cfg.ChunkDuration())
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s lasts %v, chunk length is %v", ErrNoChunks, input, tl.Duration(), p.cfg.ChunkDuration())
	}

	runDir, err := export.RunDir(p.cfg.Output.ExportDir, started)
	if err != nil {
		return nil, err
	}
	rep := &Report{
		RunID:         uuid.NewString(),
		Input:         input,
		RunDir:        runDir,
		Desired:       desired,
		ChunkDuration: p.cfg.ChunkDuration(),
		Chunks:        len(chunks),
		Dropped:       tl.Duration() - chunks[len(chunks)-1].End,
	}
	log := logging.ForRun(p.logger, rep.RunID)
	log.Infof("processing %s: %d chunks of %v, %d workers", input, len(chunks), rep.ChunkDuration, p.cfg.WorkerCount())

	rep.AuditLog = p.cfg.Output.AuditLog
	if rep.AuditLog == "" {
		rep.AuditLog = filepath.Join(runDir, AuditLogName)
	}
	audit, err := dispatch.OpenAuditLog(rep.AuditLog)
	if err != nil {
		return nil, fmt.Errorf("%w: open audit log: %v", dispatch.ErrSetup, err)
	}
	defer func() {
		if cerr := audit.Close(); cerr != nil {
			log.WithError(cerr).Warn("close audit log")
		}
	}()

	var counters metrics.Counters
	d := dispatch.New(p.classifier, p.logger,
		dispatch.WithWorkers(p.cfg.WorkerCount()),
		dispatch.WithAuditLog(audit),
		dispatch.WithCounters(&counters),
	)
	raw, err := d.Run(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("interrupted after classification: %w", err)
	}
	rep.Raw = raw
	rep.Classified = counters.Snapshot()

	corrected := raw
	if p.cfg.Heuristic.Enabled {
		opts := heuristic.Options{
			MinSurroundChunks: p.cfg.Heuristic.MinSurroundChunks,
			MaxFlipLength:     p.cfg.Heuristic.MaxFlipLength,
		}
		corrected, rep.Flips, err = heuristic.Correct(raw, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range rep.Flips {
			log.Infof("heuristic: segment %s flipped to %s", f.Segment, f.To)
		}
	}
	rep.Corrected = corrected
	rep.Segments = heuristic.Segments(corrected)

	exp, err := export.New(runDir, desired, p.logger)
	if err != nil {
		return nil, err
	}
	res, err := exp.Export(chunks, corrected)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Failures {
		rep.ExportFailures = append(rep.ExportFailures, f.Error())
	}
	rep.Kept = res.Desired
	rep.KeptDuration = res.Duration()

	combined := export.CombinedPath(input)
	wrote, err := exp.WriteCombined(combined, res)
	switch {
	case err != nil:
		log.WithError(err).Error("write combined track")
		rep.CombinedError = err.Error()
	case wrote:
		rep.Combined = combined
		log.Infof("combined track: %s (%v)", combined, rep.KeptDuration)
	}

	rep.Elapsed = p.now().Sub(started)
	return rep, nil
}
