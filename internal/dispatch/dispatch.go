// Package dispatch classifies every chunk of a run on a bounded worker pool.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"segcut/internal/classify"
	"segcut/internal/label"
	"segcut/internal/metrics"
	"segcut/internal/track"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrSetup marks a dispatch that could not be started. It is fatal for the
// run.
var ErrSetup = errors.New("dispatch setup failed")

// Dispatcher fans chunks out to a Classifier.
type Dispatcher struct {
	classifier classify.Classifier
	workers    int
	audit      *AuditLog
	counters   *metrics.Counters
	logger     *logrus.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWorkers bounds the number of concurrent classifications.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		d.workers = n
	}
}

// WithAuditLog appends every completion to log.
func WithAuditLog(log *AuditLog) Option {
	return func(d *Dispatcher) {
		d.audit = log
	}
}

// WithCounters records every completion in c.
func WithCounters(c *metrics.Counters) Option {
	return func(d *Dispatcher) {
		d.counters = c
	}
}

// New creates a Dispatcher. Without WithWorkers the pool has one worker.
func New(c classify.Classifier, logger *logrus.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier: c,
		workers:    1,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = 1
	}
	return d
}

// Run classifies all chunks and returns one label per chunk index. Results
// are placed by index, so completion order does not matter. A failed chunk
// yields label.Unknown and never affects the others. Run fails only when the
// chunk set itself is malformed.
func (d *Dispatcher) Run(ctx context.Context, chunks []track.Chunk) ([]label.Label, error) {
	if d.classifier == nil {
		return nil, fmt.Errorf("%w: no classifier", ErrSetup)
	}
	n := len(chunks)
	seen := make([]bool, n)
	for _, c := range chunks {
		if c.Index < 0 || c.Index >= n {
			return nil, fmt.Errorf("%w: chunk index %d outside 0..%d", ErrSetup, c.Index, n-1)
		}
		if seen[c.Index] {
			return nil, fmt.Errorf("%w: chunk index %d submitted twice", ErrSetup, c.Index)
		}
		seen[c.Index] = true
	}

	predictions := make([]label.Label, n)
	var g errgroup.Group
	g.SetLimit(d.workers)
	for _, chunk := range chunks {
		g.Go(func() error {
			l, err := classify.Run(ctx, d.classifier, chunk)
			predictions[chunk.Index] = l
			d.record(chunk, n, l, err)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures are contained as Unknown

	return predictions, nil
}

func (d *Dispatcher) record(chunk track.Chunk, total int, l label.Label, err error) {
	if d.counters != nil {
		d.counters.Observe(l)
	}
	entry := d.logger.WithFields(logrus.Fields{"chunk": chunk.Index + 1, "label": l.String()})
	if err != nil {
		entry.WithError(err).Warnf("chunk %03d/%d: classification failed", chunk.Index+1, total)
	} else {
		entry.Infof("chunk %03d/%d: classified as %s", chunk.Index+1, total, l)
	}
	if d.audit != nil {
		if werr := d.audit.Append(chunk.Index, l); werr != nil {
			entry.WithError(werr).Errorf("write audit log %s", d.audit.Path())
		}
	}
}
