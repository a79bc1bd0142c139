// Package metrics keeps classification counters and renders them in the
// Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"sync/atomic"

	"segcut/internal/label"
)

// Counters tracks classification outcomes. The zero value is ready to use.
type Counters struct {
	classified atomic.Int64
	failed     atomic.Int64
	a          atomic.Int64
	b          atomic.Int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Classified int64 `json:"classified"`
	Failed     int64 `json:"failed"`
	A          int64 `json:"a"`
	B          int64 `json:"b"`
}

// Observe records one completed classification.
func (c *Counters) Observe(l label.Label) {
	c.classified.Add(1)
	switch l {
	case label.A:
		c.a.Add(1)
	case label.B:
		c.b.Add(1)
	default:
		c.failed.Add(1)
	}
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Classified: c.classified.Load(),
		Failed:     c.failed.Load(),
		A:          c.a.Load(),
		B:          c.b.Load(),
	}
}

// WriteText renders the counters with the given metric name prefix.
func (c *Counters) WriteText(w io.Writer, prefix string) error {
	s := c.Snapshot()
	_, err := fmt.Fprintf(w,
		"%[1]s_classified_total %[2]d\n%[1]s_failed_total %[3]d\n%[1]s_label_total{label=\"A\"} %[4]d\n%[1]s_label_total{label=\"B\"} %[5]d\n",
		prefix, s.Classified, s.Failed, s.A, s.B)
	return err
}
