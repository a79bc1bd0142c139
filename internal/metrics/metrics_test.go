package metrics

import (
	"strings"
	"sync"
	"testing"

	"segcut/internal/label"
)

func TestCountersConcurrentObserve(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 90; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Observe([]label.Label{label.A, label.B, label.Unknown}[i%3])
		}(i)
	}
	wg.Wait()
	s := c.Snapshot()
	if s.Classified != 90 || s.A != 30 || s.B != 30 || s.Failed != 30 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestWriteText(t *testing.T) {
	var c Counters
	c.Observe(label.B)
	var b strings.Builder
	if err := c.WriteText(&b, "segcut"); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := b.String()
	for _, want := range []string{"segcut_classified_total 1\n", `segcut_label_total{label="B"} 1`, "segcut_failed_total 0\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}
