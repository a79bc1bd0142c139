package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"segcut/internal/label"
	"segcut/internal/logging"
	"segcut/internal/metrics"
	"segcut/internal/track"

	"github.com/go-audio/audio"
)

func testChunks(n int) []track.Chunk {
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 100}, Data: make([]int, n*10), SourceBitDepth: 16}
	tl, err := track.NewTimeline("mem", buf)
	if err != nil {
		panic(err)
	}
	chunks, err := track.Split(tl, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	return chunks
}

// scripted returns want[index], sleeping longer for earlier chunks so that
// completion order is the reverse of submission order.
type scripted struct {
	want     []label.Label
	fail     map[int]bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *scripted) Classify(ctx context.Context, c track.Chunk) (label.Label, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if cur <= p || s.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	time.Sleep(time.Duration(len(s.want)-c.Index) * 2 * time.Millisecond)
	if s.fail[c.Index] {
		return label.Unknown, errors.New("oracle unavailable")
	}
	return s.want[c.Index], nil
}

func TestRunPlacesResultsByIndex(t *testing.T) {
	want := []label.Label{label.A, label.A, label.B, label.A, label.B, label.B, label.B, label.A, label.B, label.A, label.A, label.B}
	s := &scripted{want: want}
	var counters metrics.Counters
	d := New(s, logging.NewTestLogger(), WithWorkers(3), WithCounters(&counters))

	got, err := d.Run(context.Background(), testChunks(len(want)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, got[i], want[i])
		}
	}
	if p := s.peak.Load(); p > 3 {
		t.Fatalf("pool exceeded bound: peak %d", p)
	}
	if snap := counters.Snapshot(); snap.Classified != int64(len(want)) || snap.Failed != 0 {
		t.Fatalf("counters %+v", snap)
	}
}

func TestRunContainsSingleFailure(t *testing.T) {
	want := []label.Label{label.B, label.B, label.B, label.A, label.B, label.B}
	s := &scripted{want: want, fail: map[int]bool{3: true}}
	logPath := filepath.Join(t.TempDir(), "run", "classifications.log")
	audit, err := OpenAuditLog(logPath)
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	var counters metrics.Counters
	d := New(s, logging.NewTestLogger(), WithWorkers(4), WithAuditLog(audit), WithCounters(&counters))

	got, err := d.Run(context.Background(), testChunks(len(want)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := audit.Close(); err != nil {
		t.Fatalf("close audit: %v", err)
	}
	for i := range want {
		exp := want[i]
		if i == 3 {
			exp = label.Unknown
		}
		if got[i] != exp {
			t.Fatalf("index %d: got %v want %v", i, got[i], exp)
		}
	}
	if snap := counters.Snapshot(); snap.Failed != 1 || snap.B != 5 {
		t.Fatalf("counters %+v", snap)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(want) {
		t.Fatalf("audit lines %d want %d:\n%s", len(lines), len(want), data)
	}
	lineRE := regexp.MustCompile(`^\d{3}: (A|B|unknown)$`)
	for _, l := range lines {
		if !lineRE.MatchString(l) {
			t.Fatalf("malformed audit line %q", l)
		}
	}
	if !strings.Contains(string(data), "004: unknown\n") {
		t.Fatalf("failed chunk not logged as unknown:\n%s", data)
	}

	f, _ := os.Open(logPath)
	defer f.Close()
	replayed, err := ReadAuditLog(f)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for i := range got {
		if replayed[i] != got[i] {
			t.Fatalf("replay index %d: %v want %v", i, replayed[i], got[i])
		}
	}
}

func TestRunRejectsMalformedChunks(t *testing.T) {
	d := New(&scripted{want: []label.Label{label.A, label.A}}, logging.NewTestLogger())
	chunks := testChunks(2)
	chunks[1].Index = 0
	if _, err := d.Run(context.Background(), chunks); !errors.Is(err, ErrSetup) {
		t.Fatalf("duplicate index: %v", err)
	}
	chunks[1].Index = 5
	if _, err := d.Run(context.Background(), chunks); !errors.Is(err, ErrSetup) {
		t.Fatalf("out of range index: %v", err)
	}
	if _, err := New(nil, logging.NewTestLogger()).Run(context.Background(), testChunks(1)); !errors.Is(err, ErrSetup) {
		t.Fatalf("nil classifier: %v", err)
	}
}

func TestAuditLogConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.log")
	first, err := OpenAuditLog(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := OpenAuditLog(path)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) { defer wg.Done(); _ = first.Append(i, label.A) }(i)
		go func(i int) { defer wg.Done(); _ = second.Append(i, label.B) }(i)
	}
	wg.Wait()
	_ = first.Close()
	_ = second.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 100 {
		t.Fatalf("got %d lines", len(lines))
	}
	for _, l := range lines {
		if len(l) != len("000: A") {
			t.Fatalf("interleaved line %q", l)
		}
	}
}

func TestReadAuditLog(t *testing.T) {
	got, err := ReadAuditLog(strings.NewReader("002: B\n001: A\n004: None\n002: A\n\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []label.Label{label.A, label.A, label.Unknown, label.Unknown}
	if len(got) != len(want) {
		t.Fatalf("len %d", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: %v want %v", i, got[i], want[i])
		}
	}
	for _, bad := range []string{"", "001 A\n", "000: A\n", "001: C\n"} {
		if _, err := ReadAuditLog(strings.NewReader(bad)); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFormatEntry(t *testing.T) {
	if got := FormatEntry(0, label.B); got != "001: B" {
		t.Fatalf("got %q", got)
	}
	if got := FormatEntry(122, label.Unknown); got != "123: unknown" {
		t.Fatalf("got %q", got)
	}
}
