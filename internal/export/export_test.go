package export

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"segcut/internal/label"
	"segcut/internal/logging"
	"segcut/internal/track"

	"github.com/go-audio/audio"
)

const framesPerChunk = 10

// testChunks builds n chunks whose samples all equal the chunk index + 1.
func testChunks(t *testing.T, n int) []track.Chunk {
	t.Helper()
	data := make([]int, n*framesPerChunk)
	for i := range data {
		data[i] = i/framesPerChunk + 1
	}
	buf := &audio.IntBuffer{Format: &audio.Format{NumChannels: 1, SampleRate: 100}, Data: data, SourceBitDepth: 16}
	tl, err := track.NewTimeline("mem.wav", buf)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	chunks, err := track.Split(tl, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	return chunks
}

func labels(s string) []label.Label {
	out := make([]label.Label, 0, len(s))
	for _, r := range s {
		switch r {
		case 'A':
			out = append(out, label.A)
		case 'B':
			out = append(out, label.B)
		default:
			out = append(out, label.Unknown)
		}
	}
	return out
}

func wavFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".wav") {
			rel, _ := filepath.Rel(root, path)
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return out
}

func TestExportCombinesDesiredInOrder(t *testing.T) {
	runDir := t.TempDir()
	chunks := testChunks(t, 7)
	corrected := labels("BAB?BBA")

	e, err := New(runDir, label.B, logging.NewTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Export(chunks, corrected)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Empty() {
		t.Fatalf("expected a combined track")
	}
	wantIdx := []int{0, 2, 4, 5}
	if len(res.Desired) != len(wantIdx) {
		t.Fatalf("desired %v want %v", res.Desired, wantIdx)
	}
	var wantDur time.Duration
	for i, idx := range wantIdx {
		if res.Desired[i] != idx {
			t.Fatalf("desired %v want %v", res.Desired, wantIdx)
		}
		wantDur += chunks[idx].Duration()
	}
	if res.Duration() != wantDur {
		t.Fatalf("combined duration %v want %v", res.Duration(), wantDur)
	}
	// Samples carry their chunk number, so order is visible in the data.
	prev := 0
	for i, v := range res.Combined.Data {
		if v < prev {
			t.Fatalf("sample %d: chunk %d after %d", i, v, prev)
		}
		if corrected[v-1] != label.B {
			t.Fatalf("sample %d comes from non-desired chunk %d", i, v-1)
		}
		prev = v
	}
	if res.Counts[label.B] != 4 || res.Counts[label.A] != 2 || res.Counts[label.Unknown] != 1 {
		t.Fatalf("counts %v", res.Counts)
	}
}

func TestExportWritesEveryChunkOnceUnderCorrectedLabel(t *testing.T) {
	runDir := t.TempDir()
	chunks := testChunks(t, 5)
	corrected := labels("AAB?A")

	e, err := New(runDir, label.A, logging.NewTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Export(chunks, corrected)
	if err != nil {
		t.Fatal(err)
	}
	got := wavFiles(t, runDir)
	want := []string{
		"A/chunk_0_A.wav",
		"A/chunk_1_A.wav",
		"A/chunk_4_A.wav",
		"B/chunk_2_B.wav",
		"unknown/chunk_3_unknown.wav",
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("files %v want %v", got, want)
	}
	if len(res.Files) != len(chunks) || len(res.Failures) != 0 {
		t.Fatalf("files %d failures %v", len(res.Files), res.Failures)
	}
	tl, err := track.LoadFile(filepath.Join(runDir, "B", "chunk_2_B.wav"))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if tl.Frames() != framesPerChunk {
		t.Fatalf("frames %d", tl.Frames())
	}
}

func TestExportContinuesAfterChunkFailure(t *testing.T) {
	runDir := t.TempDir()
	// A regular file where the B directory should go makes every B write fail.
	if err := os.WriteFile(filepath.Join(runDir, "B"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	chunks := testChunks(t, 4)
	corrected := labels("ABAB")

	e, err := New(runDir, label.B, logging.NewTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Export(chunks, corrected)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failures) != 2 {
		t.Fatalf("failures %v", res.Failures)
	}
	for _, f := range res.Failures {
		if !errors.Is(f, ErrExport) {
			t.Fatalf("failure does not wrap ErrExport: %v", f)
		}
	}
	if got := wavFiles(t, runDir); len(got) != 2 {
		t.Fatalf("A chunks should still be written: %v", got)
	}
	if res.Empty() || len(res.Desired) != 2 {
		t.Fatalf("combined track should hold the B chunks: %+v", res)
	}
}

func TestExportEmptyResult(t *testing.T) {
	runDir := t.TempDir()
	e, err := New(runDir, label.B, logging.NewTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Export(testChunks(t, 3), labels("A?A"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Empty() || res.Duration() != 0 {
		t.Fatalf("expected empty result")
	}
	out := filepath.Join(t.TempDir(), "in_cut.wav")
	wrote, err := e.WriteCombined(out, res)
	if err != nil || wrote {
		t.Fatalf("WriteCombined = %v, %v", wrote, err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("combined file should not exist")
	}
}

func TestWriteCombined(t *testing.T) {
	e, err := New(t.TempDir(), label.A, logging.NewTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Export(testChunks(t, 4), labels("AABA"))
	if err != nil {
		t.Fatal(err)
	}
	out := CombinedPath(filepath.Join(t.TempDir(), "talk.wav"))
	wrote, err := e.WriteCombined(out, res)
	if err != nil || !wrote {
		t.Fatalf("WriteCombined = %v, %v", wrote, err)
	}
	tl, err := track.LoadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if tl.Frames() != 3*framesPerChunk {
		t.Fatalf("combined frames %d", tl.Frames())
	}
}

func TestExportLengthMismatch(t *testing.T) {
	e, err := New(t.TempDir(), label.A, logging.NewTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Export(testChunks(t, 3), labels("AA")); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestNewRejectsUnknownDesired(t *testing.T) {
	if _, err := New(t.TempDir(), label.Unknown, logging.NewTestLogger()); err == nil {
		t.Fatalf("expected error for unknown desired category")
	}
}

func TestCombinedPath(t *testing.T) {
	cases := map[string]string{
		"/data/show.wav":     "/data/show_cut.wav",
		"rec.2024.WAV":       "rec.2024_cut.WAV",
		"noext":              "noext_cut.wav",
		"dir.d/episode1.wav": "dir.d/episode1_cut.wav",
	}
	for in, want := range cases {
		if got := CombinedPath(in); got != want {
			t.Fatalf("CombinedPath(%q) = %q want %q", in, got, want)
		}
	}
}

func TestRunDirCollision(t *testing.T) {
	root := filepath.Join(t.TempDir(), "export")
	now := time.Date(2024, 3, 7, 9, 5, 0, 0, time.Local)
	first, err := RunDir(root, now)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(first) != "07-0905" {
		t.Fatalf("run dir %q", first)
	}
	second, err := RunDir(root, now)
	if err != nil {
		t.Fatal(err)
	}
	if second == first || !strings.HasPrefix(filepath.Base(second), "07-0905-") {
		t.Fatalf("second run dir %q", second)
	}
	for _, d := range []string{first, second} {
		if st, err := os.Stat(d); err != nil || !st.IsDir() {
			t.Fatalf("%s not created: %v", d, err)
		}
	}
}
