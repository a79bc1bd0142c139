package track

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"segcut/internal/config"

	"github.com/go-audio/audio"
)

func testBuffer(rate, channels, frames int) *audio.IntBuffer {
	data := make([]int, frames*channels)
	for i := range data {
		data[i] = (i % 2000) - 1000
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
}

func testTimeline(t *testing.T, rate, channels, frames int) *Timeline {
	t.Helper()
	tl, err := NewTimeline("test.wav", testBuffer(rate, channels, frames))
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	return tl
}

// configured returns the chunk length as read from a config file.
func configured(sec float64) time.Duration {
	var cfg config.Config
	cfg.Chunk.DurationSec = sec
	return cfg.ChunkDuration()
}

func TestSplitFractionalConfiguredLength(t *testing.T) {
	tl := testTimeline(t, 44100, 1, 44100*10)
	chunks, err := Split(tl, configured(2.01))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks want 4", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Frames() != 88641 {
			t.Fatalf("chunk %d has %d frames want 88641", i, ch.Frames())
		}
		if want := time.Duration(i) * 2010 * time.Millisecond; ch.Start != want {
			t.Fatalf("chunk %d starts at %v want %v", i, ch.Start, want)
		}
	}
}

func TestSplitCountsAndCoverage(t *testing.T) {
	cases := []struct {
		rate, channels, frames int
		d                      time.Duration
		want                   int
	}{
		{1000, 1, 10500, time.Second, 10},
		{1000, 2, 10000, time.Second, 10},
		{8000, 1, 7999, time.Second, 0},
		{8000, 1, 8000 * 35, 10 * time.Second, 3},
		{100, 1, 1000, 250 * time.Millisecond, 40},
		{44100, 1, 44100 * 7, configured(2.01), 3},
		{44100, 2, 44100 * 5, configured(2.03), 2},
	}
	for _, c := range cases {
		tl := testTimeline(t, c.rate, c.channels, c.frames)
		chunks, err := Split(tl, c.d)
		if err != nil {
			t.Fatalf("split: %v", err)
		}
		if len(chunks) != c.want {
			t.Fatalf("frames=%d d=%v: got %d chunks want %d", c.frames, c.d, len(chunks), c.want)
		}
		if want := int(tl.Duration() / c.d); len(chunks) != want {
			t.Fatalf("chunk count %d != floor(T/d) %d", len(chunks), want)
		}
		var prevEnd time.Duration
		for i, ch := range chunks {
			if ch.Index != i {
				t.Fatalf("index %d at position %d", ch.Index, i)
			}
			if ch.Start != prevEnd {
				t.Fatalf("chunk %d starts at %v, previous ended at %v", i, ch.Start, prevEnd)
			}
			if ch.Duration() != c.d {
				t.Fatalf("chunk %d duration %v want %v", i, ch.Duration(), c.d)
			}
			if ch.Frames()*c.channels != len(ch.Payload.Data) {
				t.Fatalf("chunk %d payload length mismatch", i)
			}
			prevEnd = ch.End
		}
		if prevEnd != time.Duration(c.want)*c.d {
			t.Fatalf("coverage ends at %v want %v", prevEnd, time.Duration(c.want)*c.d)
		}
	}
}

func TestSplitPayloadMatchesTimeline(t *testing.T) {
	tl := testTimeline(t, 10, 2, 35)
	chunks, err := Split(tl, time.Second)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	second := chunks[1].Payload.Data
	for i, v := range second {
		if want := tl.buf.Data[20+i]; v != want {
			t.Fatalf("sample %d = %d want %d", i, v, want)
		}
	}
}

func TestSplitRejectsInvalidDuration(t *testing.T) {
	tl := testTimeline(t, 1000, 1, 1000)
	for _, d := range []time.Duration{0, -time.Second, time.Microsecond} {
		if _, err := Split(tl, d); !errors.Is(err, config.ErrInvalid) {
			t.Fatalf("Split(%v) err = %v, want ErrInvalid", d, err)
		}
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.wav")
	buf := testBuffer(8000, 1, 8000*3)
	if err := WriteFile(path, buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	tl, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tl.SampleRate() != 8000 || tl.Channels() != 1 || tl.BitDepth() != 16 {
		t.Fatalf("format mismatch: %d Hz %d ch %d bit", tl.SampleRate(), tl.Channels(), tl.BitDepth())
	}
	if tl.Duration() != 3*time.Second {
		t.Fatalf("duration %v", tl.Duration())
	}
	for i := range buf.Data {
		if tl.buf.Data[i] != buf.Data[i] {
			t.Fatalf("sample %d = %d want %d", i, tl.buf.Data[i], buf.Data[i])
		}
	}
}

func TestLoadFileFailures(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(filepath.Join(dir, "missing.wav")); !errors.Is(err, ErrSourceLoad) {
		t.Fatalf("missing file: %v", err)
	}
	bad := filepath.Join(dir, "bad.wav")
	if err := os.WriteFile(bad, []byte("definitely not riff data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); !errors.Is(err, ErrSourceLoad) {
		t.Fatalf("garbage file: %v", err)
	}
}

func TestWriteTempIsOwnedByCaller(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteTemp(dir, "chunk-*.wav", testBuffer(1000, 1, 100))
	if err != nil {
		t.Fatalf("write temp: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "chunk-") {
		t.Fatalf("unexpected name %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("temp file missing: %v", err)
	}
}

func TestConcatAndMono(t *testing.T) {
	a := testBuffer(1000, 2, 10)
	b := testBuffer(1000, 2, 5)
	out, err := Concat(a, b)
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if len(out.Data) != 30 {
		t.Fatalf("concat length %d", len(out.Data))
	}
	if Duration(out) != 15*time.Millisecond {
		t.Fatalf("concat duration %v", Duration(out))
	}
	out.Data[0] = 12345
	if a.Data[0] == 12345 {
		t.Fatalf("concat must copy")
	}
	if _, err := Concat(a, testBuffer(2000, 2, 5)); err == nil {
		t.Fatalf("expected format mismatch error")
	}

	stereo := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 2, SampleRate: 1000},
		Data:   []int{10, 20, -4, 4},
	}
	m := Mono(stereo)
	if m.Format.NumChannels != 1 || len(m.Data) != 2 || m.Data[0] != 15 || m.Data[1] != 0 {
		t.Fatalf("mono = %+v", m.Data)
	}
}
