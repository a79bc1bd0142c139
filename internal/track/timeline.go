// Package track decodes WAV recordings into an in-memory timeline, slices it
// into fixed-length chunks and writes chunks back out as WAV files.
package track

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrSourceLoad marks an input that could not be decoded.
var ErrSourceLoad = errors.New("source load failed")

// Timeline is a decoded, read-only recording.
type Timeline struct {
	Source string
	buf    *audio.IntBuffer
}

// NewTimeline wraps already decoded PCM. buf must not be modified afterwards.
func NewTimeline(source string, buf *audio.IntBuffer) (*Timeline, error) {
	if buf == nil || buf.Format == nil {
		return nil, fmt.Errorf("%w: %s: missing PCM format", ErrSourceLoad, source)
	}
	if buf.Format.NumChannels < 1 || buf.Format.SampleRate < 1 {
		return nil, fmt.Errorf("%w: %s: invalid format %d ch @ %d Hz",
			ErrSourceLoad, source, buf.Format.NumChannels, buf.Format.SampleRate)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = 16
	}
	return &Timeline{Source: source, buf: buf}, nil
}

// LoadFile decodes a WAV file from disk.
func LoadFile(path string) (*Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceLoad, err)
	}
	defer f.Close()
	return Load(path, f)
}

// Load decodes a WAV stream. source is only used in messages.
func Load(source string, r io.ReadSeeker) (*Timeline, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrSourceLoad, source)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: read PCM from %s: %v", ErrSourceLoad, source, err)
	}
	if buf.SourceBitDepth == 0 {
		buf.SourceBitDepth = int(dec.BitDepth)
	}
	return NewTimeline(source, buf)
}

// SampleRate returns frames per second.
func (t *Timeline) SampleRate() int { return t.buf.Format.SampleRate }

// Channels returns the number of interleaved channels.
func (t *Timeline) Channels() int { return t.buf.Format.NumChannels }

// BitDepth returns the bit depth of the source samples.
func (t *Timeline) BitDepth() int { return t.buf.SourceBitDepth }

// Frames returns the number of whole sample frames.
func (t *Timeline) Frames() int {
	return len(t.buf.Data) / t.Channels()
}

// Duration returns the total length of the recording.
func (t *Timeline) Duration() time.Duration {
	return FramesToDuration(t.Frames(), t.SampleRate())
}

// slice returns a view over frames [from, to). The view shares storage with
// the timeline.
func (t *Timeline) slice(from, to int) *audio.IntBuffer {
	ch := t.Channels()
	return &audio.IntBuffer{
		Format:         t.buf.Format,
		Data:           t.buf.Data[from*ch : to*ch : to*ch],
		SourceBitDepth: t.buf.SourceBitDepth,
	}
}

// FramesToDuration converts a frame count at rate into a duration.
func FramesToDuration(frames, rate int) time.Duration {
	return time.Duration(int64(frames) * int64(time.Second) / int64(rate))
}

// DurationToFrames converts d into whole frames at rate, rounding down.
func DurationToFrames(d time.Duration, rate int) int {
	return int(int64(d) * int64(rate) / int64(time.Second))
}
