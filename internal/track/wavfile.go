package track

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WriteFile encodes buf as a PCM WAV file at path. A partially written file
// is removed on failure.
func WriteFile(path string, buf *audio.IntBuffer) (err error) {
	if buf == nil || buf.Format == nil {
		return errors.New("write wav: empty buffer")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = 16
	}
	enc := wav.NewEncoder(f, buf.Format.SampleRate, depth, buf.Format.NumChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteTemp writes buf to a new temporary WAV file in dir (os.TempDir when
// empty) and returns its path. The caller owns the file.
func WriteTemp(dir, pattern string, buf *audio.IntBuffer) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if err := WriteFile(path, buf); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// Concat appends the payloads of parts, in order, into a new buffer.
// All parts must share sample rate and channel count.
func Concat(parts ...*audio.IntBuffer) (*audio.IntBuffer, error) {
	if len(parts) == 0 {
		return nil, errors.New("concat: no parts")
	}
	first := parts[0]
	total := 0
	for i, p := range parts {
		if p.Format.SampleRate != first.Format.SampleRate || p.Format.NumChannels != first.Format.NumChannels {
			return nil, fmt.Errorf("concat: part %d format %d ch @ %d Hz differs from %d ch @ %d Hz",
				i, p.Format.NumChannels, p.Format.SampleRate, first.Format.NumChannels, first.Format.SampleRate)
		}
		total += len(p.Data)
	}
	out := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: first.Format.NumChannels, SampleRate: first.Format.SampleRate},
		Data:           make([]int, 0, total),
		SourceBitDepth: first.SourceBitDepth,
	}
	for _, p := range parts {
		out.Data = append(out.Data, p.Data...)
	}
	return out, nil
}

// Mono averages interleaved channels into a single channel. Mono input is
// returned unchanged.
func Mono(buf *audio.IntBuffer) *audio.IntBuffer {
	ch := buf.Format.NumChannels
	if ch <= 1 {
		return buf
	}
	frames := len(buf.Data) / ch
	out := make([]int, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		out[i] = sum / ch
	}
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: buf.Format.SampleRate},
		Data:           out,
		SourceBitDepth: buf.SourceBitDepth,
	}
}

// Duration returns the playback length of buf.
func Duration(buf *audio.IntBuffer) time.Duration {
	if buf == nil || buf.Format == nil || buf.Format.NumChannels == 0 {
		return 0
	}
	return FramesToDuration(len(buf.Data)/buf.Format.NumChannels, buf.Format.SampleRate)
}
