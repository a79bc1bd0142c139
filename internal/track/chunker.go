package track

import (
	"fmt"
	"time"

	"segcut/internal/config"

	"github.com/go-audio/audio"
)

// Chunk is one fixed-length slice of a timeline.
// Payload shares storage with the timeline and must be treated as read-only.
type Chunk struct {
	Index   int           // Zero-based, dense.
	Start   time.Duration // Offset of the first frame.
	End     time.Duration // Offset one past the last frame.
	Payload *audio.IntBuffer
}

// Duration returns the length of this chunk.
func (c Chunk) Duration() time.Duration {
	return c.End - c.Start
}

// Frames returns the number of sample frames in the payload.
func (c Chunk) Frames() int {
	if c.Payload == nil || c.Payload.Format == nil || c.Payload.Format.NumChannels == 0 {
		return 0
	}
	return len(c.Payload.Data) / c.Payload.Format.NumChannels
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %03d: %s-%s", c.Index+1, formatOffset(c.Start), formatOffset(c.End))
}

// Split slices tl into floor(duration/d) chunks of exactly d. The trailing
// remainder shorter than d is dropped.
func Split(tl *Timeline, d time.Duration) ([]Chunk, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: chunk duration must be > 0 (got %v)", config.ErrInvalid, d)
	}
	rate := tl.SampleRate()
	per := DurationToFrames(d, rate)
	if per < 1 {
		return nil, fmt.Errorf("%w: chunk duration %v is shorter than one frame at %d Hz",
			config.ErrInvalid, d, rate)
	}

	n := tl.Frames() / per
	chunks := make([]Chunk, 0, n)
	for i := 0; i < n; i++ {
		from := i * per
		to := from + per
		chunks = append(chunks, Chunk{
			Index:   i,
			Start:   FramesToDuration(from, rate),
			End:     FramesToDuration(to, rate),
			Payload: tl.slice(from, to),
		})
	}
	return chunks, nil
}

func formatOffset(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// Whole returns the entire timeline as one chunk carrying index.
func Whole(tl *Timeline, index int) Chunk {
	return Chunk{
		Index:   index,
		Start:   0,
		End:     tl.Duration(),
		Payload: tl.slice(0, tl.Frames()),
	}
}
