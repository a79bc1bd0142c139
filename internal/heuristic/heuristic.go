// Package heuristic suppresses short, likely spurious label runs inside
// otherwise stable regions of a prediction sequence.
package heuristic

import (
	"errors"
	"fmt"

	"segcut/internal/label"
)

// ErrEmpty is returned for an empty prediction sequence.
var ErrEmpty = errors.New("empty prediction sequence")

// Defaults for Options.
const (
	DefaultMinSurroundChunks = 3
	DefaultMaxFlipLength     = 2
)

// Options bound which runs may be flipped.
type Options struct {
	MinSurroundChunks int // neighbours must be at least this long
	MaxFlipLength     int // runs longer than this are never flipped
}

// DefaultOptions returns min_surround_chunks=3, max_flip_length=2.
func DefaultOptions() Options {
	return Options{MinSurroundChunks: DefaultMinSurroundChunks, MaxFlipLength: DefaultMaxFlipLength}
}

// Segment is a maximal run of equal labels over indices [Start, End).
type Segment struct {
	Label label.Label `json:"label"`
	Start int         `json:"start"`
	End   int         `json:"end"`
}

// Len returns the number of chunks in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// String renders the segment with 1-based, inclusive chunk numbers.
func (s Segment) String() string {
	return fmt.Sprintf("%s[%d-%d]", s.Label, s.Start+1, s.End)
}

// Flip records one corrected segment.
type Flip struct {
	Segment Segment     `json:"segment"`
	To      label.Label `json:"to"`
}

// Segments partitions labels into maximal runs, in order.
func Segments(labels []label.Label) []Segment {
	if len(labels) == 0 {
		return nil
	}
	segs := make([]Segment, 0, 8)
	cur := Segment{Label: labels[0], Start: 0}
	for i := 1; i < len(labels); i++ {
		if labels[i] != cur.Label {
			cur.End = i
			segs = append(segs, cur)
			cur = Segment{Label: labels[i], Start: i}
		}
	}
	cur.End = len(labels)
	return append(segs, cur)
}

// Correct flips every interior segment that is at most MaxFlipLength long,
// differs from both neighbours, and whose neighbours are each at least
// MinSurroundChunks long. Decisions are taken against the original
// segmentation in one pass. Unknown segments are never flipped. The input is
// not modified.
func Correct(labels []label.Label, opts Options) ([]label.Label, []Flip, error) {
	if len(labels) == 0 {
		return nil, nil, ErrEmpty
	}
	segs := Segments(labels)
	out := make([]label.Label, len(labels))
	copy(out, labels)

	var flips []Flip
	for i := 1; i < len(segs)-1; i++ {
		seg, prev, next := segs[i], segs[i-1], segs[i+1]
		if seg.Len() > opts.MaxFlipLength {
			continue
		}
		if prev.Label == seg.Label || next.Label == seg.Label {
			continue
		}
		if prev.Len() < opts.MinSurroundChunks || next.Len() < opts.MinSurroundChunks {
			continue
		}
		to, ok := seg.Label.Other()
		if !ok {
			continue
		}
		for j := seg.Start; j < seg.End; j++ {
			out[j] = to
		}
		flips = append(flips, Flip{Segment: seg, To: to})
	}
	return out, flips, nil
}
