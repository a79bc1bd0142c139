//go:build webrtcvad

package classify

import (
	"context"
	"fmt"

	"segcut/internal/config"
	"segcut/internal/label"
	"segcut/internal/track"

	vad "github.com/maxhawkins/go-webrtcvad"
)

const vadRate = 16000

// vadClassifier labels a chunk by the share of WebRTC VAD frames that carry
// voice.
type vadClassifier struct {
	mode        int
	frameMS     int
	speechRatio float64
	speech      label.Label
	other       label.Label
}

func newVADClassifier(cfg *config.Config) (Classifier, error) {
	if cfg.VAD.FrameMS != 10 && cfg.VAD.FrameMS != 20 && cfg.VAD.FrameMS != 30 {
		return nil, fmt.Errorf("%w: vad.frame_ms must be 10, 20, or 30 (got %d)", config.ErrInvalid, cfg.VAD.FrameMS)
	}
	speech, err := label.MustCategory(cfg.VAD.Speech)
	if err != nil {
		return nil, fmt.Errorf("%w: vad.speech: %v", config.ErrInvalid, err)
	}
	other, _ := speech.Other()
	return &vadClassifier{
		mode:        cfg.VAD.Aggressiveness,
		frameMS:     cfg.VAD.FrameMS,
		speechRatio: cfg.VAD.SpeechRatio,
		speech:      speech,
		other:       other,
	}, nil
}

func (v *vadClassifier) Classify(ctx context.Context, chunk track.Chunk) (label.Label, error) {
	// A detector per call: webrtc VAD state is not safe for concurrent use.
	det, err := vad.New()
	if err != nil {
		return label.Unknown, fmt.Errorf("vad init: %w", err)
	}
	if err := det.SetMode(v.mode); err != nil {
		return label.Unknown, fmt.Errorf("vad mode: %w", err)
	}

	mono := track.Mono(chunk.Payload)
	samples := resampleLinear(float32Samples(mono), mono.Format.SampleRate, vadRate)
	pcm := pcm16LE(samples)
	frameBytes := vadRate * v.frameMS / 1000 * 2
	if ok := det.ValidRateAndFrameLength(vadRate, frameBytes); !ok {
		return label.Unknown, fmt.Errorf("invalid frame_ms %d for sample_rate %d", v.frameMS, vadRate)
	}

	var voiced, total int
	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		if err := ctx.Err(); err != nil {
			return label.Unknown, err
		}
		active, err := det.Process(vadRate, pcm[off:off+frameBytes])
		if err != nil {
			return label.Unknown, fmt.Errorf("vad process: %w", err)
		}
		total++
		if active {
			voiced++
		}
	}
	if total == 0 {
		return label.Unknown, fmt.Errorf("chunk shorter than one %dms frame", v.frameMS)
	}
	if float64(voiced)/float64(total) >= v.speechRatio {
		return v.speech, nil
	}
	return v.other, nil
}
