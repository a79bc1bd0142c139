//go:build whisper

package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"segcut/internal/config"
	"segcut/internal/label"
	"segcut/internal/track"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"
)

const whisperRate = 16000

// whisperClassifier transcribes each chunk and labels it by whether it holds
// enough recognized text to count as speech.
type whisperClassifier struct {
	mu       sync.Mutex
	model    whisper.Model
	language string
	minChars int
	speech   label.Label
	other    label.Label
	logger   *logrus.Logger
}

func newWhisperClassifier(cfg *config.Config, logger *logrus.Logger) (Classifier, error) {
	speech, err := label.MustCategory(cfg.Whisper.Speech)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper.speech: %v", config.ErrInvalid, err)
	}
	other, _ := speech.Other()
	model, err := whisper.New(cfg.Whisper.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &whisperClassifier{
		model:    model,
		language: strings.TrimSpace(cfg.Whisper.Language),
		minChars: cfg.Whisper.MinChars,
		speech:   speech,
		other:    other,
		logger:   logger,
	}, nil
}

func (w *whisperClassifier) Classify(ctx context.Context, chunk track.Chunk) (label.Label, error) {
	mono := track.Mono(chunk.Payload)
	samples := resampleLinear(float32Samples(mono), mono.Format.SampleRate, whisperRate)

	// whisper.cpp contexts share the model; serialize inference.
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return label.Unknown, err
	}
	wctx, err := w.model.NewContext()
	if err != nil {
		return label.Unknown, err
	}
	wctx.SetThreads(uint(runtime.NumCPU()))
	if w.language != "" {
		if err := wctx.SetLanguage(w.language); err != nil && w.logger != nil {
			w.logger.Warnf("set language: %v", err)
		}
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return label.Unknown, err
	}
	var b strings.Builder
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return label.Unknown, err
		}
		b.WriteString(seg.Text)
	}
	text := strings.TrimSpace(b.String())
	if w.logger != nil {
		w.logger.WithField("chunk", chunk.Index+1).Debugf("transcript: %q", text)
	}
	if len([]rune(text)) >= w.minChars {
		return w.speech, nil
	}
	return w.other, nil
}

func (w *whisperClassifier) Close() error {
	return w.model.Close()
}
