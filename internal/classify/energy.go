package classify

import (
	"context"
	"fmt"
	"math"

	"segcut/internal/config"
	"segcut/internal/label"
	"segcut/internal/track"
)

// EnergyClassifier labels chunks by RMS level: at or above the threshold a
// chunk gets the loud category, below it the other one.
type EnergyClassifier struct {
	thresholdDB float64
	loud        label.Label
	quiet       label.Label
}

// NewEnergyClassifier reads the [energy] section.
func NewEnergyClassifier(cfg *config.Config) (*EnergyClassifier, error) {
	loud, err := label.MustCategory(cfg.Energy.Loud)
	if err != nil {
		return nil, fmt.Errorf("%w: energy.loud: %v", config.ErrInvalid, err)
	}
	quiet, _ := loud.Other()
	return &EnergyClassifier{thresholdDB: cfg.Energy.ThresholdDB, loud: loud, quiet: quiet}, nil
}

func (e *EnergyClassifier) Classify(ctx context.Context, chunk track.Chunk) (label.Label, error) {
	if err := ctx.Err(); err != nil {
		return label.Unknown, err
	}
	if chunk.Payload == nil || len(chunk.Payload.Data) == 0 {
		return label.Unknown, fmt.Errorf("empty payload")
	}
	if LevelDBFS(chunk.Payload.Data, chunk.Payload.SourceBitDepth) >= e.thresholdDB {
		return e.loud, nil
	}
	return e.quiet, nil
}

// LevelDBFS returns the RMS level of samples relative to full scale at the
// given bit depth. Digital silence is -Inf.
func LevelDBFS(samples []int, bitDepth int) float64 {
	if len(samples) == 0 {
		return math.Inf(-1)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := math.Exp2(float64(bitDepth - 1))
	var sum float64
	for _, s := range samples {
		v := float64(s) / full
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}
