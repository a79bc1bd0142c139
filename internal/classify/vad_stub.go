//go:build !webrtcvad

package classify

import (
	"fmt"

	"segcut/internal/config"
)

func newVADClassifier(_ *config.Config) (Classifier, error) {
	return nil, fmt.Errorf("%w: build with '-tags webrtcvad' to enable the vad backend", ErrUnavailable)
}
