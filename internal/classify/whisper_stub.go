//go:build !whisper

package classify

import (
	"fmt"

	"segcut/internal/config"

	"github.com/sirupsen/logrus"
)

func newWhisperClassifier(_ *config.Config, _ *logrus.Logger) (Classifier, error) {
	return nil, fmt.Errorf("%w: build with '-tags whisper' to enable the whisper backend", ErrUnavailable)
}
