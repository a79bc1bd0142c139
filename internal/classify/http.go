package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"segcut/internal/config"
	"segcut/internal/label"
	"segcut/internal/track"
)

// Response is the JSON body returned by a classification service.
type Response struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// HTTPClassifier posts each chunk to a remote classification service.
type HTTPClassifier struct {
	url     string
	client  *http.Client
	timeout time.Duration
	tempDir string
	mono    bool
	matcher Matcher
}

// NewHTTPClassifier targets cfg.Classify.URL.
func NewHTTPClassifier(cfg *config.Config) (*HTTPClassifier, error) {
	url := strings.TrimRight(strings.TrimSpace(cfg.Classify.URL), "/")
	if url == "" {
		return nil, fmt.Errorf("%w: no classify.url configured", config.ErrInvalid)
	}
	return &HTTPClassifier{
		url:     url,
		client:  &http.Client{},
		timeout: cfg.ClassifyTimeout(),
		tempDir: cfg.Classify.TempDir,
		mono:    cfg.Classify.Mono,
		matcher: NewMatcher(cfg.Classify.Tokens),
	}, nil
}

// Classify uploads the chunk as audio/wav to <url>/classify.
func (h *HTTPClassifier) Classify(ctx context.Context, chunk track.Chunk) (label.Label, error) {
	result := label.Unknown
	err := withArtifact(h.tempDir, h.mono, chunk, func(path string) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		runCtx := ctx
		if h.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, h.timeout)
			defer cancel()
		}
		req, err := http.NewRequestWithContext(runCtx, http.MethodPost, h.url+"/classify", f)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "audio/wav")
		req.Header.Set("X-Segcut-Chunk", strconv.Itoa(chunk.Index))

		resp, err := h.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("classify %s: %s", resp.Status, strings.TrimSpace(string(body)))
		}
		var out Response
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("classify decode: %w", err)
		}
		l, ok := h.matcher.Match(out.Label)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnrecognized, out.Label)
		}
		result = l
		return nil
	})
	if err != nil {
		return label.Unknown, err
	}
	return result, nil
}
