// Package sender implements the HTTP batch sender with retry logic.
// It encodes metric batches as JSON or CBOR, compresses them with gzip, and
// POSTs them to the ingestion endpoint with exponential backoff on failure.
// Batches that still fail after the last retry are dropped.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/Guliveer/novamon/internal/config"
	"github.com/Guliveer/novamon/internal/models"
)

const (
	// maxRetries is the maximum number of retry attempts before a batch is dropped.
	maxRetries = 3

	// baseRetryDelay is the base delay for exponential backoff between retries.
	baseRetryDelay = 2 * time.Second

	// requestTimeout is the HTTP request timeout for each send attempt.
	requestTimeout = 10 * time.Second

	ingestPath = "/api/ingest"
)

// ErrDropped is returned when a batch could not be delivered and was discarded.
var ErrDropped = errors.New("batch dropped")

// Sender handles batch transmission of metrics to the ingest endpoint.
type Sender struct {
	client     *http.Client
	cfg        config.ServerConfig
	logger     *zap.Logger
	encode     func(interface{}) ([]byte, error)
	mediaType  string
	retryDelay time.Duration
}

// New creates a new Sender for the configured server and encoding.
func New(cfg config.ServerConfig, logger *zap.Logger) (*Sender, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{
		client:     &http.Client{Timeout: requestTimeout},
		cfg:        cfg,
		logger:     logger,
		retryDelay: baseRetryDelay,
	}

	switch cfg.Encoding {
	case config.EncodingJSON, "":
		s.encode = json.Marshal
		s.mediaType = "application/json"
	case config.EncodingCBOR:
		em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
		if err != nil {
			return nil, fmt.Errorf("cbor encoder: %w", err)
		}
		s.encode = em.Marshal
		s.mediaType = "application/cbor"
	default:
		return nil, fmt.Errorf("unknown encoding %q", cfg.Encoding)
	}

	return s, nil
}

// Send encodes and posts a batch, retrying transient failures. It returns
// ErrDropped (wrapping the last failure) when the batch was discarded.
func (s *Sender) Send(ctx context.Context, metrics []models.MetricSnapshot) error {
	body, err := s.compress(models.MetricBatch{
		MachineToken: s.cfg.MachineToken,
		Metrics:      metrics,
	})
	if err != nil {
		s.logger.Error("Failed to prepare batch", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDropped, err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay << (attempt - 1)
			s.logger.Warn("Retrying send",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				s.logger.Warn("Send cancelled, dropping batch", zap.Int("metrics", len(metrics)))
				return fmt.Errorf("%w: %v", ErrDropped, ctx.Err())
			}
		}

		lastErr = s.doSend(ctx, body)
		if lastErr == nil {
			s.logger.Debug("Batch sent successfully", zap.Int("metrics", len(metrics)))
			return nil
		}

		if isRateLimited(lastErr) {
			s.logger.Warn("Rate limited by server, dropping batch", zap.Error(lastErr))
			return fmt.Errorf("%w: %v", ErrDropped, lastErr)
		}

		s.logger.Warn("Send failed",
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
	}

	s.logger.Error("All retries exhausted, dropping batch", zap.Int("metrics", len(metrics)))
	return fmt.Errorf("%w: %v", ErrDropped, lastErr)
}

func (s *Sender) compress(batch models.MetricBatch) ([]byte, error) {
	data, err := s.encode(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(data); err != nil {
		return nil, fmt.Errorf("compress batch: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finalize gzip: %w", err)
	}
	return compressed.Bytes(), nil
}

// doSend performs a single HTTP POST to the ingest endpoint.
func (s *Sender) doSend(ctx context.Context, body []byte) error {
	url := strings.TrimRight(s.cfg.URL, "/") + ingestPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", s.mediaType)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Authorization", "Bearer "+s.cfg.MachineToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{statusCode: resp.StatusCode}
	}

	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// rateLimitError indicates the server returned HTTP 429.
type rateLimitError struct {
	statusCode int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%d)", e.statusCode)
}

func isRateLimited(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}
