package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"lexportal-backend/pkg/logger"
)

var (
	// ErrObjectNotFound is returned when the document key does not exist
	ErrObjectNotFound = errors.New("object not found")
	// ErrCircuitOpen is returned while the breaker rejects calls
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrNotText is returned when a document is not valid UTF-8 text
	ErrNotText = errors.New("document is not UTF-8 text")
)

// DefaultMaxDocumentBytes caps how much of a document is fed to the assistant
const DefaultMaxDocumentBytes = 256 * 1024

// DocumentReader reads case documents as text
type DocumentReader interface {
	ReadText(ctx context.Context, objectKey string) (string, error)
}

// MinioConfig holds MinIO connection settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	MaxBytes  int64
}

// MinioDocuments reads case documents from a MinIO bucket
type MinioDocuments struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	breaker  *CircuitBreaker
	timeout  time.Duration
}

// NewMinioDocuments creates the MinIO client. The bucket is not created: case
// documents are uploaded by the document service.
func NewMinioDocuments(cfg MinioConfig) (*MinioDocuments, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDocumentBytes
	}

	return &MinioDocuments{
		client:   client,
		bucket:   cfg.Bucket,
		maxBytes: maxBytes,
		breaker:  NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		timeout:  10 * time.Second,
	}, nil
}

// ReadText downloads objectKey and returns at most maxBytes of it as text
func (d *MinioDocuments) ReadText(ctx context.Context, objectKey string) (string, error) {
	if err := d.breaker.Allow(); err != nil {
		return "", err
	}

	readCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	text, err := d.readText(readCtx, objectKey)
	switch {
	case err == nil, errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrNotText):
		// Client-side problems do not count against the backend
		d.breaker.OnSuccess()
	default:
		d.breaker.OnFailure()
	}
	return text, err
}

func (d *MinioDocuments) readText(ctx context.Context, objectKey string) (string, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("download failed: %w", err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("stat failed: %w", err)
	}

	data, err := io.ReadAll(io.LimitReader(obj, d.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read failed: %w", err)
	}

	return decodeText(data, int64(len(data)) == d.maxBytes)
}

// decodeText validates data as UTF-8. When the size cap truncated the object
// the last rune may be cut, so up to UTFMax-1 trailing bytes are dropped.
func decodeText(data []byte, truncated bool) (string, error) {
	for i := 1; truncated && i < utf8.UTFMax && len(data) > 0 && !utf8.Valid(data); i++ {
		data = data[:len(data)-1]
	}
	if !utf8.Valid(data) {
		return "", ErrNotText
	}
	return string(data), nil
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// DefaultCircuitBreakerConfig returns default circuit breaker settings
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	}
}

// CircuitBreaker stops calling the object store after repeated failures.
// Once ResetTimeout has elapsed it goes half-open and admits one trial call;
// that call's outcome closes or re-opens it.
type CircuitBreaker struct {
	mu          sync.Mutex
	config      CircuitBreakerConfig
	failures    int
	open        bool
	halfOpen    bool
	lastFailure time.Time
	now         func() time.Time
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{config: config, now: time.Now}
}

// Allow returns ErrCircuitOpen while the breaker is open or a trial call is
// already in flight
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.halfOpen || b.now().Sub(b.lastFailure) < b.config.ResetTimeout {
		return ErrCircuitOpen
	}
	b.halfOpen = true
	return nil
}

// OnSuccess closes the breaker
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		logger.Info("MinIO circuit breaker closed")
	}
	b.failures = 0
	b.open = false
	b.halfOpen = false
}

// OnFailure records a failure and opens the breaker at the threshold
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()
	if b.halfOpen {
		// The trial call failed; wait another ResetTimeout
		b.halfOpen = false
		return
	}
	if !b.open && b.failures >= b.config.MaxFailures {
		b.open = true
		logger.Warn("MinIO circuit breaker opened", zap.Int("failures", b.failures))
	}
}
