package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/prowscope/pkg/provider"
)

// ErrEmpty indicates the artifact exists but has no content.
var ErrEmpty = errors.New("artifact is empty")

// DecodeError reports an artifact that could not be decoded.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode artifact %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsAbsent reports whether err means the artifact is missing or unreadable.
// Public buckets answer 403 rather than 404 for keys they do not hold, and
// an empty object counts as missing.
func IsAbsent(err error) bool {
	return provider.IsNotFound(err) || provider.IsAccessDenied(err) || errors.Is(err, ErrEmpty)
}

// Validator checks a raw document before it is decoded.
type Validator interface {
	Validate(data []byte) error
}

// IsDecodeError reports whether err is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Store reads artifacts through a provider, pacing requests with a token
// bucket limiter.
type Store struct {
	provider provider.Provider
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLimiter paces object reads. A nil limiter disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Store) { s.limiter = l }
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a Store reading from p.
func NewStore(p provider.Provider, opts ...Option) *Store {
	s := &Store{provider: p, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get downloads an artifact. Missing objects return an error wrapping
// provider.ErrNotFound, zero-length objects return ErrEmpty.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for artifact read slot: %w", err)
		}
	}

	body, _, err := s.provider.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrEmpty)
	}

	s.logger.Debug("Fetched artifact", zap.String("key", key), zap.Int("bytes", len(data)))
	return data, nil
}

// GetJSON downloads an artifact, checks it against schema when one is given
// and decodes it into v. Validation and decoding failures return a
// *DecodeError.
func (s *Store) GetJSON(ctx context.Context, key string, schema Validator, v any) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if schema != nil {
		if err := schema.Validate(data); err != nil {
			return &DecodeError{Key: key, Err: err}
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &DecodeError{Key: key, Err: err}
	}
	return nil
}
