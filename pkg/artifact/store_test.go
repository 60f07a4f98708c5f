package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/3leaps/prowscope/internal/docschema"
	"github.com/3leaps/prowscope/pkg/provider"
	"github.com/3leaps/prowscope/pkg/provider/file"
)

func newFileStore(t *testing.T, files map[string]string) *Store {
	t.Helper()
	base := t.TempDir()
	for key, content := range files {
		full := filepath.Join(base, filepath.FromSlash(key))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	p, err := file.New(file.Config{BaseDir: base})
	require.NoError(t, err)
	return NewStore(p, WithLimiter(rate.NewLimiter(rate.Inf, 1)))
}

func TestStore_GetJSON(t *testing.T) {
	s := newFileStore(t, map[string]string{
		"ok.json":    `{"provider":"aws"}`,
		"empty.json": "",
		"bad.json":   "{not json",
	})
	ctx := context.Background()

	var doc struct {
		Provider string `json:"provider"`
	}
	require.NoError(t, s.GetJSON(ctx, "ok.json", nil, &doc))
	assert.Equal(t, "aws", doc.Provider)

	err := s.GetJSON(ctx, "missing.json", nil, &doc)
	assert.True(t, IsAbsent(err))
	assert.True(t, provider.IsNotFound(err))

	err = s.GetJSON(ctx, "empty.json", nil, &doc)
	assert.True(t, IsAbsent(err))
	assert.ErrorIs(t, err, ErrEmpty)

	err = s.GetJSON(ctx, "bad.json", nil, &doc)
	assert.False(t, IsAbsent(err))
	assert.True(t, IsDecodeError(err))
	assert.Contains(t, err.Error(), "bad.json")
}

func TestStore_GetJSON_Schema(t *testing.T) {
	s := newFileStore(t, map[string]string{
		"aws.json":     `{"imageId":"ami-1","instanceId":"i-1","region":"us-east-1"}`,
		"partial.json": `{"imageId":"ami-1"}`,
	})
	ctx := context.Background()

	var doc struct {
		Region string `json:"region"`
	}
	require.NoError(t, s.GetJSON(ctx, "aws.json", docschema.AWSMetadata, &doc))
	assert.Equal(t, "us-east-1", doc.Region)

	err := s.GetJSON(ctx, "partial.json", docschema.AWSMetadata, &doc)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, docschema.ErrInvalidDocument)
	assert.False(t, IsAbsent(err))
}

// deniedProvider answers every read the way a public bucket answers a key it
// does not hold.
type deniedProvider struct{}

var errDenied = &provider.ProviderError{Op: "GetObject", Provider: provider.ProviderS3, Key: "k", Err: provider.ErrAccessDenied}

func (deniedProvider) Head(context.Context, string) (*provider.ObjectMeta, error) {
	return nil, errDenied
}

func (deniedProvider) GetObject(context.Context, string) (io.ReadCloser, int64, error) {
	return nil, 0, errDenied
}

func (deniedProvider) Close() error { return nil }

func TestIsAbsent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "not found", err: &provider.ProviderError{Op: "GetObject", Err: provider.ErrNotFound}, want: true},
		{name: "access denied", err: &provider.ProviderError{Op: "GetObject", Err: provider.ErrAccessDenied}, want: true},
		{name: "empty", err: ErrEmpty, want: true},
		{name: "throttled", err: &provider.ProviderError{Op: "GetObject", Err: provider.ErrThrottled}, want: false},
		{name: "decode", err: &DecodeError{Key: "k", Err: errors.New("bad")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAbsent(tt.err))
		})
	}
}

func TestStore_GetJSON_AccessDenied(t *testing.T) {
	s := NewStore(deniedProvider{})
	var doc map[string]any
	err := s.GetJSON(context.Background(), "logs/job/1/cir.json", nil, &doc)
	require.Error(t, err)
	assert.True(t, IsAbsent(err))
	assert.False(t, IsDecodeError(err))
}

func TestStore_LimiterHonorsContext(t *testing.T) {
	s := newFileStore(t, map[string]string{"ok.json": "{}"})
	s.limiter = rate.NewLimiter(rate.Limit(0.001), 1)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := s.Get(ctx, "ok.json")
	require.NoError(t, err)

	cancel()
	_, err = s.Get(ctx, "ok.json")
	assert.Error(t, err)
}
