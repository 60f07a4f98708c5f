package file

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/prowscope/pkg/provider"
)

func writeFile(t *testing.T, base, key, content string) {
	t.Helper()
	full := filepath.Join(base, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{BaseDir: "  "}.Validate())
	assert.NoError(t, Config{BaseDir: "/tmp"}.Validate())
}

func TestProvider_GetObject(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "logs/job/1/cir.json", `{"provider":"aws"}`)

	p, err := New(Config{BaseDir: base})
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()

	t.Run("existing key", func(t *testing.T) {
		body, size, err := p.GetObject(ctx, "/logs/job/1/cir.json")
		require.NoError(t, err)
		defer body.Close()
		data, err := io.ReadAll(body)
		require.NoError(t, err)
		assert.Equal(t, `{"provider":"aws"}`, string(data))
		assert.Equal(t, int64(18), size)
	})

	t.Run("missing key", func(t *testing.T) {
		_, _, err := p.GetObject(ctx, "logs/job/2/cir.json")
		require.Error(t, err)
		assert.True(t, provider.IsNotFound(err))
	})

	t.Run("directory is not an object", func(t *testing.T) {
		_, _, err := p.GetObject(ctx, "logs/job")
		assert.True(t, provider.IsNotFound(err))
	})

	t.Run("traversal stays under base", func(t *testing.T) {
		_, _, err := p.GetObject(ctx, "../../etc/passwd")
		require.Error(t, err)
		assert.True(t, provider.IsNotFound(err))
	})
}

func TestProvider_Head(t *testing.T) {
	base := t.TempDir()
	writeFile(t, base, "a/b.json", "{}")

	p, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	meta, err := p.Head(context.Background(), "a/b.json")
	require.NoError(t, err)
	assert.Equal(t, "a/b.json", meta.Key)
	assert.Equal(t, int64(2), meta.Size)

	_, err = p.Head(context.Background(), "a")
	assert.True(t, provider.IsNotFound(err))
}

func TestNew_MissingDir(t *testing.T) {
	_, err := New(Config{BaseDir: filepath.Join(t.TempDir(), "absent")})
	require.Error(t, err)
	var pe *provider.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "New", pe.Op)
}

func TestMirrorPath(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{key: "logs/job/1/cir.json", want: "logs/job/1/cir.json"},
		{key: "/logs/job/1/cir.json", want: "logs/job/1/cir.json"},
		{key: "../../etc/passwd", want: "etc/passwd"},
		{key: "logs//job/./1", want: "logs/job/1"},
		{key: "", want: "."},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, mirrorPath(tt.key))
		})
	}
}

func TestProvider_RootKeyIsNotAnObject(t *testing.T) {
	p, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	defer p.Close()

	_, _, err = p.GetObject(context.Background(), "/")
	assert.True(t, provider.IsNotFound(err))
}
