package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImportKey(t *testing.T) {
	k := ImportKey("ws1", "../../etc/notes.md")
	require.True(t, strings.HasPrefix(k, "imports/ws1/"))
	require.True(t, strings.HasSuffix(k, "-notes.md"))
	require.NotContains(t, k, "..")

	require.True(t, strings.HasSuffix(ImportKey("ws1", `C:\docs\deck.txt`), "-deck.txt"))
	require.True(t, strings.HasSuffix(ImportKey("ws1", ""), "-upload"))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	require.NoError(t, s.Put(ctx, "k", strings.NewReader("hello"), 5, "text/plain"))

	b, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	require.NoError(t, s.Remove(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLoadMinIOConfig(t *testing.T) {
	t.Setenv("MINIO_ENDPOINT", "minio:9000")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("MINIO_BUCKET", "")
	cfg := LoadMinIOConfig()
	require.Equal(t, "minio:9000", cfg.Endpoint)
	require.True(t, cfg.UseSSL)
	require.Equal(t, "slidecoffee-imports", cfg.Bucket)

	_, err := NewMinIOStorage(context.Background(), &MinIOConfig{})
	require.Error(t, err)
}
