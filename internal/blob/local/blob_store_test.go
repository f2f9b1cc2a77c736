package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestPutObject_WritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := s.PutObject(context.Background(), "runs/r1/page.html", "text/html", []byte("body"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(dir, "runs/r1/page.html"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "runs/r1/page.html"))
	require.NoError(t, err)
	require.Equal(t, []byte("body"), data)
}

func TestPutObject_RejectsTraversal(t *testing.T) {
	t.Parallel()

	s, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = s.PutObject(context.Background(), "../escape.html", "text/html", []byte("x"))
	require.Error(t, err)
}
