package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStore_PutAndGet(t *testing.T) {
	t.Parallel()

	s := NewBlobStore()
	uri, err := s.PutObject(context.Background(), "runs/r1/page-1.html", "text/html", []byte("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, "memory://runs/r1/page-1.html", uri)

	data, ok := s.GetObject("runs/r1/page-1.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html></html>"), data)
}
