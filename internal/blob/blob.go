// Package blob defines the raw-page snapshot archive interface.
// Fetch diagnostics reference the archived snapshot by URI so operators can
// audit what a page looked like when a run processed it.
package blob

import "context"

// Store writes raw artifacts and returns a URI.
type Store interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}
