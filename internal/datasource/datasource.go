// Package datasource abstracts where input bytes come from.
package datasource

import (
	"context"
	"io"
)

// Source opens the input for reading.
type Source interface {
	// Name identifies the source in logs (a path, a URL).
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Buffered is implemented by sources that can hand over their whole
// content at once, which the zero-copy parser needs.
type Buffered interface {
	Source
	ReadAll(ctx context.Context) ([]byte, error)
}
