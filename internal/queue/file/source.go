// Package file implements a local filesystem-backed message source for
// development runs without a queue. The file holds one message body; an
// empty or whitespace-only file reads as an empty queue.
package file

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"loginetl/internal/etlerr"
	"loginetl/internal/queue"
)

// Source reads the message body from a path on every Receive. Like the SQS
// source it never consumes what it returns.
type Source struct{ path string }

var _ queue.Source = (*Source)(nil)

// New returns a Source bound to path.
func New(path string) *Source { return &Source{path: path} }

// Receive returns the file content as a single message.
//
// If ctx is already done, Receive returns the context error without
// touching the filesystem. A missing file is a SourceError.
func (s *Source) Receive(ctx context.Context) ([]queue.Message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	body, err := os.ReadFile(s.path)
	if err != nil {
		return nil, etlerr.Wrap(etlerr.KindSource, "read message file", fmt.Errorf("open %s: %w", s.path, err))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return []queue.Message{{ID: "file:" + s.path, Body: body}}, nil
}
