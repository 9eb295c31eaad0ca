// Package copier implements the byte-level copy primitive and the
// locked-file classification used by the retry engine.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// BufferSize for copying
const BufferSize = 256 * 1024

// ErrNotRegular is returned when the source is not a regular file.
var ErrNotRegular = errors.New("source is not a regular file")

// Copier copies one file's content and metadata to dst.
type Copier interface {
	Copy(ctx context.Context, src, dst string) error
}

// CopierFunc adapts a function to the Copier interface.
type CopierFunc func(ctx context.Context, src, dst string) error

// Copy calls f(ctx, src, dst).
func (f CopierFunc) Copy(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// FSCopier copies regular files on the local filesystem, preserving the
// permission bits and modification time of the source.
//
// The destination is opened with O_TRUNC so a reserved (empty) target, or one
// left over by a failed earlier attempt, is overwritten in place.
type FSCopier struct {
	bufferSize int
}

// NewFSCopier creates a filesystem copier.
func NewFSCopier() *FSCopier {
	return &FSCopier{bufferSize: BufferSize}
}

// Copy copies src to dst. It aborts between buffer writes when ctx is done.
func (c *FSCopier) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: %w", src, ErrNotRegular)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}

	buf := make([]byte, c.bufferSize)
	if _, err := io.CopyBuffer(out, &ctxReader{ctx: ctx, r: in}, buf); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close destination: %w", err)
	}

	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Chtimes(dst, accessTime(info), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set timestamps: %w", err)
	}
	return nil
}

// ctxReader stops a copy once its context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
