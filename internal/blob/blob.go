// Package blob stores message attachments and exposes them by public URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPath is returned for object paths that would escape the bucket.
var ErrInvalidPath = errors.New("blob: invalid object path")

// Store is an object store with public read access.
type Store interface {
	Put(ctx context.Context, objectPath string, r io.Reader) error
	Delete(ctx context.Context, objectPath string) error
	URL(objectPath string) string
}

// ObjectPath names an upload: <sessionID>/<unix millis><ext>.
func ObjectPath(sessionID string, now time.Time, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return sessionID + "/" + strconv.FormatInt(now.UnixMilli(), 10) + ext
}

// LocalStore keeps objects on disk under <root>/<bucket>. The HTTP layer
// serves root at the public base URL.
type LocalStore struct {
	root    string
	bucket  string
	baseURL string
}

func NewLocalStore(root, bucket, baseURL string) (*LocalStore, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return nil, fmt.Errorf("blob: invalid bucket %q", bucket)
	}
	if err := os.MkdirAll(filepath.Join(root, bucket), 0o755); err != nil {
		return nil, fmt.Errorf("blob: create bucket: %w", err)
	}
	return &LocalStore{
		root:    root,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) resolve(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || clean != "/"+objectPath {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, s.bucket, filepath.FromSlash(clean[1:])), nil
}

// Put writes the object atomically; a partially written file is never
// visible at its final path.
func (s *LocalStore) Put(ctx context.Context, objectPath string, r io.Reader) error {
	dst, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("blob: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("blob: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return fmt.Errorf("blob: write %s: %w", objectPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blob: close %s: %w", objectPath, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("blob: commit %s: %w", objectPath, err)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, objectPath string) error {
	dst, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("blob: delete %s: %w", objectPath, err)
	}
	return nil
}

func (s *LocalStore) URL(objectPath string) string {
	return s.baseURL + "/" + s.bucket + "/" + objectPath
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
