package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProofStorage persists payment proof documents and hands back an opaque
// reference. A payment is never accepted until the reference is durable.
type ProofStorage interface {
	Store(ctx context.Context, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// DiskStorage writes proofs under a base directory, one file per reference.
type DiskStorage struct {
	baseDir string
}

// NewDiskStorage ensures the base directory exists.
func NewDiskStorage(baseDir string) (*DiskStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}
	return &DiskStorage{baseDir: baseDir}, nil
}

// Store copies the upload to disk and fsyncs before returning the reference,
// so a returned ref always points at durable bytes.
func (s *DiskStorage) Store(_ context.Context, filename string, r io.Reader) (string, error) {
	ext := filepath.Ext(filename)
	ref := fmt.Sprintf("%s-%s%s", time.Now().UTC().Format("20060102"), uuid.NewString(), ext)
	f, err := os.Create(filepath.Join(s.baseDir, ref))
	if err != nil {
		return "", fmt.Errorf("create proof file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write proof file: %w", err)
	}
	if err := f.Sync(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("sync proof file: %w", err)
	}
	return ref, nil
}

// Open returns the stored proof for streaming back to a reviewer.
func (s *DiskStorage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	// Refs are server-generated, but reject traversal anyway.
	if strings.Contains(ref, "/") || strings.Contains(ref, "..") {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.baseDir, ref))
}
