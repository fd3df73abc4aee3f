package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	registryapp "github.com/faasbill/backend/internal/application/registry"
)

var _ registryapp.ObjectStorage = (*LocalObjectStorage)(nil)

// LocalObjectStorage keeps artifacts under a directory. It is meant for
// development and single-node deployments.
type LocalObjectStorage struct {
	root    string
	baseURL string
	now     func() time.Time
}

// NewLocalObjectStorage creates root if needed. When baseURL is set,
// DownloadURL returns links under it; otherwise file:// URLs.
func NewLocalObjectStorage(root, baseURL string) (*LocalObjectStorage, error) {
	if root == "" {
		return nil, errors.New("storage local path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid storage local path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalObjectStorage{
		root:    abs,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}, nil
}

// path resolves key inside root and refuses escapes
func (s *LocalObjectStorage) path(key string) (string, error) {
	if key == "" {
		return "", errKeyRequired
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if p != s.root && !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes the storage root", key)
	}
	return p, nil
}

// Put writes body to key atomically
func (s *LocalObjectStorage) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}
	return nil
}

// Delete removes key; a missing key is not an error
func (s *LocalObjectStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// DownloadURL returns a link to key
func (s *LocalObjectStorage) DownloadURL(_ context.Context, key string, expiresIn time.Duration) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("artifact %q is not stored: %w", key, err)
	}
	if s.baseURL == "" {
		return (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String(), nil
	}
	expires := s.now().Add(expiresIn).Unix()
	return s.baseURL + "/" + key + "?expires=" + strconv.FormatInt(expires, 10), nil
}

// Exists reports whether key is stored
func (s *LocalObjectStorage) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
