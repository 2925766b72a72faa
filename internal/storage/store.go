package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Storage backends
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// ErrNotFound is returned by Get when the key does not exist
var ErrNotFound = errors.New("artifact not found")

// ArtifactStore persists pipeline output artifacts under slash-separated keys
type ArtifactStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Location(key string) string
}

// Config holds configuration for every storage backend
type Config struct {
	Backend string
	Root    string // output root: directory for local, key prefix for object stores
	S3      S3Config
	Minio   MinioConfig
}

// New creates the store selected by cfg.Backend
func New(ctx context.Context, cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocalStore(cfg.Root)
	case BackendS3:
		s3cfg := cfg.S3
		s3cfg.Prefix = cfg.Root
		return NewS3Service(ctx, s3cfg)
	case BackendMinio:
		mcfg := cfg.Minio
		mcfg.Prefix = cfg.Root
		return NewMinioStore(ctx, mcfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// LocalStore writes artifacts below a root directory
type LocalStore struct {
	root string
}

// NewLocalStore creates a local store, creating root if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("output root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Put writes data to root/key, creating parent directories
func (s *LocalStore) Put(ctx context.Context, key string, contentType string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

// Get reads root/key
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Delete removes root/key; missing keys are not an error
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	return nil
}

// Location returns the filesystem path of key
func (s *LocalStore) Location(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(cleanKey(key)))
}

func (s *LocalStore) path(key string) (string, error) {
	k := cleanKey(key)
	if k == "" {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// cleanKey normalizes a key to a relative slash path
func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

// objectKey joins an object-store prefix and a key
func objectKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return cleanKey(key)
	}
	return prefix + "/" + cleanKey(key)
}

// ContentTypeFor returns the content type of an artifact key by extension
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return ContentTypeCSV
	case ".yaml", ".yml":
		return ContentTypeYAML
	default:
		return "application/octet-stream"
	}
}
