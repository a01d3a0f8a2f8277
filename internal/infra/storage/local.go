package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxImageSize matches the upload limit of the inspection client.
const DefaultMaxImageSize int64 = 10 << 20

// LocalStore reads images from a directory on disk. References are resolved
// relative to Root and may not escape it.
type LocalStore struct {
	Root    string
	MaxSize int64
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root, MaxSize: DefaultMaxImageSize}
}

// Load implements ai.ImageLoader.
func (s *LocalStore) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxImageSize
	}
	if info.Size() > limit {
		return nil, fmt.Errorf("image %s exceeds %d bytes", ref, limit)
	}
	return os.ReadFile(path)
}

func (s *LocalStore) resolve(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("empty image reference")
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(ref)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(root, clean)
	}
	rel, err := filepath.Rel(root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("image reference %q is outside %s", ref, s.Root)
	}
	return clean, nil
}
