package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalRoute is the URL path the router serves local uploads from.
const LocalRoute = "/uploads"

// Local stores artifacts on disk below Dir.
type Local struct {
	Dir     string
	BaseURL string
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Put(ctx context.Context, prefix string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyArtifact
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(prefix, contentType)
	diskPath := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(diskPath), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(diskPath, data, 0o644); err != nil {
		return "", err
	}
	return l.BaseURL + LocalRoute + "/" + key, nil
}

func (l *Local) Delete(ctx context.Context, url string) error {
	prefix := l.BaseURL + LocalRoute + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	key := strings.TrimPrefix(url, prefix)
	diskPath := filepath.Join(l.Dir, filepath.FromSlash(key))
	root, err := filepath.Abs(l.Dir)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(diskPath)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return fmt.Errorf("refusing to delete %q outside upload dir", key)
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
