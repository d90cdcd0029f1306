// Package local implements a filesystem-backed KV store.
package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brisketlabs/crawld/internal/store"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory where values are stored.
	BaseDir string `mapstructure:"base_dir"`
}

// KV maps keys to files under a base directory.
type KV struct {
	baseDir string
}

// New creates a filesystem-backed store rooted at cfg.BaseDir.
func New(cfg Config) (*KV, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &KV{baseDir: cfg.BaseDir}, nil
}

// Get reads the file backing key.
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("read value: %w", err)
	}
	return data, nil
}

// Put writes value to the file backing key, creating parent directories.
func (s *KV) Put(_ context.Context, key string, value []byte) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(path, value, 0o600); err != nil {
		return fmt.Errorf("write value: %w", err)
	}
	return nil
}

// List walks the tree under the prefix and returns matching keys sorted.
func (s *KV) List(_ context.Context, prefix string) ([]string, error) {
	root := s.baseDir
	// Walk only the deepest existing directory covering the prefix.
	if dir := filepath.Join(s.baseDir, filepath.FromSlash(strings.TrimSuffix(prefix, "/"))); dirExists(dir) {
		root = dir
	} else if parent := filepath.Dir(dir); dirExists(parent) {
		root = parent
	} else {
		return nil, nil
	}

	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.baseDir, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk store: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// resolve maps a key to a path, rejecting traversal outside the base dir.
func (s *KV) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("key is required")
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(key))
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes base directory")
	}
	return full, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
