package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const ext = ".png"

var (
	ErrInvalidID = errors.New("invalid result id")
	ErrNotFound  = errors.New("result not found")
)

// Store 把合成结果存为 <ksuid>.png，供 /results/:id 回取
type Store struct {
	baseDir string
}

func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("storage dir is empty")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) Dir() string {
	return s.baseDir
}

// Save 写入后返回新生成的 id
func (s *Store) Save(data []byte) (string, error) {
	id := ksuid.New().String()
	path := filepath.Join(s.baseDir, id+ext)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to rename result: %w", err)
	}
	return id, nil
}

// Path id 必须是合法 ksuid，顺带挡掉路径穿越
func (s *Store) Path(id string) (string, error) {
	if _, err := ksuid.Parse(id); err != nil {
		return "", ErrInvalidID
	}

	path := filepath.Join(s.baseDir, id+ext)
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(s.baseDir)+string(filepath.Separator)) {
		return "", ErrInvalidID
	}
	return path, nil
}

func (s *Store) Open(id string) (*os.File, error) {
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open result: %w", err)
	}
	return f, nil
}

// Cleanup 删除修改时间早于 now-retention 的结果，返回删除数量
func (s *Store) Cleanup(retention time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read storage dir: %w", err)
	}

	cutoff := now.Add(-retention)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, e.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}
