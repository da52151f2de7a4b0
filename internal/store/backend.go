package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/youruser/instagrid/internal/util"
)

var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrNoKey         = errors.New("key not found")
)

// Backend is a small key/value store for serialized state.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FileBackend keeps one file per key under Dir. A positive Quota caps the
// total bytes held across keys.
type FileBackend struct {
	Dir   string
	Quota int64

	mu sync.Mutex
}

func NewFileBackend(dir string, quota int64) (*FileBackend, error) {
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileBackend{Dir: dir, Quota: quota}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.Dir, filepath.Base(key)+".json")
}

func (b *FileBackend) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoKey
	}
	return data, err
}

func (b *FileBackend) Set(key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Quota > 0 {
		used, err := b.usage(key)
		if err != nil {
			return err
		}
		if used+int64(len(value)) > b.Quota {
			return fmt.Errorf("%w: %d bytes over %d", ErrQuotaExceeded, used+int64(len(value)), b.Quota)
		}
	}
	return util.WriteFileAtomic(b.path(key), value)
}

func (b *FileBackend) Delete(key string) error {
	err := os.Remove(b.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// usage sums the size of every stored key except skip.
func (b *FileBackend) usage(skip string) (int64, error) {
	matches, err := filepath.Glob(filepath.Join(b.Dir, "*.json"))
	if err != nil {
		return 0, err
	}
	var n int64
	for _, m := range matches {
		if m == b.path(skip) {
			continue
		}
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		n += fi.Size()
	}
	return n, nil
}

// MemoryBackend holds values in process memory; they never expire.
type MemoryBackend struct {
	c *cache.Cache
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{c: cache.New(cache.NoExpiration, 0)}
}

func (b *MemoryBackend) Get(key string) ([]byte, error) {
	v, ok := b.c.Get(key)
	if !ok {
		return nil, ErrNoKey
	}
	return v.([]byte), nil
}

func (b *MemoryBackend) Set(key string, value []byte) error {
	b.c.Set(key, append([]byte(nil), value...), cache.NoExpiration)
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.c.Delete(key)
	return nil
}
