// Package filecache keeps the host files opened on behalf of remote
// clients. Files are identified by their host descriptor; when the number
// of open files exceeds the capacity the least recently used file is
// closed.
package filecache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/go-delve/nativedbg/pkg/logflags"
	"github.com/go-delve/nativedbg/pkg/settings"
)

// InvalidFD is never returned by OpenFile.
const InvalidFD = ^uint64(0)

const defaultCapacity = 64

// Kind classifies the errors of the cache.
type Kind uint8

const (
	// KindState is returned for descriptors the cache doesn't know.
	KindState Kind = iota
	// KindPlatform wraps an error of the host.
	KindPlatform
)

// Error is the error returned by the operations of Cache.
type Error struct {
	Kind Kind
	Msg  string
	// Platform is "posix" or "win32".
	Platform string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg == "" {
			return e.Err.Error()
		}
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func platform() string {
	if runtime.GOOS == "windows" {
		return "win32"
	}
	return "posix"
}

func stateError(msg string) error {
	return &Error{Kind: KindState, Msg: msg, Platform: platform()}
}

func platformError(err error) error {
	return &Error{Kind: KindPlatform, Platform: platform(), Err: err}
}

// Cache maps host descriptors to open files.
type Cache struct {
	mu    sync.Mutex
	files *lru.Cache
}

var (
	instanceOnce sync.Once
	instance     *Cache
)

// Get returns the process wide cache.
func Get() *Cache {
	instanceOnce.Do(func() {
		capacity := settings.Global().GetUInt(settings.FileCacheCapacity, defaultCapacity)
		instance = New(int(capacity))
	})
	return instance
}

// New returns an empty cache keeping at most capacity files open.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	files, err := lru.NewWithEvict(capacity, func(key, value interface{}) {
		fd := key.(uint64)
		if f, ok := value.(*os.File); ok && f != nil {
			logflags.FileCacheLogger().Debugf("closing descriptor %d", fd)
			f.Close()
		}
	})
	if err != nil {
		panic(err)
	}
	return &Cache{files: files}
}

// SetCapacity changes the number of files kept open, evicting the least
// recently used ones if needed.
func (c *Cache) SetCapacity(capacity int) {
	if capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := c.files.Resize(capacity); n > 0 {
		logflags.FileCacheLogger().Debugf("capacity %d, %d files closed", capacity, n)
	}
}

// Len returns the number of open files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.files.Len()
}

// OpenFile opens the file at path and returns its descriptor.
func (c *Cache) OpenFile(path string, flag int, perm os.FileMode) (uint64, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return InvalidFD, platformError(err)
	}
	fd := uint64(f.Fd())
	if fd == InvalidFD {
		f.Close()
		return InvalidFD, stateError("invalid host file descriptor")
	}
	c.mu.Lock()
	c.files.Add(fd, f)
	c.mu.Unlock()
	logflags.FileCacheLogger().WithField("path", path).Debugf("opened descriptor %d", fd)
	return fd, nil
}

func (c *Cache) lookup(fd uint64) (*os.File, error) {
	if fd == InvalidFD {
		return nil, stateError("invalid file descriptor")
	}
	v, ok := c.files.Get(fd)
	if !ok {
		return nil, stateError("invalid host file descriptor")
	}
	f, _ := v.(*os.File)
	if f == nil {
		return nil, stateError("invalid host backing file")
	}
	return f, nil
}

// CloseFile closes the file fd and forgets it.
func (c *Cache) CloseFile(fd uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.lookup(fd); err != nil {
		return err
	}
	// the eviction callback closes the file
	c.files.Remove(fd)
	return nil
}

// ReadFile reads len(buf) bytes at offset off of fd.
func (c *Cache) ReadFile(fd uint64, off int64, buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.lookup(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(buf, off)
	if n == 0 && err != nil && !errors.Is(err, io.EOF) {
		return 0, platformError(err)
	}
	return n, nil
}

// WriteFile writes buf at offset off of fd.
func (c *Cache) WriteFile(fd uint64, off int64, buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.lookup(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.WriteAt(buf, off)
	if err != nil {
		return n, platformError(err)
	}
	return n, nil
}
