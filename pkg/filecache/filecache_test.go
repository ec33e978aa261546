package filecache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func checkKind(t *testing.T, err error, kind Kind, msg string) {
	t.Helper()
	var ferr *Error
	if !errors.As(err, &ferr) {
		t.Fatalf("expected *Error got %T (%v)", err, err)
	}
	if ferr.Kind != kind {
		t.Errorf("expected kind %d got %d", kind, ferr.Kind)
	}
	if msg != "" && ferr.Error() != msg {
		t.Errorf("expected %q got %q", msg, ferr.Error())
	}
	if ferr.Platform != "posix" && ferr.Platform != "win32" {
		t.Errorf("unexpected platform %q", ferr.Platform)
	}
}

func TestReadWrite(t *testing.T) {
	c := New(4)
	path := tempFile(t, "a", "hello world")

	fd, err := c.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	n, err := c.ReadFile(fd, 6, buf)
	if err != nil || n != 5 || string(buf) != "world" {
		t.Fatalf("expected 5 \"world\" got %d %q (%v)", n, buf[:n], err)
	}
	if _, err := c.WriteFile(fd, 0, []byte("HELLO")); err != nil {
		t.Fatal(err)
	}
	n, err = c.ReadFile(fd, 0, buf)
	if err != nil || string(buf[:n]) != "HELLO" {
		t.Fatalf("expected \"HELLO\" got %q (%v)", buf[:n], err)
	}
	n, err = c.ReadFile(fd, 100, buf)
	if err != nil || n != 0 {
		t.Fatalf("read past the end: expected 0 got %d (%v)", n, err)
	}

	if err := c.CloseFile(fd); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d files", c.Len())
	}
	_, err = c.ReadFile(fd, 0, buf)
	checkKind(t, err, KindState, "invalid host file descriptor")
	checkKind(t, c.CloseFile(fd), KindState, "invalid host file descriptor")
}

func TestInvalidDescriptor(t *testing.T) {
	c := New(1)
	checkKind(t, c.CloseFile(InvalidFD), KindState, "invalid file descriptor")
	_, err := c.WriteFile(InvalidFD, 0, []byte{1})
	checkKind(t, err, KindState, "invalid file descriptor")
}

func TestOpenMissing(t *testing.T) {
	_, err := New(1).OpenFile(filepath.Join(t.TempDir(), "missing"), os.O_RDONLY, 0)
	checkKind(t, err, KindPlatform, "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected the host error to be wrapped, got %v", err)
	}
}

func TestEviction(t *testing.T) {
	c := New(2)
	var fds []uint64
	for _, name := range []string{"a", "b", "c"} {
		fd, err := c.OpenFile(tempFile(t, name, name), os.O_RDONLY, 0)
		if err != nil {
			t.Fatal(err)
		}
		fds = append(fds, fd)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 open files got %d", c.Len())
	}
	buf := make([]byte, 1)
	if _, err := c.ReadFile(fds[0], 0, buf); err == nil {
		t.Fatalf("expected the least recently used file to be closed")
	}
	if _, err := c.ReadFile(fds[2], 0, buf); err != nil || buf[0] != 'c' {
		t.Fatalf("expected 'c' got %q (%v)", buf, err)
	}

	c.SetCapacity(1)
	if c.Len() != 1 {
		t.Fatalf("expected 1 open file got %d", c.Len())
	}
	if _, err := c.ReadFile(fds[2], 0, buf); err != nil {
		t.Fatalf("most recently used file closed: %v", err)
	}
}

func TestGet(t *testing.T) {
	if Get() != Get() {
		t.Fatal("expected a single instance")
	}
}
