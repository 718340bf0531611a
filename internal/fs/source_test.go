package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalSource(t *testing.T) {
	t.Run("exposes name, size and content", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "photo.jpg")
		if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}

		src := NewLocalSource(path)

		name, err := src.DisplayName()
		if err != nil {
			t.Fatalf("DisplayName() error = %v", err)
		}
		if name != "photo.jpg" {
			t.Errorf("DisplayName() = %q, want photo.jpg", name)
		}
		if got := src.Size(); got != 7 {
			t.Errorf("Size() = %d, want 7", got)
		}

		r, err := src.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil || string(data) != "content" {
			t.Errorf("content = %q, err = %v", data, err)
		}
	})

	t.Run("rejects missing and non-regular files", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()

		if _, err := NewLocalSource(filepath.Join(dir, "ghost")).DisplayName(); err == nil {
			t.Error("DisplayName() for missing file did not fail")
		}
		if _, err := NewLocalSource(dir).DisplayName(); err == nil {
			t.Error("DisplayName() for a directory did not fail")
		}
		if got := NewLocalSource(filepath.Join(dir, "ghost")).Size(); got != -1 {
			t.Errorf("Size() for missing file = %d, want -1", got)
		}
	})

	t.Run("remove deletes the original", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "a.txt")
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}

		if err := NewLocalSource(path).Remove(); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("original still exists after Remove()")
		}
	})
}

func TestFindSources(t *testing.T) {
	write := func(t *testing.T, path string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	t.Run("a file path becomes one source", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "a.jpg")
		write(t, path)

		sources, err := FindSources([]string{path}, nil)
		if err != nil {
			t.Fatalf("FindSources() error = %v", err)
		}
		if len(sources) != 1 {
			t.Fatalf("got %d sources, want 1", len(sources))
		}
	})

	t.Run("a directory contributes its files recursively", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		write(t, filepath.Join(dir, "a.jpg"))
		write(t, filepath.Join(dir, "sub", "b.jpg"))

		sources, err := FindSources([]string{dir}, nil)
		if err != nil {
			t.Fatalf("FindSources() error = %v", err)
		}
		if len(sources) != 2 {
			t.Errorf("got %d sources, want 2", len(sources))
		}
	})

	t.Run("the skip matcher filters directory expansion", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		write(t, filepath.Join(dir, "keep.jpg"))
		write(t, filepath.Join(dir, "skip.tmp"))
		write(t, filepath.Join(dir, ".cache", "thumb.jpg"))

		matcher := NewSkipMatcher([]string{"*.tmp", ".cache/*"})
		sources, err := FindSources([]string{dir}, matcher)
		if err != nil {
			t.Fatalf("FindSources() error = %v", err)
		}
		if len(sources) != 1 {
			t.Fatalf("got %d sources, want 1", len(sources))
		}
		name, _ := sources[0].DisplayName()
		if name != "keep.jpg" {
			t.Errorf("kept %q, want keep.jpg", name)
		}
	})

	t.Run("honors a .fvskip file at the directory root", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		write(t, filepath.Join(dir, "keep.jpg"))
		write(t, filepath.Join(dir, "note.txt"))
		if err := os.WriteFile(filepath.Join(dir, ".fvskip"), []byte("*.txt\n"), 0644); err != nil {
			t.Fatalf("writing .fvskip: %v", err)
		}

		sources, err := FindSources([]string{dir}, DefaultSkipMatcher(nil))
		if err != nil {
			t.Fatalf("FindSources() error = %v", err)
		}
		if len(sources) != 1 {
			t.Fatalf("got %d sources, want 1", len(sources))
		}
		name, _ := sources[0].DisplayName()
		if name != "keep.jpg" {
			t.Errorf("kept %q, want keep.jpg", name)
		}
	})

	t.Run("fails for missing paths", func(t *testing.T) {
		t.Parallel()
		if _, err := FindSources([]string{"/nonexistent/thing"}, nil); err == nil {
			t.Error("FindSources() for missing path did not fail")
		}
	})
}
