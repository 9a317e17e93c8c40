// manager_test.go - Tests for the upload directory store
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func createTestStore(t *testing.T, opts ...Option) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		store, err := NewLocalStore(uploadDir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
		if store.Dir() != uploadDir {
			t.Errorf("Expected dir %s, got %s", uploadDir, store.Dir())
		}
	})

	t.Run("fails when path is a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewLocalStore(blocker); err == nil {
			t.Error("Expected error when upload dir is a regular file")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("writes content under suffixed name", func(t *testing.T) {
		store := createTestStore(t, WithClock(fixedClock(1700000000123)))

		content := "Hello, World!"
		res, err := store.Save("report.pdf", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		if res.Filename != "report_1700000000123.pdf" {
			t.Errorf("Unexpected disk name %q", res.Filename)
		}
		if res.OriginalName != "report.pdf" {
			t.Errorf("Expected original name report.pdf, got %q", res.OriginalName)
		}
		if res.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), res.Size)
		}
		data, err := os.ReadFile(res.Path)
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Expected content %q, got %q", content, string(data))
		}
	})

	t.Run("same name twice never overwrites", func(t *testing.T) {
		now := int64(1700000000000)
		store := createTestStore(t, WithClock(func() time.Time {
			now += 5
			return time.UnixMilli(now)
		}))

		first, err := store.Save("report.pdf", strings.NewReader("first"))
		if err != nil {
			t.Fatal(err)
		}
		second, err := store.Save("report.pdf", strings.NewReader("second"))
		if err != nil {
			t.Fatal(err)
		}

		if first.Filename == second.Filename {
			t.Fatalf("Expected distinct disk names, both %q", first.Filename)
		}
		for _, res := range []struct{ name, want string }{{first.Filename, "first"}, {second.Filename, "second"}} {
			data, err := os.ReadFile(filepath.Join(store.Dir(), res.name))
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != res.want {
				t.Errorf("%s: expected %q, got %q", res.name, res.want, data)
			}
		}
	})

	t.Run("same millisecond moves suffix forward", func(t *testing.T) {
		store := createTestStore(t, WithClock(fixedClock(42)))

		first, _ := store.Save("a.txt", strings.NewReader("1"))
		second, err := store.Save("a.txt", strings.NewReader("2"))
		if err != nil {
			t.Fatal(err)
		}
		if first.Filename != "a_42.txt" || second.Filename != "a_43.txt" {
			t.Errorf("Unexpected names %q, %q", first.Filename, second.Filename)
		}
	})

	t.Run("existing file at the target name is kept", func(t *testing.T) {
		store := createTestStore(t, WithClock(fixedClock(42)))
		existing := filepath.Join(store.Dir(), "a_42.txt")
		if err := os.WriteFile(existing, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		res, err := store.Save("a.txt", strings.NewReader("new"))
		if err != nil {
			t.Fatal(err)
		}
		if res.Filename != "a_43.txt" {
			t.Errorf("Expected a_43.txt, got %q", res.Filename)
		}
		if data, _ := os.ReadFile(existing); string(data) != "old" {
			t.Errorf("Existing file was overwritten with %q", data)
		}
	})

	t.Run("concurrent same-millisecond uploads get distinct names", func(t *testing.T) {
		store := createTestStore(t, WithClock(fixedClock(7)))
		const n = 8

		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := store.Save("report.pdf", strings.NewReader(fmt.Sprintf("copy %d", i))); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatal(err)
		}

		files, err := store.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != n {
			t.Fatalf("Expected %d files, got %d", n, len(files))
		}
		seen := map[string]bool{}
		for _, f := range files {
			data, _ := os.ReadFile(filepath.Join(store.Dir(), f.Filename))
			if seen[string(data)] {
				t.Errorf("Content %q stored twice; an upload was overwritten", data)
			}
			seen[string(data)] = true
		}
		if entries, _ := os.ReadDir(filepath.Join(store.Dir(), incomingDir)); len(entries) != 0 {
			t.Errorf("Expected no temp files left, got %d", len(entries))
		}
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createTestStore(t)

		res, err := store.Save("empty.txt", strings.NewReader(""))
		if err != nil {
			t.Fatalf("Failed to save empty file: %v", err)
		}
		if res.Size != 0 {
			t.Errorf("Expected size 0, got %d", res.Size)
		}
	})

	t.Run("rejects oversized upload and leaves nothing behind", func(t *testing.T) {
		store := createTestStore(t, WithMaxSize(8))

		_, err := store.Save("big.bin", strings.NewReader(strings.Repeat("x", 64)))
		if !errors.Is(err, ErrTooLarge) {
			t.Fatalf("Expected ErrTooLarge, got %v", err)
		}

		files, err := store.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 0 {
			t.Errorf("Expected empty listing, got %d files", len(files))
		}
		incoming, _ := os.ReadDir(filepath.Join(store.Dir(), incomingDir))
		if len(incoming) != 0 {
			t.Errorf("Expected no partial files, got %d", len(incoming))
		}
	})

	t.Run("accepts upload exactly at the limit", func(t *testing.T) {
		store := createTestStore(t, WithMaxSize(8))

		res, err := store.Save("edge.bin", strings.NewReader("12345678"))
		if err != nil {
			t.Fatalf("Expected success at limit, got %v", err)
		}
		if res.Size != 8 {
			t.Errorf("Expected size 8, got %d", res.Size)
		}
	})

	t.Run("reader failure removes partial file", func(t *testing.T) {
		store := createTestStore(t)

		r := io.MultiReader(strings.NewReader("partial"), errReader{})
		if _, err := store.Save("broken.bin", r); err == nil {
			t.Fatal("Expected error from failing reader")
		}
		files, _ := store.List()
		if len(files) != 0 {
			t.Errorf("Expected no files after failed upload, got %d", len(files))
		}
	})
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStore_List(t *testing.T) {
	t.Run("lists files with size", func(t *testing.T) {
		store := createTestStore(t)
		res, _ := store.Save("one.txt", strings.NewReader("12345"))

		files, err := store.List()
		if err != nil {
			t.Fatalf("Failed to list: %v", err)
		}
		if len(files) != 1 {
			t.Fatalf("Expected 1 file, got %d", len(files))
		}
		if files[0].Filename != res.Filename || files[0].Size != 5 {
			t.Errorf("Unexpected entry %+v", files[0])
		}
		if files[0].UploadTime.IsZero() {
			t.Error("Expected upload time to be set")
		}
	})

	t.Run("skips subdirectories", func(t *testing.T) {
		store := createTestStore(t)
		if err := os.Mkdir(filepath.Join(store.Dir(), "nested"), 0755); err != nil {
			t.Fatal(err)
		}

		files, err := store.List()
		if err != nil {
			t.Fatal(err)
		}
		if len(files) != 0 {
			t.Errorf("Expected directories to be skipped, got %d entries", len(files))
		}
	})

	t.Run("skips entry deleted between readdir and stat", func(t *testing.T) {
		store := createTestStore(t, WithClock(fixedClock(1)))
		keep, _ := store.Save("keep.txt", strings.NewReader("keep"))
		gone, _ := store.Save("gone.txt", strings.NewReader("gone"))

		store.entryInfo = func(entry fs.DirEntry) (fs.FileInfo, error) {
			if entry.Name() == gone.Filename {
				if err := os.Remove(gone.Path); err != nil {
					t.Fatal(err)
				}
			}
			return entry.Info()
		}

		files, err := store.List()
		if err != nil {
			t.Fatalf("Expected vanished entry to be skipped, got %v", err)
		}
		if len(files) != 1 || files[0].Filename != keep.Filename {
			t.Errorf("Expected only %q, got %+v", keep.Filename, files)
		}
	})

	t.Run("stat failure other than not-exist is an error", func(t *testing.T) {
		store := createTestStore(t)
		store.Save("a.txt", strings.NewReader("a"))
		store.entryInfo = func(fs.DirEntry) (fs.FileInfo, error) {
			return nil, fs.ErrPermission
		}

		if _, err := store.List(); !errors.Is(err, fs.ErrPermission) {
			t.Errorf("Expected permission error, got %v", err)
		}
	})

	t.Run("fails when directory is gone", func(t *testing.T) {
		store := createTestStore(t)
		if err := os.RemoveAll(store.Dir()); err != nil {
			t.Fatal(err)
		}
		if _, err := store.List(); err == nil {
			t.Error("Expected listing error")
		}
	})
}

func TestLocalStore_Open(t *testing.T) {
	store := createTestStore(t)
	res, _ := store.Save("blob.bin", strings.NewReader("\x00\x01binary\xff"))

	rc, info, err := store.Open(res.Filename)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "\x00\x01binary\xff" {
		t.Errorf("Round trip mismatch: %q", data)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("Expected size %d, got %d", len(data), info.Size)
	}

	if _, _, err := store.Open("missing.bin"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, _, err := store.Open("../etc/passwd"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("Expected ErrInvalidName, got %v", err)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	t.Run("removes existing file", func(t *testing.T) {
		store := createTestStore(t)
		res, _ := store.Save("gone.txt", strings.NewReader("bye"))

		info, err := store.Delete(res.Filename)
		if err != nil {
			t.Fatalf("Failed to delete: %v", err)
		}
		if info.Filename != res.Filename || info.Size != 3 {
			t.Errorf("Expected removed file metadata, got %+v", info)
		}
		if _, err := os.Stat(res.Path); !os.IsNotExist(err) {
			t.Error("Expected file to be removed from disk")
		}
	})

	t.Run("missing file is not found and changes nothing", func(t *testing.T) {
		store := createTestStore(t)
		keep, _ := store.Save("keep.txt", strings.NewReader("stay"))

		if _, err := store.Delete("nope.txt"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		files, _ := store.List()
		if len(files) != 1 || files[0].Filename != keep.Filename {
			t.Errorf("Expected directory untouched, got %+v", files)
		}
	})

	t.Run("refuses directories and traversal", func(t *testing.T) {
		store := createTestStore(t)
		if _, err := store.Delete(incomingDir); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Expected ErrInvalidName for incoming dir, got %v", err)
		}
		if _, err := store.Delete("../outside.txt"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Expected ErrInvalidName, got %v", err)
		}
	})
}

func TestDiskName(t *testing.T) {
	tests := []struct {
		original string
		want     string
	}{
		{"report.pdf", "report_99.pdf"},
		{"archive.tar.gz", "archive.tar_99.gz"},
		{"README", "README_99"},
		{".env", ".env_99"},
		{"dir/nested.txt", "nested_99.txt"},
		{`C:\Users\me\photo.jpg`, "photo_99.jpg"},
		{"", "file_99"},
		{"..", "file_99"},
	}

	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			if got := DiskName(tt.original, 99); got != tt.want {
				t.Errorf("DiskName(%q) = %q, want %q", tt.original, got, tt.want)
			}
		})
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"report_1.pdf", ".env_1", "a b c.txt", "naïve.txt"}
	invalid := []string{"", ".", "..", "../x", "a/b", `a\b`, "/etc/passwd", "bad\x00name", incomingDir}

	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}
