package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lanbox/backend/internal/models"
)

var (
	// ErrNotFound is returned when the named file is not in the upload directory.
	ErrNotFound = errors.New("storage: file not found")

	// ErrInvalidName is returned for names that are not a single path segment.
	ErrInvalidName = errors.New("storage: invalid file name")

	// ErrTooLarge is returned when an upload exceeds the configured size limit.
	ErrTooLarge = errors.New("storage: file too large")
)

// incomingDir holds uploads while they are being received so a partial file
// never shows up in the listing.
const incomingDir = ".incoming"

// Store defines the interface for the upload directory.
type Store interface {
	Save(originalName string, r io.Reader) (*models.UploadResult, error)
	List() ([]*models.StoredFile, error)
	Stat(name string) (*models.StoredFile, error)
	Open(name string) (io.ReadCloser, *models.StoredFile, error)
	Delete(name string) (*models.StoredFile, error)
}

// LocalStore implements Store on a flat directory. The directory contents are
// the only source of truth; nothing is cached between calls.
type LocalStore struct {
	uploadDir string
	maxSize   int64
	now       func() time.Time

	// entryInfo stats one directory entry during List.
	entryInfo func(fs.DirEntry) (fs.FileInfo, error)
}

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithMaxSize caps the size of a single upload. Zero disables the limit.
func WithMaxSize(n int64) Option {
	return func(s *LocalStore) {
		s.maxSize = n
	}
}

// WithClock replaces the clock used for timestamp suffixes.
func WithClock(now func() time.Time) Option {
	return func(s *LocalStore) {
		s.now = now
	}
}

// NewLocalStore creates the upload directory if needed and returns a store on it.
func NewLocalStore(uploadDir string, opts ...Option) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(uploadDir, incomingDir), 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	s := &LocalStore{
		uploadDir: uploadDir,
		now:       time.Now,
		entryInfo: fs.DirEntry.Info,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the upload directory.
func (s *LocalStore) Dir() string {
	return s.uploadDir
}

// MaxSize returns the per-upload limit in bytes (0 = unlimited).
func (s *LocalStore) MaxSize() int64 {
	return s.maxSize
}

// Save streams r to disk under a timestamp-suffixed name derived from originalName.
func (s *LocalStore) Save(originalName string, r io.Reader) (*models.UploadResult, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.uploadDir, incomingDir), "upload-*")
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	tmpPath := tmp.Name()

	var reader io.Reader = r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1) // +1 to detect overflow
	}

	size, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if s.maxSize > 0 && size > s.maxSize {
		os.Remove(tmpPath)
		return nil, ErrTooLarge
	}

	name, finalPath, err := s.place(tmpPath, originalName)
	if err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	return &models.UploadResult{
		Filename:     name,
		OriginalName: originalName,
		Size:         size,
		Path:         finalPath,
	}, nil
}

// place moves a finished temp file to its final name. A name taken within the
// same millisecond moves the suffix forward instead of overwriting. The name is
// claimed with a hard link, which fails if it already exists, so concurrent
// uploads cannot replace each other.
func (s *LocalStore) place(tmpPath, originalName string) (string, string, error) {
	ts := s.now().UnixMilli()
	for i := 0; i < 1000; i++ {
		name := DiskName(originalName, ts+int64(i))
		finalPath := filepath.Join(s.uploadDir, name)

		err := os.Link(tmpPath, finalPath)
		switch {
		case err == nil:
			os.Remove(tmpPath)
			return name, finalPath, nil
		case errors.Is(err, fs.ErrExist):
			continue
		}

		// Filesystems without hard links: check then rename.
		if _, err := os.Lstat(finalPath); err == nil {
			continue
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			return "", "", fmt.Errorf("moving file into place: %w", err)
		}
		return name, finalPath, nil
	}
	return "", "", fmt.Errorf("no free name for %q", originalName)
}

// List returns every regular file in the upload directory in enumeration order.
// Entries removed between the directory read and the stat are skipped.
func (s *LocalStore) List() ([]*models.StoredFile, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, fmt.Errorf("reading upload directory: %w", err)
	}

	files := make([]*models.StoredFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := s.entryInfo(entry)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, toStoredFile(info))
	}
	return files, nil
}

// Stat returns metadata for a single file.
func (s *LocalStore) Stat(name string) (*models.StoredFile, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}
	return toStoredFile(info), nil
}

// Open returns a reader over the named file. The caller closes it.
func (s *LocalStore) Open(name string) (io.ReadCloser, *models.StoredFile, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("opening %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotFound
	}
	return f, toStoredFile(info), nil
}

// Delete removes the named file and returns what it was. A missing file
// yields ErrNotFound and no change.
func (s *LocalStore) Delete(name string) (*models.StoredFile, error) {
	info, err := s.Stat(name)
	if err != nil {
		return nil, err
	}
	path, _ := s.path(name)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("deleting file: %w", err)
	}
	return info, nil
}

// Path returns the on-disk path for a validated name.
func (s *LocalStore) Path(name string) (string, error) {
	return s.path(name)
}

func (s *LocalStore) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.uploadDir, name), nil
}

func toStoredFile(info fs.FileInfo) *models.StoredFile {
	return &models.StoredFile{
		Filename:   info.Name(),
		Size:       info.Size(),
		UploadTime: info.ModTime(),
	}
}

// DiskName builds "{base}_{ts}{ext}" from a client-supplied name. Dotfiles keep
// their whole name as the base, so ".env" becomes ".env_{ts}".
func DiskName(originalName string, ts int64) string {
	name := filepath.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if name == "." || name == ".." || name == "/" || name == "" {
		name = "file"
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	return base + "_" + strconv.FormatInt(ts, 10) + ext
}
