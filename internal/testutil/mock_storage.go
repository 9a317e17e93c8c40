// mock_storage.go - Mock storage implementation for testing
package testutil

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/lanbox/backend/internal/models"
	"github.com/lanbox/backend/internal/storage"
)

// MockStorage implements storage.Store in memory. Names are generated with
// storage.DiskName from a counter clock so tests can predict them.
type MockStorage struct {
	mu       sync.RWMutex
	order    []string
	files    map[string]*models.StoredFile
	fileData map[string][]byte
	clock    int64

	// MaxSize makes Save return storage.ErrTooLarge above this many bytes.
	MaxSize int64

	// Injected failures, returned verbatim when set.
	SaveErr   error
	ListErr   error
	DeleteErr error
}

// NewMockStorage creates an empty mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.StoredFile),
		fileData: make(map[string][]byte),
		clock:    1700000000000,
	}
}

func (m *MockStorage) Save(originalName string, r io.Reader) (*models.UploadResult, error) {
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if m.MaxSize > 0 && int64(len(data)) > m.MaxSize {
		return nil, storage.ErrTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.clock++
	name := storage.DiskName(originalName, m.clock)
	m.put(name, data)
	return &models.UploadResult{
		Filename:     name,
		OriginalName: originalName,
		Size:         int64(len(data)),
		Path:         "/mock/uploads/" + name,
	}, nil
}

func (m *MockStorage) List() ([]*models.StoredFile, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.StoredFile, 0, len(m.order))
	for _, name := range m.order {
		f := *m.files[name]
		files = append(files, &f)
	}
	return files, nil
}

func (m *MockStorage) Stat(name string) (*models.StoredFile, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *MockStorage) Open(name string) (io.ReadCloser, *models.StoredFile, error) {
	info, err := m.Stat(name)
	if err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return io.NopCloser(bytes.NewReader(m.fileData[name])), info, nil
}

func (m *MockStorage) Delete(name string) (*models.StoredFile, error) {
	info, err := m.Stat(name)
	if err != nil {
		return nil, err
	}
	if m.DeleteErr != nil {
		return nil, m.DeleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, name)
	delete(m.fileData, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return info, nil
}

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddFile stores data under an exact disk name
func (m *MockStorage) AddFile(name string, data []byte) *models.StoredFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(name, data)
}

// GetFileData returns the file content
func (m *MockStorage) GetFileData(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[name]
	return data, ok
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

func (m *MockStorage) put(name string, data []byte) *models.StoredFile {
	if _, exists := m.files[name]; !exists {
		m.order = append(m.order, name)
	}
	file := &models.StoredFile{
		Filename:   name,
		Size:       int64(len(data)),
		UploadTime: time.UnixMilli(m.clock),
	}
	m.files[name] = file
	m.fileData[name] = data
	return file
}
