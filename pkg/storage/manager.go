package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"msgdump/pkg/parser"
)

// ErrUnsafeFilename is returned when an attachment name reduces to
// nothing usable as a file name
var ErrUnsafeFilename = errors.New("storage: unsafe file name")

// MediaTypes lists the data types stored as downloaded files, in the
// subdirectory layout order
var MediaTypes = []parser.DataType{
	parser.DataPictures,
	parser.DataGifs,
	parser.DataVideos,
	parser.DataFiles,
}

// Manager stores downloaded media under one conversation directory, one
// subdirectory per media type
type Manager struct {
	baseDir string
	saved   map[string]bool
	mu      sync.RWMutex
}

// NewManager creates a manager rooted at the conversation directory,
// creating the media subdirectories and scanning them for files from
// earlier runs
func NewManager(conversationDir string) (*Manager, error) {
	for _, kind := range MediaTypes {
		if err := os.MkdirAll(filepath.Join(conversationDir, string(kind)), 0755); err != nil {
			return nil, fmt.Errorf("failed to create media directory: %w", err)
		}
	}

	manager := &Manager{
		baseDir: conversationDir,
		saved:   make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles records files already present in the media
// subdirectories so repeated runs skip them
func (m *Manager) scanExistingFiles() error {
	for _, kind := range MediaTypes {
		entries, err := os.ReadDir(filepath.Join(m.baseDir, string(kind)))
		if err != nil {
			return fmt.Errorf("failed to read %s directory: %w", kind, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
				continue
			}
			m.saved[savedKey(kind, entry.Name())] = true
		}
	}

	return nil
}

func savedKey(kind parser.DataType, filename string) string {
	return string(kind) + "/" + filename
}

// safeFilename reduces an attachment name to a bare file name. Remote
// supplied names never get to carry path components.
func safeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return ""
	}
	return base
}

// PathFor returns the deterministic path a file of this type and name is
// stored at
func (m *Manager) PathFor(kind parser.DataType, filename string) (string, error) {
	safe := safeFilename(filename)
	if safe == "" {
		return "", ErrUnsafeFilename
	}
	return filepath.Join(m.baseDir, string(kind), safe), nil
}

// IsDownloaded checks whether a file of this type and name is already on
// disk
func (m *Manager) IsDownloaded(kind parser.DataType, filename string) bool {
	safe := safeFilename(filename)
	if safe == "" {
		return false
	}
	key := savedKey(kind, safe)

	m.mu.RLock()
	cached := m.saved[key]
	m.mu.RUnlock()
	if cached {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.baseDir, string(kind), safe)); err == nil {
		m.mu.Lock()
		m.saved[key] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// Save writes one media file from the given reader and returns its final
// path. The data goes to a temporary file first and is renamed into
// place.
func (m *Manager) Save(kind parser.DataType, filename string, r io.Reader) (string, error) {
	path, err := m.PathFor(kind, filename)
	if err != nil {
		return "", err
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()

	if copyErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save media data: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved[savedKey(kind, filepath.Base(path))] = true
	m.mu.Unlock()

	return path, nil
}

// BaseDir returns the conversation directory the manager stores under
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// SavedCount returns the number of files known to be on disk
func (m *Manager) SavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}
