package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// exportExtensions are the file types the manager tracks
var exportExtensions = map[string]bool{
	".csv":   true,
	".jsonl": true,
	".db":    true,
	".md":    true,
}

// Manager owns an output directory and remembers which exports exist in it
type Manager struct {
	outputDir string
	exports   map[string]bool
	mu        sync.RWMutex
}

// NewManager creates the output directory if needed and scans it for
// existing exports
func NewManager(outputDir string) (*Manager, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		exports:   make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && exportExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			m.exports[entry.Name()] = true
		}
	}
	return nil
}

// Path returns the absolute-or-relative path of name inside the output directory
func (m *Manager) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.outputDir, name)
}

// Exists reports whether an export with this name is present
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	known := m.exports[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(m.Path(name)); err == nil {
		m.mark(name)
		return true
	}
	return false
}

// Open opens name for appending, creating it when missing. The returned
// flag reports whether the file was empty, so callers know to write a header.
func (m *Manager) Open(name string) (*os.File, bool, error) {
	path := m.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, false, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	m.mark(name)
	return f, info.Size() == 0, nil
}

// WriteAtomic writes name through a temporary file and renames it into place
func (m *Manager) WriteAtomic(name string, write func(w io.Writer) error) error {
	filename := m.Path(name)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	err = write(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mark(name)
	return nil
}

func (m *Manager) mark(name string) {
	m.mu.Lock()
	m.exports[name] = true
	m.mu.Unlock()
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Exports returns the known export names in sorted order
func (m *Manager) Exports() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
