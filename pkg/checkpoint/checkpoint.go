package checkpoint

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"igleads/pkg/config"
	"igleads/pkg/logger"
)

// Version is the current checkpoint file format
const Version = 1

// Checkpoint is a snapshot of a traversal taken between handles
type Checkpoint struct {
	RunID       string         `json:"run_id"`
	Seeds       []string       `json:"seeds"`
	MaxDepth    int            `json:"max_depth"`
	MaxProfiles int            `json:"max_profiles"`
	Depth       int            `json:"depth"`
	Visited     []string       `json:"visited"`
	Frontier    []string       `json:"frontier"`
	Next        []string       `json:"next,omitempty"`
	Reexpand    []string       `json:"reexpand,omitempty"`
	Emitted     int            `json:"emitted"`
	Categories  map[string]int `json:"categories,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Version     int            `json:"version"`
}

// Manager reads and writes the checkpoint file for one seed set
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// KeyFor derives a stable file key from a seed list, independent of order
func KeyFor(seeds []string) string {
	sorted := append([]string(nil), seeds...)
	sort.Strings(sorted)
	h := fnv.New64a()
	h.Write([]byte(strings.Join(sorted, "\n")))
	return fmt.Sprintf("%016x", h.Sum64())
}

// DefaultDir returns the checkpoint directory under the XDG data home
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, config.AppName, "checkpoints")
}

// NewManager creates a manager for key inside dir. An empty dir means
// DefaultDir.
func NewManager(dir, key string, log logger.Logger) (*Manager, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", key)),
		logger:         logger.OrDefault(log).WithField("component", "checkpoint"),
	}, nil
}

// Path returns the checkpoint file path
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load reads the checkpoint. It returns nil and no error when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", cp.Version, Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":   cp.RunID,
		"depth":    cp.Depth,
		"visited":  len(cp.Visited),
		"frontier": len(cp.Frontier),
		"emitted":  cp.Emitted,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	cp.Version = Version

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(cp); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":  cp.RunID,
		"depth":   cp.Depth,
		"visited": len(cp.Visited),
		"emitted": cp.Emitted,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}
