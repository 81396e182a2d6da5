package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// History archives every run report under a data directory so past
// rotation passes can be inspected after the fact.
type History struct {
	baseDir string
	mu      sync.RWMutex
}

// NewHistory creates a history archive rooted at baseDir.
func NewHistory(baseDir string) *History {
	return &History{baseDir: baseDir}
}

// DefaultHistoryDir returns the default archive directory.
func DefaultHistoryDir() string {
	if testDir := os.Getenv("IAMROTATE_HISTORY_DIR"); testDir != "" {
		return testDir
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "iamrotate", "history")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "iamrotate", "history")
	}
	return filepath.Join(os.TempDir(), "iamrotate", "history")
}

// Save archives a report. Filenames sort chronologically.
func (h *History) Save(r *Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(h.baseDir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	filename := filepath.Join(h.baseDir, fmt.Sprintf("%s.json", r.GeneratedAt.Format("20060102-150405")))
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	return nil
}

// Entry summarizes one archived run.
type Entry struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Executed    bool      `json:"executed"`
	Passes      int       `json:"passes"`
	Fails       int       `json:"fails"`
	Notified    int       `json:"notified"`
}

// List returns summaries of archived runs, newest first, up to limit
// (limit <= 0 means all).
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	files, err := os.ReadDir(h.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name() > files[j].Name()
	})

	var entries []Entry
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.baseDir, file.Name()))
		if err != nil {
			continue
		}
		var r Report
		if err := json.Unmarshal(data, &r); err != nil {
			continue
		}

		notified := 0
		for _, row := range r.Passes {
			if row.Notified {
				notified++
			}
		}
		entries = append(entries, Entry{
			RunID:       r.RunID,
			GeneratedAt: r.GeneratedAt,
			Executed:    r.Executed,
			Passes:      len(r.Passes),
			Fails:       len(r.Fails),
			Notified:    notified,
		})
		if limit > 0 && len(entries) >= limit {
			break
		}
	}

	return entries, nil
}
