package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileModelStore persists fitted model states as JSON files so a restart
// can load instead of retrain. Writes go through a temp file and rename
// so readers never observe a partial file.
type FileModelStore struct {
	dir string
}

// NewFileModelStore creates a model store rooted at dir.
func NewFileModelStore(dir string) (*FileModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("model store dir: %w", err)
	}
	return &FileModelStore{dir: dir}, nil
}

func (s *FileModelStore) SaveForecastState(seriesID string, state any) error {
	return s.save(forecastFileName(seriesID), state)
}

func (s *FileModelStore) LoadForecastState(seriesID string, dest any) (bool, error) {
	return s.load(forecastFileName(seriesID), dest)
}

func (s *FileModelStore) SaveBaseline(state any) error {
	return s.save("baseline.json", state)
}

func (s *FileModelStore) LoadBaseline(dest any) (bool, error) {
	return s.load("baseline.json", dest)
}

func (s *FileModelStore) save(name string, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal model state: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write model state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace model state: %w", err)
	}
	return nil
}

func (s *FileModelStore) load(name string, dest any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read model state: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("unmarshal model state: %w", err)
	}
	return true, nil
}

func forecastFileName(seriesID string) string {
	// series ids come from config; sanitize anyway
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, seriesID)
	return "forecast_" + safe + ".json"
}
