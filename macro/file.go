package macro

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Save writes l to path, creating parent directories.
func Save(path string, l *Log) error {
	data, err := Marshal(l)
	if err != nil {
		return fmt.Errorf("encode macro: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("path", path).Int("events", l.Len()).Msg("[Macro] Saved")
	return nil
}

// Load reads and validates the macro at path.
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("events", l.Len()).Msg("[Macro] Loaded")
	return l, nil
}
