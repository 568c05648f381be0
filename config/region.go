package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

// DefaultRegionPath is the minimap region file next to the executable's
// working directory.
const DefaultRegionPath = "minimap_config.json"

type regionFile struct {
	Region *[4]int `json:"region"`
}

// LoadRegion reads the minimap region. ok is false when the file is missing,
// the region is null or it has no area.
func LoadRegion(path string) (r geom.Rect, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return geom.Rect{}, false, nil
		}
		return geom.Rect{}, false, fmt.Errorf("read region: %w", err)
	}
	var f regionFile
	if err := sonic.Unmarshal(data, &f); err != nil {
		return geom.Rect{}, false, fmt.Errorf("decode region %s: %w", path, err)
	}
	if f.Region == nil {
		return geom.Rect{}, false, nil
	}
	r = geom.Rect(*f.Region)
	if !geom.ValidRect(r) {
		log.Warn().Ints("region", f.Region[:]).Msg("[Config] Ignoring empty minimap region")
		return geom.Rect{}, false, nil
	}
	return r, true, nil
}

// SaveRegion writes r, or null when ok is false.
func SaveRegion(path string, r geom.Rect, ok bool) error {
	var f regionFile
	if ok {
		arr := [4]int(r)
		f.Region = &arr
	}
	data, err := sonic.ConfigStd.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode region: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create region dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write region: %w", err)
	}
	log.Info().Str("path", path).Msg("[Config] Saved minimap region")
	return nil
}
