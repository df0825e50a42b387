package flags

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"jobflow/internal/domain/model"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var DefaultsFS embed.FS

const DefaultsFile = "defaults.yaml"

type seedFile struct {
	Flags []struct {
		Name        string `yaml:"name"`
		Enabled     bool   `yaml:"enabled"`
		Description string `yaml:"description"`
	} `yaml:"flags"`
}

// LoadDefaults reads the seed list at path from fsys.
func LoadDefaults(fsys fs.FS, path string) ([]*model.FeatureFlag, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read flag defaults %s: %w", path, err)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse flag defaults: %w", err)
	}

	now := time.Now()
	seen := make(map[string]struct{}, len(f.Flags))
	out := make([]*model.FeatureFlag, 0, len(f.Flags))
	for _, s := range f.Flags {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("flag defaults: entry without name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("flag defaults: duplicate flag %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, &model.FeatureFlag{
			Name:        name,
			Enabled:     s.Enabled,
			Description: s.Description,
			UpdatedAt:   now,
		})
	}
	return out, nil
}
