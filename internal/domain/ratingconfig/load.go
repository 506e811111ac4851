package ratingconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// LoadFile reads a rating configuration from disk. Fields missing from YAML
// and TOML files keep their Default() values; JSON files must be complete
// documents. The result is validated.
func LoadFile(path string) (Configuration, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Configuration{}, fmt.Errorf("read %s: %w", path, err)
		}
		return Parse(raw)
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".toml":
		return loadTOML(path)
	default:
		return Configuration{}, malformed("unsupported configuration file %q", path)
	}
}

func loadYAML(path string) (Configuration, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Configuration{}, fmt.Errorf("load %s: %w", path, err)
	}
	if uma := k.Get("scoring.uma"); uma != nil {
		if list, ok := uma.([]any); !ok || len(list) != len(Configuration{}.Scoring.Uma) {
			return Configuration{}, malformed("scoring.uma must have exactly 4 entries")
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Configuration{}, malformed("%s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func loadTOML(path string) (Configuration, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Configuration{}, malformed("%s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Configuration{}, malformed("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

// LoadDir loads every .json, .yaml, .yml and .toml file in dir, in name
// order.
func LoadDir(dir string) ([]Configuration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var out []Configuration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml", ".toml":
		default:
			continue
		}
		cfg, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
