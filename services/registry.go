package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"pipes-runner-server/models"
	"pipes-runner-server/runner"
)

var ErrAssetNotFound = errors.New("asset not found")

type assetsFile struct {
	Assets []models.AssetDefinition `yaml:"assets"`
}

// AssetRegistry holds the asset definitions loaded at startup. It is read-only
// after construction.
type AssetRegistry struct {
	anchor string
	assets map[string]models.AssetDefinition
}

// LoadAssetRegistry reads asset definitions from a YAML file. Relative worker
// commands are resolved against the file's directory.
func LoadAssetRegistry(path string) (*AssetRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assets file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return ParseAssetRegistry(data, filepath.Dir(abs))
}

// ParseAssetRegistry parses YAML asset definitions anchored at dir.
func ParseAssetRegistry(data []byte, dir string) (*AssetRegistry, error) {
	var f assetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse assets file: %w", err)
	}

	r := &AssetRegistry{anchor: dir, assets: make(map[string]models.AssetDefinition, len(f.Assets))}
	for i, def := range f.Assets {
		if def.Key == "" {
			return nil, fmt.Errorf("asset #%d: key is required", i+1)
		}
		if def.Command == "" {
			return nil, fmt.Errorf("asset %s: command is required", def.Key)
		}
		if _, dup := r.assets[def.Key]; dup {
			return nil, fmt.Errorf("asset %s: defined twice", def.Key)
		}
		switch runner.MessageTransport(def.MessageTransport) {
		case "", runner.TransportFile, runner.TransportStdio:
		default:
			return nil, fmt.Errorf("asset %s: unknown message_transport %q", def.Key, def.MessageTransport)
		}
		switch runner.ContextInjection(def.ContextInjection) {
		case "", runner.InjectEnv, runner.InjectFile:
		default:
			return nil, fmt.Errorf("asset %s: unknown context_injection %q", def.Key, def.ContextInjection)
		}
		def.Command = runner.ResolveExecutable(dir, def.Command)
		r.assets[def.Key] = def
	}
	return r, nil
}

// Get returns the definition for key
func (r *AssetRegistry) Get(key string) (models.AssetDefinition, error) {
	def, ok := r.assets[key]
	if !ok {
		return models.AssetDefinition{}, fmt.Errorf("%w: %s", ErrAssetNotFound, key)
	}
	return def, nil
}

// List returns all definitions ordered by key
func (r *AssetRegistry) List() []models.AssetDefinition {
	defs := make([]models.AssetDefinition, 0, len(r.assets))
	for _, def := range r.assets {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs
}

// Anchor is the directory relative commands were resolved against
func (r *AssetRegistry) Anchor() string {
	return r.anchor
}
