package yaml

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ochairo/tfpublish/internal/domain/entities"
)

// ConfigRepository implements repositories.ConfigRepository using YAML files
type ConfigRepository struct {
	parser *ConfigParser
}

// NewConfigRepository creates a new YAML-based config repository
func NewConfigRepository() *ConfigRepository {
	return &ConfigRepository{
		parser: NewConfigParser(),
	}
}

// LoadConfig reads a publish configuration file. A relative public key path
// is resolved against the directory holding the configuration file.
func (r *ConfigRepository) LoadConfig(_ context.Context, path string) (*entities.PublishConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config not found: %s", path)
	}

	cfg, err := r.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}

	if key := cfg.Signing.PublicKeyPath; key != "" && !filepath.IsAbs(key) {
		cfg.Signing.PublicKeyPath = filepath.Join(filepath.Dir(path), key)
	}

	return cfg, nil
}
