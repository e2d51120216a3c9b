// Package catalog holds the AI models users can pick from. The list is
// declared in embedded YAML files, one per provider, and synced into the
// ai_models table at startup.
package catalog

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"parley/internal/domain/models"
	"parley/internal/domain/repositories"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Catalog is the parsed set of provider files
type Catalog struct {
	providers []ProviderFile
}

// Load parses the embedded provider files
func Load() (*Catalog, error) {
	return LoadFS(configFiles, "config")
}

// LoadFS parses every *.yaml file in dir of fsys. Exactly one model across all
// files must be marked default.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list catalog files: %w", err)
	}
	sort.Strings(names)

	c := &Catalog{}
	seen := make(map[string]string)
	defaults := 0
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		var pf ProviderFile
		if err := yaml.Unmarshal(data, &pf); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
		}
		if pf.Provider == "" {
			return nil, fmt.Errorf("%s: provider is required", name)
		}

		for _, m := range pf.Models {
			if other, dup := seen[m.Name]; dup {
				return nil, fmt.Errorf("%s: model %s already declared in %s", name, m.Name, other)
			}
			seen[m.Name] = name
			if m.Default {
				defaults++
			}
		}
		c.providers = append(c.providers, pf)
	}

	if defaults != 1 {
		return nil, fmt.Errorf("catalog must declare exactly one default model, found %d", defaults)
	}
	return c, nil
}

// Providers returns the provider names in the catalog
func (c *Catalog) Providers() []string {
	out := make([]string, len(c.providers))
	for i, p := range c.providers {
		out[i] = p.Provider
	}
	return out
}

// Models returns every declared model as an AIModel row (without IDs)
func (c *Catalog) Models() []models.AIModel {
	var out []models.AIModel
	for _, p := range c.providers {
		for _, m := range p.Models {
			out = append(out, models.AIModel{
				Name:        m.Name,
				Provider:    p.Provider,
				Description: m.Description,
				IsDefault:   m.Default,
				Active:      !m.Disabled,
			})
		}
	}
	return out
}

// Sync upserts the catalog into repo. Models whose provider is not available
// (e.g. missing API key) are stored inactive so users cannot select them.
func (c *Catalog) Sync(ctx context.Context, repo repositories.AIModelRepository, available func(provider string) bool, logger *slog.Logger) error {
	for _, m := range c.Models() {
		if !available(m.Provider) {
			m.Active = false
		}
		if err := repo.Upsert(ctx, &m); err != nil {
			return fmt.Errorf("sync model %s: %w", m.Name, err)
		}
		logger.Debug("ai model synced",
			"id", m.ID,
			"name", m.Name,
			"provider", m.Provider,
			"active", m.Active,
		)
	}
	return nil
}
