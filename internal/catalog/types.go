package catalog

import "gopkg.in/yaml.v3"

// ModelEntry is one model declared in a provider file
type ModelEntry struct {
	// Model name (set during YAML unmarshaling from the map key)
	Name string `yaml:"-" json:"name"`

	Description string `yaml:"description" json:"description"`
	Default     bool   `yaml:"default" json:"default"`
	Disabled    bool   `yaml:"disabled" json:"disabled"`
}

// ProviderFile is the content of one config/<provider>.yaml
type ProviderFile struct {
	Provider string       `yaml:"provider" json:"provider"`
	Models   []ModelEntry `yaml:"-" json:"models"` // Ordered slice, populated by custom unmarshaler
}

// UnmarshalYAML implements custom YAML unmarshaling to preserve model order from YAML file
func (p *ProviderFile) UnmarshalYAML(node *yaml.Node) error {
	type modelsOnly struct {
		Provider string                `yaml:"provider"`
		Models   map[string]ModelEntry `yaml:"models"`
	}
	var m modelsOnly
	if err := node.Decode(&m); err != nil {
		return err
	}
	p.Provider = m.Provider

	// node.Content alternates key, value; walk the models mapping in file order
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "models" {
			continue
		}
		modelsNode := node.Content[i+1]
		for j := 0; j+1 < len(modelsNode.Content); j += 2 {
			name := modelsNode.Content[j].Value
			if entry, ok := m.Models[name]; ok {
				entry.Name = name
				p.Models = append(p.Models, entry)
			}
		}
		break
	}
	return nil
}
