package catalog

import (
	"gopkg.in/yaml.v3"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/provider"
)

// modelsDoc is the YAML shape of the models source.
type modelsDoc struct {
	Models         []*Model                `yaml:"models"`
	GenericAliases map[string]GenericAlias `yaml:"generic_aliases"`
}

// providersDoc is the YAML shape of the providers source.
type providersDoc struct {
	Providers []providerDoc `yaml:"providers"`
}

type providerDoc struct {
	Name        string            `yaml:"name"`
	DisplayName string            `yaml:"display_name"`
	BaseURL     string            `yaml:"base_url"`
	Defaults    providerDefaults  `yaml:"defaults"`
	Models      []providerModelDoc `yaml:"models"`
}

type providerDefaults struct {
	Limits provider.RateLimits `yaml:"limits"`
}

type providerModelDoc struct {
	Canonical string               `yaml:"canonical"`
	ID        string               `yaml:"id"`
	Limits    *provider.RateLimits `yaml:"limits"`
}

// LoadBundle parses the two YAML sources into a catalog and the provider
// descriptors it validates. Per-model limits override the provider's
// defaults field-wise. Any reference to an unknown canonical id fails
// loading with a ConfigurationError naming both sides.
func LoadBundle(modelsYAML, providersYAML []byte) (*Catalog, []*provider.Provider, error) {
	var models modelsDoc
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		return nil, nil, llmerrors.NewConfigurationError("parse models source: %v", err)
	}
	if len(models.Models) == 0 {
		return nil, nil, llmerrors.NewConfigurationError("models source declares no models")
	}

	c := NewEmpty()
	for _, m := range models.Models {
		if m.ID == "" {
			return nil, nil, llmerrors.NewConfigurationError("model entry missing id")
		}
		if m.Tier < 1 || m.Tier > 5 {
			return nil, nil, llmerrors.NewConfigurationError("model %s has tier %d outside 1..5", m.ID, m.Tier)
		}
		c.addModel(m)
	}
	for name, g := range models.GenericAliases {
		if (g.Tier > 0) == (g.MinTier > 0) {
			return nil, nil, llmerrors.NewConfigurationError(
				"generic alias %s must set exactly one of tier or min_tier", name)
		}
		c.generics[name] = g
	}

	var docs providersDoc
	if err := yaml.Unmarshal(providersYAML, &docs); err != nil {
		return nil, nil, llmerrors.NewConfigurationError("parse providers source: %v", err)
	}

	providers := make([]*provider.Provider, 0, len(docs.Providers))
	for _, doc := range docs.Providers {
		p := &provider.Provider{
			Kind:        provider.Kind(doc.Name),
			DisplayName: doc.DisplayName,
			BaseURL:     doc.BaseURL,
		}
		for _, m := range doc.Models {
			limits := doc.Defaults.Limits
			if m.Limits != nil {
				limits = provider.Merge(limits, *m.Limits)
			}
			p.Models = append(p.Models, provider.ModelRecord{
				CanonicalID: m.Canonical,
				ProviderID:  m.ID,
				Limits:      limits,
			})
		}
		if err := c.ValidateProvider(p); err != nil {
			return nil, nil, err
		}
		providers = append(providers, p)
	}

	return c, providers, nil
}
