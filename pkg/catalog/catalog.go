// Package catalog holds the canonical model descriptors, their aliases,
// and the registered provider bindings. The catalog is built once at
// router construction and is read-only afterwards.
package catalog

import (
	"strings"

	llmerrors "github.com/blueberrycongee/llmroute/pkg/errors"
	"github.com/blueberrycongee/llmroute/pkg/provider"
)

// Model describes one canonical model.
type Model struct {
	// ID is the canonical, catalog-wide id.
	ID string `yaml:"id"`

	// Tier is the quality tier, 1..5, higher is more capable.
	Tier int `yaml:"tier"`

	// Family groups related models (llama, qwen, deepseek, ...).
	Family string `yaml:"family"`

	// Aliases resolve to ID, case-insensitively.
	Aliases []string `yaml:"aliases"`
}

// GenericAlias maps a name like "best-large" to a tier predicate.
// Exactly one of Tier or MinTier is set (non-zero).
type GenericAlias struct {
	Tier    int `yaml:"tier"`
	MinTier int `yaml:"min_tier"`
}

// Matches reports whether a model tier satisfies the predicate.
func (g GenericAlias) Matches(tier int) bool {
	if g.Tier > 0 {
		return tier == g.Tier
	}
	return tier >= g.MinTier
}

// ProviderModel pairs a provider with one of its model records.
type ProviderModel struct {
	Provider *provider.Provider
	Record   provider.ModelRecord
}

// Catalog is the immutable model registry.
type Catalog struct {
	models      map[string]*Model
	aliases     map[string]string // lowercased alias -> canonical id
	userAliases map[string]string // highest precedence, lowercased
	generics    map[string]GenericAlias
	providers   []*provider.Provider
	byCanonical map[string][]ProviderModel
}

// New creates a catalog with the built-in model table and generic aliases.
func New() *Catalog {
	c := &Catalog{
		models:      make(map[string]*Model),
		aliases:     make(map[string]string),
		userAliases: make(map[string]string),
		generics:    make(map[string]GenericAlias),
		byCanonical: make(map[string][]ProviderModel),
	}
	for _, m := range builtinModels {
		c.addModel(m)
	}
	for name, g := range builtinGenericAliases {
		c.generics[strings.ToLower(name)] = g
	}
	return c
}

// NewEmpty creates a catalog without the built-in table. Used by the
// bundle loader, which supplies its own model list.
func NewEmpty() *Catalog {
	return &Catalog{
		models:      make(map[string]*Model),
		aliases:     make(map[string]string),
		userAliases: make(map[string]string),
		generics:    make(map[string]GenericAlias),
		byCanonical: make(map[string][]ProviderModel),
	}
}

func (c *Catalog) addModel(m *Model) {
	c.models[m.ID] = m
	c.aliases[strings.ToLower(m.ID)] = m.ID
	for _, alias := range m.Aliases {
		c.aliases[strings.ToLower(alias)] = m.ID
	}
}

// SetUserAliases installs caller-supplied alias overrides. They take
// precedence over every built-in mapping.
func (c *Catalog) SetUserAliases(aliases map[string]string) {
	for alias, target := range aliases {
		c.userAliases[strings.ToLower(alias)] = target
	}
}

// ValidateProvider checks that every model record of the provider
// references a known canonical id, without indexing the provider.
func (c *Catalog) ValidateProvider(p *provider.Provider) error {
	for _, rec := range p.Models {
		if _, ok := c.models[rec.CanonicalID]; !ok {
			return llmerrors.NewConfigurationError(
				"provider %s model %q references unknown canonical id %q",
				p.Name(), rec.ProviderID, rec.CanonicalID)
		}
	}
	return nil
}

// RegisterProvider validates and indexes a provider's model records.
// Every record must reference a known canonical id.
func (c *Catalog) RegisterProvider(p *provider.Provider) error {
	if err := c.ValidateProvider(p); err != nil {
		return err
	}

	c.providers = append(c.providers, p)
	for _, rec := range p.Models {
		c.byCanonical[rec.CanonicalID] = append(c.byCanonical[rec.CanonicalID], ProviderModel{
			Provider: p,
			Record:   rec,
		})
	}
	return nil
}

// Resolve maps a requested name to a canonical id or generic token.
// User aliases win over built-in aliases; matching is case-insensitive
// on the whole token. Unknown names are returned unchanged so that
// selection can fail with a precise error.
func (c *Catalog) Resolve(name string) string {
	lowered := strings.ToLower(name)
	if target, ok := c.userAliases[lowered]; ok {
		return target
	}
	if _, ok := c.generics[lowered]; ok {
		return lowered
	}
	if target, ok := c.aliases[lowered]; ok {
		return target
	}
	return name
}

// IsGeneric reports whether name is a generic alias such as "best-large".
func (c *Catalog) IsGeneric(name string) bool {
	_, ok := c.generics[strings.ToLower(name)]
	return ok
}

// GenericConfig returns the tier predicate for a generic alias.
func (c *Catalog) GenericConfig(name string) (GenericAlias, bool) {
	g, ok := c.generics[strings.ToLower(name)]
	return g, ok
}

// ModelByID returns the descriptor for a canonical id.
func (c *Catalog) ModelByID(id string) (*Model, bool) {
	m, ok := c.models[id]
	return m, ok
}

// ProvidersSupporting returns every (provider, record) pair that binds
// the canonical id, in registration order.
func (c *Catalog) ProvidersSupporting(canonicalID string) []ProviderModel {
	return c.byCanonical[canonicalID]
}

// ProvidersMatchingGeneric returns every (provider, record) pair whose
// model tier satisfies the predicate.
func (c *Catalog) ProvidersMatchingGeneric(g GenericAlias) []ProviderModel {
	var matches []ProviderModel
	for _, p := range c.providers {
		for _, rec := range p.Models {
			m, ok := c.models[rec.CanonicalID]
			if !ok || !g.Matches(m.Tier) {
				continue
			}
			matches = append(matches, ProviderModel{Provider: p, Record: rec})
		}
	}
	return matches
}

// Providers returns the registered providers in registration order.
func (c *Catalog) Providers() []*provider.Provider {
	return c.providers
}
