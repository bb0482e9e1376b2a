// Package providers holds the built-in provider descriptors and the
// registry that creates configured Provider values from them. Each
// descriptor carries the provider's base URL and its model records with
// published free-tier rate limits; callers override what they need at
// construction time.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blueberrycongee/llmroute/pkg/provider"
)

// Descriptor is a static template for one provider kind.
type Descriptor struct {
	Kind        provider.Kind
	DisplayName string
	BaseURL     string

	// FreeCredits marks providers whose default tier runs on
	// promotional credits rather than a standing free tier.
	FreeCredits bool

	Models []provider.ModelRecord
}

var (
	registryMu sync.RWMutex
	registry   = make(map[provider.Kind]Descriptor)
)

// Register adds or replaces a descriptor for a provider kind.
func Register(d Descriptor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Kind] = d
}

// Get returns the descriptor for a provider kind.
func Get(kind provider.Kind) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[kind]
	return d, ok
}

// Kinds returns the registered provider kinds in stable order.
func Kinds() []provider.Kind {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]provider.Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Settings are the per-deployment values applied on top of a descriptor.
type Settings struct {
	APIKey   string
	Priority int

	// BaseURL overrides the descriptor's endpoint when non-empty.
	BaseURL string
}

// Build instantiates a Provider for the kind from its registered
// descriptor and the caller's settings. Model records are copied so the
// caller may adjust limits without touching the registry.
func Build(kind provider.Kind, s Settings) (*provider.Provider, error) {
	d, ok := Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", kind, Kinds())
	}

	baseURL := d.BaseURL
	if s.BaseURL != "" {
		baseURL = s.BaseURL
	}

	models := make([]provider.ModelRecord, len(d.Models))
	copy(models, d.Models)

	return &provider.Provider{
		Kind:        d.Kind,
		DisplayName: d.DisplayName,
		BaseURL:     baseURL,
		APIKey:      s.APIKey,
		Priority:    s.Priority,
		FreeCredits: d.FreeCredits,
		Models:      models,
	}, nil
}

func init() {
	Register(groqDescriptor)
	Register(cerebrasDescriptor)
	Register(sambanovaDescriptor)
	Register(togetherDescriptor)
	Register(openrouterDescriptor)
}
