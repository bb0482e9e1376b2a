// Package provider defines the immutable provider descriptors the router
// routes across. A descriptor binds canonical model ids to the provider's
// own model ids and carries the effective rate limits for each binding.
// Descriptors are built once at construction and never mutated.
package provider

// Kind identifies a configured provider kind.
type Kind string

// Built-in provider kinds. All speak the OpenAI-compatible
// chat/completions protocol.
const (
	KindGroq       Kind = "groq"
	KindCerebras   Kind = "cerebras"
	KindSambaNova  Kind = "sambanova"
	KindTogether   Kind = "together"
	KindOpenRouter Kind = "openrouter"
)

// ModelRecord binds a canonical model id to the provider-specific id and
// the limits the provider enforces for it.
type ModelRecord struct {
	// CanonicalID is the catalog-wide model id.
	CanonicalID string `yaml:"canonical" json:"canonical"`

	// ProviderID is the id the provider expects on the wire.
	ProviderID string `yaml:"id" json:"id"`

	// Limits are the effective rate limits for this binding.
	Limits RateLimits `yaml:"limits" json:"limits"`
}

// Provider describes one configured upstream. Immutable after load.
type Provider struct {
	Kind        Kind          `yaml:"name" json:"name"`
	DisplayName string        `yaml:"display_name" json:"display_name"`
	BaseURL     string        `yaml:"base_url" json:"base_url"`
	APIKey      string        `yaml:"-" json:"-"`
	Priority    int           `yaml:"priority" json:"priority"`
	FreeCredits bool          `yaml:"is_free_credits" json:"is_free_credits"`
	Models      []ModelRecord `yaml:"models" json:"models"`
}

// Name returns the provider kind as a plain string.
func (p *Provider) Name() string { return string(p.Kind) }

// Model returns the record for a canonical id, if this provider binds it.
func (p *Provider) Model(canonicalID string) (ModelRecord, bool) {
	for _, m := range p.Models {
		if m.CanonicalID == canonicalID {
			return m, true
		}
	}
	return ModelRecord{}, false
}
