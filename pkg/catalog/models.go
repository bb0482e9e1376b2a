package catalog

// builtinModels is the default canonical model table. Tiers follow the
// catalog-wide 1..5 capability scale.
var builtinModels = []*Model{
	{
		ID:      "deepseek-r1",
		Tier:    5,
		Family:  "deepseek",
		Aliases: []string{"r1", "deepseek-reasoner"},
	},
	{
		ID:      "llama-3.1-405b",
		Tier:    4,
		Family:  "llama",
		Aliases: []string{"llama-405b", "llama3.1-405b"},
	},
	{
		ID:      "deepseek-v3",
		Tier:    4,
		Family:  "deepseek",
		Aliases: []string{"deepseek-chat"},
	},
	{
		ID:      "llama-3.3-70b",
		Tier:    3,
		Family:  "llama",
		Aliases: []string{"llama-70b", "llama3.3-70b", "llama-3.3-70b-instruct"},
	},
	{
		ID:      "qwen-2.5-72b",
		Tier:    3,
		Family:  "qwen",
		Aliases: []string{"qwen-72b", "qwen2.5-72b-instruct"},
	},
	{
		ID:      "qwen-3-32b",
		Tier:    2,
		Family:  "qwen",
		Aliases: []string{"qwen-32b", "qwen3-32b"},
	},
	{
		ID:      "gemma-2-27b",
		Tier:    2,
		Family:  "gemma",
		Aliases: []string{"gemma-27b", "gemma2-27b-it"},
	},
	{
		ID:      "llama-3.1-8b",
		Tier:    1,
		Family:  "llama",
		Aliases: []string{"llama-8b", "llama3.1-8b"},
	},
	{
		ID:      "gemma-2-9b",
		Tier:    1,
		Family:  "gemma",
		Aliases: []string{"gemma-9b", "gemma2-9b-it"},
	},
}

// builtinGenericAliases maps generic tokens to tier predicates.
// "best" and friends resolve to candidate sets, not single models.
var builtinGenericAliases = map[string]GenericAlias{
	"best":       {MinTier: 1},
	"best-large": {Tier: 3},
	"best-small": {Tier: 1},
	"fast":       {Tier: 1},
	"70b":        {Tier: 3},
	"32b":        {Tier: 2},
	"8b":         {Tier: 1},
}
