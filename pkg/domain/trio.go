package domain

// DefaultVariation is the seed used when a request omits one.
const DefaultVariation = "test"

// Trio is the unit of work for a render: three programs and a seed.
// Identical trios with identical variations produce identical geometry.
type Trio struct {
	Domain    string `json:"domain" yaml:"domain" mapstructure:"domain"`
	Substance string `json:"substance" yaml:"substance" mapstructure:"substance"`
	Style     string `json:"style" yaml:"style" mapstructure:"style"`
	Variation string `json:"variation,omitempty" yaml:"variation,omitempty" mapstructure:"variation"`
}

// Trio file names as laid out on disk for the worker subprocess.
const (
	DomainFile    = "domain.dsl"
	SubstanceFile = "substance.dsl"
	StyleFile     = "style.dsl"
)

// VariationEnv carries the variation into the worker subprocess.
const VariationEnv = "TRIO_ARG_VARIATION"
