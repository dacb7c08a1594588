package types

// Limits bounds parsing and normalization work so pathological inputs fail
// fast instead of recursing or hanging.
type Limits struct {
	// MaxTokens caps the number of lexed tokens per source.
	MaxTokens int `json:"maxTokens" yaml:"max_tokens"`
	// MaxDepth caps expression nesting and subquery depth.
	MaxDepth int `json:"maxDepth" yaml:"max_depth"`
	// MaxCalls caps the number of chain calls or clauses per source.
	MaxCalls int `json:"maxCalls" yaml:"max_calls"`
}

// DefaultLimits returns the bounds applied when the caller sets none.
func DefaultLimits() Limits {
	return Limits{
		MaxTokens: 4096,
		MaxDepth:  64,
		MaxCalls:  256,
	}
}

// Normalize fills zero fields from the defaults.
func (l Limits) Normalize() Limits {
	def := DefaultLimits()
	if l.MaxTokens <= 0 {
		l.MaxTokens = def.MaxTokens
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = def.MaxDepth
	}
	if l.MaxCalls <= 0 {
		l.MaxCalls = def.MaxCalls
	}
	return l
}
