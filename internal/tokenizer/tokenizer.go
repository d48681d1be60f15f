// Package tokenizer defines the Provider boundary the by_tokens
// decomposition strategy delegates to. A Provider need not
// be reversible token-id-to-text in the general sense; it only needs to
// account for every byte of the input across its returned tokens, so that
// chunk offsets can be reconstructed by summing prior tokens' lengths.
package tokenizer

import "fmt"

// Token is one tokenizer output unit. Text is the exact source substring
// the token covers; concatenating every Token.Text for an Encode call MUST
// reproduce the original input exactly.
type Token struct {
	ID   int
	Text string
}

// Provider encodes text into Tokens for a named model or encoding. The
// zero value of most implementations is not usable; construct one via a
// concrete package's constructor.
type Provider interface {
	// Name identifies the encoding this provider implements, e.g. "simple"
	// or a model name a caller passed as an option.
	Name() string

	// Encode splits text into Tokens covering it end to end.
	Encode(text string) ([]Token, error)

	// Release frees any resources the provider holds (compiled tables,
	// pooled buffers). Safe to call multiple times.
	Release()
}

// Registry resolves a requested model/encoding name to a Provider,
// falling back to a default when the caller didn't ask for anything
// specific. by_tokens options carry a `model` or `encoding` field; this
// is the seam that turns either into a concrete Provider.
type Registry struct {
	def       Provider
	providers map[string]Provider
}

// NewRegistry builds a Registry whose fallback is def.
func NewRegistry(def Provider) *Registry {
	return &Registry{def: def, providers: map[string]Provider{def.Name(): def}}
}

// Register adds p under its own Name(), so a later Resolve(p.Name()) finds it.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Resolve returns the provider for name, or the registry's default if name
// is empty. Returns an error if name is non-empty and unknown.
func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		return r.def, nil
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tokenizer: %s", name)
	}
	return p, nil
}
