package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/selfheal/internal/foundation/normalization"
)

// BackendKind identifies a code-generation backend family.
type BackendKind string

const (
	BackendGemini    BackendKind = "gemini"
	BackendOpenAI    BackendKind = "openai"
	BackendOllama    BackendKind = "ollama"
	BackendAnthropic BackendKind = "anthropic"
)

var backendKindNormalizer = normalization.NewNormalizer("backend kind", map[string]BackendKind{
	"gemini":    BackendGemini,
	"google":    BackendGemini,
	"openai":    BackendOpenAI,
	"ollama":    BackendOllama,
	"anthropic": BackendAnthropic,
	"claude":    BackendAnthropic,
}, "")

// BackendSpec is a parsed chain entry.
type BackendSpec struct {
	Kind  BackendKind
	Model string
}

// String renders the canonical kind:model identifier.
func (b BackendSpec) String() string {
	return string(b.Kind) + ":" + b.Model
}

// ParseBackendSpec parses "kind:model". A bare model name is a Gemini model.
func ParseBackendSpec(raw string) (BackendSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return BackendSpec{}, fmt.Errorf("empty backend identifier")
	}
	kindPart, model, found := strings.Cut(raw, ":")
	if !found {
		return BackendSpec{Kind: BackendGemini, Model: raw}, nil
	}
	// Ollama tags contain a colon (llama3:8b) so only a known kind prefix splits.
	kind, err := backendKindNormalizer.Parse(kindPart)
	if err != nil {
		return BackendSpec{Kind: BackendGemini, Model: raw}, nil
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return BackendSpec{}, fmt.Errorf("backend %q has no model", raw)
	}
	return BackendSpec{Kind: kind, Model: model}, nil
}

// BackendSpecs parses the whole chain in order.
func (p ProvidersConfig) BackendSpecs() ([]BackendSpec, error) {
	out := make([]BackendSpec, 0, len(p.Chain))
	for _, raw := range p.Chain {
		spec, err := ParseBackendSpec(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	return out, nil
}
