package provider

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/rustyorb/auto-chat/model"
)

// ModelRef names one model on one registered provider ("ollama:llama3.1").
type ModelRef struct {
	Provider string
	Model    string
}

func (r ModelRef) String() string {
	return r.Provider + ":" + r.Model
}

// ParseModelRef splits "provider:model". Everything after the first colon is
// the model, so Ollama tags like "llama3.1:8b" survive.
func ParseModelRef(s string) (ModelRef, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			ref := ModelRef{Provider: s[:i], Model: s[i+1:]}
			if ref.Provider == "" || ref.Model == "" {
				break
			}
			return ref, nil
		}
	}
	return ModelRef{}, errors.Errorf("invalid model reference %q, expected provider:model", s)
}

// Resolve looks up the provider a reference points at.
func Resolve(registry map[string]model.Provider, ref ModelRef) (model.Provider, error) {
	p, ok := registry[ref.Provider]
	if !ok || p == nil {
		return nil, errors.Errorf("provider %q is not configured", ref.Provider)
	}
	return p, nil
}

// CheckModel reports whether the provider advertises the model. Providers
// whose listing fails or is empty are given the benefit of the doubt, since
// listing is advisory.
func CheckModel(ctx context.Context, p model.Provider, modelName string) bool {
	models := p.ListModels(ctx)
	if len(models) == 0 {
		return true
	}
	if slices.Contains(models, modelName) {
		return true
	}
	log.Warn().
		Str("provider", p.Name()).
		Str("model", modelName).
		Int("available", len(models)).
		Msg("Model is not in the provider's model list")
	return false
}
