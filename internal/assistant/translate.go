package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/JonMunkholm/salesunifier/internal/logging"
)

const translatePrompt = `Translate these Korean Excel headers to English standard sales data fields.
Return ONLY a JSON object mapping Korean headers to English equivalents.

Korean headers: %s

Standard English fields: %s

Example: {"날짜": "date", "제품명": "product_name", "수량": "quantity"}`

// Translator implements core.HeaderTranslator.
type Translator struct {
	completer Completer
	cache     MappingCache
}

// Ensure Translator implements core.HeaderTranslator.
var _ core.HeaderTranslator = (*Translator)(nil)

// NewTranslator creates a translator. A nil cache disables caching.
func NewTranslator(c Completer, cache MappingCache) *Translator {
	if cache == nil {
		cache = NopCache{}
	}
	return &Translator{completer: c, cache: cache}
}

// Translate asks the assistant for a header mapping. Only targets in the
// canonical vocabulary are kept. A response that is not a JSON object yields
// *core.TranslationParseError and nothing is cached.
func (t *Translator) Translate(ctx context.Context, headers []string) (core.HeaderMapping, error) {
	logger := logging.FromContext(ctx)
	key := CacheKey(headers)
	if cached, ok, err := t.cache.Get(ctx, key); err != nil {
		logger.Warn("mapping cache read failed", "error", err)
	} else if ok {
		logger.Debug("header mapping served from cache", "headers", len(headers))
		return core.BuildHeaderMapping(headers, cached), nil
	}

	prompt, err := TranslatePrompt(headers)
	if err != nil {
		return nil, err
	}

	response, err := t.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("translate headers: %w", err)
	}

	translations, err := parseTranslations(response)
	if err != nil {
		return nil, &core.TranslationParseError{Response: response, Err: err}
	}

	if err := t.cache.Put(ctx, key, translations); err != nil {
		logger.Warn("mapping cache write failed", "error", err)
	}
	return core.BuildHeaderMapping(headers, translations), nil
}

// TranslatePrompt renders the header translation prompt.
func TranslatePrompt(headers []string) (string, error) {
	if headers == nil {
		headers = []string{}
	}
	list, err := json.Marshal(headers)
	if err != nil {
		return "", fmt.Errorf("marshal headers: %w", err)
	}
	return fmt.Sprintf(translatePrompt, list, strings.Join(core.CanonicalFields, ", ")), nil
}

// parseTranslations reads raw header -> target pairs. Non-string targets are
// skipped; BuildHeaderMapping decides which targets are usable.
func parseTranslations(response string) (map[string]string, error) {
	pairs, err := ParseObject(response)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		if s, ok := kv.Value.(string); ok {
			out[kv.Key] = s
		}
	}
	return out, nil
}
