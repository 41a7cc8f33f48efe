package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// OpenAICounter provides exact token counts for OpenAI models using tiktoken.
type OpenAICounter struct {
	matcher *ModelMatcher

	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewOpenAICounter creates a new OpenAI token counter.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{
		matcher: NewModelMatcher(
			[]string{"gpt-", "o1", "o3", "o4", "chatgpt-"},
			nil,
		),
		codecs: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// SupportsModel returns true for OpenAI models.
func (c *OpenAICounter) SupportsModel(model string) bool {
	return c.matcher.Matches(strings.ToLower(model))
}

// CountPrompt counts tokens for a system plus user exchange, including the
// chat framing overhead.
func (c *OpenAICounter) CountPrompt(model, system, user string) (int, error) {
	codec, err := c.codec(model)
	if err != nil {
		return 0, err
	}

	// 3 tokens per message + 1 for role, plus 3 for assistant priming.
	const tokensPerMessage, tokensPerRole, priming = 3, 1, 3

	total := priming
	for _, text := range []string{system, user} {
		if text == "" {
			continue
		}
		ids, _, err := codec.Encode(text)
		if err != nil {
			return 0, err
		}
		total += tokensPerMessage + tokensPerRole + len(ids)
	}
	return total, nil
}

func (c *OpenAICounter) codec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(modelFor(model)); err == nil {
		return codec, nil
	}

	encoding := encodingFor(model)

	c.mu.RLock()
	cached, ok := c.codecs[encoding]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.mu.Lock()
	c.codecs[encoding] = codec
	c.mu.Unlock()
	return codec, nil
}

// modelFor maps a model string to the tokenizer's model constant.
func modelFor(model string) tokenizer.Model {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case strings.HasPrefix(model, "o3-mini"):
		return tokenizer.O3Mini
	case model == "o3" || strings.HasPrefix(model, "o3-"):
		return tokenizer.O3
	case strings.HasPrefix(model, "o4-mini"):
		return tokenizer.O4Mini
	case strings.HasPrefix(model, "o1-mini"):
		return tokenizer.O1Mini
	case model == "o1" || strings.HasPrefix(model, "o1-"):
		return tokenizer.O1
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	default:
		return tokenizer.Model(model)
	}
}

// encodingFor picks the encoding for models the tokenizer does not know.
// Everything from gpt-4o on uses o200k_base.
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
