// Package tokens estimates LLM token counts with the cl100k_base encoding.
package tokens

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"
)

var (
	codec     tokenizer.Codec
	codecErr  error
	codecOnce sync.Once
)

func load() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
		if codecErr != nil {
			log.Warn().Err(codecErr).Msg("Tokenizer unavailable, falling back to length estimate")
		}
	})
	return codec, codecErr
}

// Count returns the number of cl100k tokens in text. Without a usable codec
// it falls back to one token per four bytes.
func Count(text string) int {
	if text == "" {
		return 0
	}
	enc, err := load()
	if err == nil {
		if ids, _, err := enc.Encode(text); err == nil {
			return len(ids)
		}
	}
	return (len(text) + 3) / 4
}

// CountAll sums Count over texts.
func CountAll(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += Count(t)
	}
	return total
}
