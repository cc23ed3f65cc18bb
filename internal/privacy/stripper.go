// Package privacy strips content that must never be stored: <private> spans,
// injected <unimem-context> spans and generated context-file blocks.
package privacy

import (
	"regexp"
	"strings"

	"github.com/GoSecreto/UniMem/internal/render"
)

var (
	// privateTagRegex matches <private>...</private> tags
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// memoryTagRegex matches <unimem-context>...</unimem-context> tags
	memoryTagRegex = regexp.MustCompile(`(?s)<unimem-context>.*?</unimem-context>`)

	contextBlockRegex = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(render.StartMarker) + `.*?` + regexp.QuoteMeta(render.EndMarker))
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// StripMemoryTags removes all <unimem-context>...</unimem-context> content from text.
func StripMemoryTags(text string) string {
	return memoryTagRegex.ReplaceAllString(text, "")
}

// StripContextBlocks removes generated UNIMEM:START/END blocks, so a tool
// that reads a context file does not feed the block back into memory.
func StripContextBlocks(text string) string {
	return contextBlockRegex.ReplaceAllString(text, "")
}

// StripAllTags removes private spans, memory context tags and context blocks.
func StripAllTags(text string) string {
	text = StripPrivateTags(text)
	text = StripMemoryTags(text)
	return StripContextBlocks(text)
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	stripped := StripPrivateTags(text)
	return strings.TrimSpace(stripped) == ""
}

// Clean performs full privacy cleaning on text.
// This is the main function to use before storing any user content.
func Clean(text string) string {
	return strings.TrimSpace(StripAllTags(text))
}

// CleanAll cleans every element and drops the ones left empty.
func CleanAll(items []string) []string {
	var out []string
	for _, item := range items {
		if c := Clean(item); c != "" {
			out = append(out, c)
		}
	}
	return out
}
