// Package prompt builds the instruction sent to the generation model.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/BerylCAtieno/travel-extract/internal/category"
)

// DefaultMaxInputChars bounds the document text placed in a prompt, in
// runes. Longer text is cut at the bound.
const DefaultMaxInputChars = 12000

// Builder composes prompts. The zero value uses DefaultMaxInputChars.
type Builder struct {
	MaxInputChars int
}

func NewBuilder(maxInputChars int) *Builder {
	return &Builder{MaxInputChars: maxInputChars}
}

func (b *Builder) limit() int {
	if b == nil || b.MaxInputChars <= 0 {
		return DefaultMaxInputChars
	}
	return b.MaxInputChars
}

// Truncate cuts text to the configured rune bound and reports whether it
// did.
func (b *Builder) Truncate(text string) (string, bool) {
	limit := b.limit()
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// Build returns the instruction for the given category and whether the
// document text was cut to fit. A nil definition asks the model to infer
// the category from the text.
func (b *Builder) Build(def *category.Definition, text string) (string, bool) {
	text, truncated := b.Truncate(text)

	var sb strings.Builder
	sb.WriteString("You extract travel booking details from documents.\n")

	if def != nil {
		sb.WriteString("The document is a ")
		sb.WriteString(def.Description)
		sb.WriteString(" (category \"")
		sb.WriteString(string(def.Category))
		sb.WriteString("\").\n\n")
		sb.WriteString("Extract exactly these fields:\n")
		writeFields(&sb, def.Fields())
		sb.WriteString("\nRules:\n")
		sb.WriteString("- Respond with a single well-formed JSON object and nothing else.\n")
		sb.WriteString("- The object must have the key \"")
		sb.WriteString(category.DocumentTypeKey)
		sb.WriteString("\" with the value \"")
		sb.WriteString(string(def.Category))
		sb.WriteString("\".\n")
		sb.WriteString("- The object must have one key per field above, spelled exactly as listed.\n")
	} else {
		sb.WriteString("The category of the document is unknown; infer it.\n\n")
		sb.WriteString("Categories and their fields:\n")
		for _, d := range category.All() {
			sb.WriteString("\n")
			sb.WriteString(string(d.Category))
			sb.WriteString(" (")
			sb.WriteString(d.Description)
			sb.WriteString("):\n")
			writeFields(&sb, d.Fields())
		}
		sb.WriteString("\nRules:\n")
		sb.WriteString("- Respond with a single well-formed JSON object and nothing else.\n")
		sb.WriteString("- Set \"")
		sb.WriteString(category.DocumentTypeKey)
		sb.WriteString("\" to the inferred category, one of: ")
		sb.WriteString(strings.Join(category.Names(), ", "))
		sb.WriteString(". Use \"")
		sb.WriteString(string(category.Unknown))
		sb.WriteString("\" if none applies.\n")
		sb.WriteString("- Include one key per field of the inferred category, spelled exactly as listed.\n")
	}

	sb.WriteString("- Use null for any field that is not present in the document. Never omit a field.\n")
	sb.WriteString("- Values are strings. Dates are YYYY-MM-DD and times are 24-hour HH:MM when they can be determined.\n")
	sb.WriteString("- Do not invent values.\n")

	sb.WriteString("\nDocument text")
	if truncated {
		sb.WriteString(" (truncated)")
	}
	sb.WriteString(":\n\"\"\"\n")
	sb.WriteString(text)
	sb.WriteString("\n\"\"\"\n")
	return sb.String(), truncated
}

func writeFields(sb *strings.Builder, fields []string) {
	for _, f := range fields {
		sb.WriteString("- ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
}

// Key is the cache key of a prompt.
func Key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
