package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerylCAtieno/travel-extract/internal/category"
)

const flightText = "Flight UA456 departs SFO March 15 2024 10:30 arrives JFK 19:15"

func TestBuildListsEveryFieldVerbatim(t *testing.T) {
	b := NewBuilder(0)
	for _, def := range category.All() {
		def := def
		t.Run(string(def.Category), func(t *testing.T) {
			p, truncated := b.Build(&def, flightText)
			assert.False(t, truncated)
			for _, f := range def.Fields() {
				assert.Contains(t, p, "- "+f+"\n")
			}
			assert.Contains(t, p, "null")
			assert.Contains(t, p, "single well-formed JSON object")
			assert.Contains(t, p, `"documentType" with the value "`+string(def.Category)+`"`)
			assert.Contains(t, p, flightText)
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	def, ok := category.Lookup(category.Flight)
	require.True(t, ok)

	b := NewBuilder(0)
	first, _ := b.Build(&def, flightText)
	for i := 0; i < 20; i++ {
		again, _ := NewBuilder(0).Build(&def, flightText)
		assert.Equal(t, first, again)
		assert.Equal(t, Key(first), Key(again))
	}

	first, _ = b.Build(nil, flightText)
	again, _ := b.Build(nil, flightText)
	assert.Equal(t, first, again)
}

func TestBuildUnknownCategoryAsksToInfer(t *testing.T) {
	p, _ := NewBuilder(0).Build(nil, flightText)

	assert.Contains(t, p, "infer")
	assert.Contains(t, p, "flight, accommodation, event, transport, cruise")
	assert.Contains(t, p, `"unknown"`)
	for _, def := range category.All() {
		for _, f := range def.Fields() {
			assert.Contains(t, p, "- "+f+"\n")
		}
	}
}

func TestTruncate(t *testing.T) {
	b := NewBuilder(5)

	out, cut := b.Truncate("héllo wörld")
	assert.True(t, cut)
	assert.Equal(t, "héllo", out)

	out, cut = b.Truncate("short")
	assert.False(t, cut)
	assert.Equal(t, "short", out)

	def, _ := category.Lookup(category.Event)
	p, truncated := b.Build(&def, "abcdefghij")
	assert.True(t, truncated)
	assert.Contains(t, p, "Document text (truncated):\n\"\"\"\nabcde\n\"\"\"")
	assert.NotContains(t, p, "abcdef")
}

func TestDefaultLimit(t *testing.T) {
	long := strings.Repeat("x", DefaultMaxInputChars+10)
	var b *Builder
	out, cut := b.Truncate(long)
	assert.True(t, cut)
	assert.Len(t, out, DefaultMaxInputChars)
}
