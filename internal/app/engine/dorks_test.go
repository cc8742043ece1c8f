package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDorks(t *testing.T) {
	t.Run("returns full catalog in fixed order", func(t *testing.T) {
		queries := Dorks("example.com")
		require.Len(t, queries, 10)
		assert.Equal(t, `filename:.env "example.com"`, queries[0])
		assert.Equal(t, `"example.com" password`, queries[1])
		assert.Equal(t, `filename:.yml "example.com" password`, queries[9])
	})

	t.Run("embeds the domain in every query", func(t *testing.T) {
		for _, query := range Dorks("acme.io") {
			assert.Contains(t, query, `"acme.io"`)
		}
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		first := Dorks("example.com")
		second := Dorks("example.com")
		assert.Equal(t, first, second)
	})

	t.Run("no query collisions", func(t *testing.T) {
		seen := make(map[string]struct{})
		for _, query := range Dorks("example.com") {
			_, dup := seen[query]
			assert.False(t, dup, "duplicate query: %s", query)
			seen[query] = struct{}{}
		}
	})
}

func TestDorksDomainIsolation(t *testing.T) {
	a := Dorks("first.example")
	b := Dorks("second.example")
	for i := range a {
		assert.NotEqual(t, a[i], b[i])
		assert.Equal(t,
			strings.ReplaceAll(a[i], "first.example", "X"),
			strings.ReplaceAll(b[i], "second.example", "X"),
			"templates must differ only in the domain")
	}
}
