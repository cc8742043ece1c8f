package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractorExtract(t *testing.T) {
	e := NewExtractor()

	t.Run("relevant lines become candidates", func(t *testing.T) {
		hit := Hit{
			Repository: "acme/app",
			Path:       "config/.env",
			HTMLURL:    "https://github.com/acme/app/blob/main/config/.env",
			Content:    "DEBUG=false\npassword=hunter2\nAPI_KEY=abcdef0123456789abcd\n",
		}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, "password=hunter2", candidates[0].Matched)
		assert.Equal(t, "API_KEY=abcdef0123456789abcd", candidates[1].Matched)
		assert.Equal(t, "acme/app", candidates[0].Repository)
		assert.Equal(t, "config/.env", candidates[0].FilePath)
		assert.Equal(t, hit.HTMLURL, candidates[0].HTMLURL)
	})

	t.Run("domain mention is relevant without keywords", func(t *testing.T) {
		hit := Hit{
			Repository: "acme/app",
			Path:       "README.md",
			Content:    "Visit https://acme.io for docs\n",
		}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Contains(t, candidates[0].Matched, "acme.io")
	})

	t.Run("excluded path", func(t *testing.T) {
		hit := Hit{
			Repository: "acme/app",
			Path:       "node_modules/pkg/index.js",
			Content:    "password=hunter2\n",
		}
		_, err := e.Extract(hit, "acme.io")
		assert.ErrorIs(t, err, ErrExcludedPath)
	})

	t.Run("no content and no fragments", func(t *testing.T) {
		_, err := e.Extract(Hit{Repository: "acme/app", Path: "main.go"}, "acme.io")
		assert.ErrorIs(t, err, ErrEmptyMatch)
	})

	t.Run("no relevant line", func(t *testing.T) {
		hit := Hit{
			Repository: "acme/app",
			Path:       "main.go",
			Content:    "func run() {}\nreturn nil\n",
		}
		_, err := e.Extract(hit, "acme.io")
		assert.ErrorIs(t, err, ErrEmptyMatch)
	})

	t.Run("fragments used when content is empty", func(t *testing.T) {
		hit := Hit{
			Repository: "acme/app",
			Path:       "settings.py",
			Fragments:  []string{"SECRET_KEY = 'abc'\nDEBUG = True"},
		}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "SECRET_KEY = 'abc'", candidates[0].Matched)
	})

	t.Run("per file cap", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 10; i++ {
			b.WriteString("password=value\n")
		}
		hit := Hit{Repository: "acme/app", Path: ".env", Content: b.String()}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		assert.Len(t, candidates, 5)
	})

	t.Run("raw content truncated", func(t *testing.T) {
		hit := Hit{
			Repository: "acme/app",
			Path:       ".env",
			Content:    "password=hunter2\n" + strings.Repeat("x", 1000),
		}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Len(t, candidates[0].RawContent, 500)
	})
}

func TestExtractorOptions(t *testing.T) {
	t.Run("custom exclusions", func(t *testing.T) {
		e := NewExtractor(WithExcludedPrefixes([]string{"generated/"}))

		_, err := e.Extract(Hit{Path: "generated/x.go", Content: "password=a\n"}, "acme.io")
		assert.ErrorIs(t, err, ErrExcludedPath)

		candidates, err := e.Extract(Hit{Path: "vendor/x.go", Content: "password=abc\n"}, "acme.io")
		require.NoError(t, err, "default exclusions replaced")
		assert.Len(t, candidates, 1)
	})

	t.Run("custom per file cap", func(t *testing.T) {
		e := NewExtractor(WithMaxPerFile(2))
		hit := Hit{Path: ".env", Content: "password=a\npassword=b\npassword=c\n"}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})

	t.Run("custom raw content limit", func(t *testing.T) {
		e := NewExtractor(WithRawContentLimit(10))
		hit := Hit{Path: ".env", Content: "password=hunter2"}
		candidates, err := e.Extract(hit, "acme.io")
		require.NoError(t, err)
		require.NotEmpty(t, candidates)
		assert.Equal(t, "password=h", candidates[0].RawContent)
	})
}
