package aicache

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildKey_Deterministic(t *testing.T) {
	g := NewKeyGenerator(0)

	opts := map[string]any{"max_length": 100, "model": "default"}
	first := g.BuildKey("Hello world.", "summarize", opts)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, g.BuildKey("Hello world.", "summarize", opts))
	}
}

func TestBuildKey_SmallTextLiteral(t *testing.T) {
	g := NewKeyGenerator(0)

	key := g.BuildKey("Hello world.", "summarize", map[string]any{"max_length": 100})
	assert.Contains(t, key, "op:summarize")
	assert.Contains(t, key, "txt:Hello world.")
	assert.Contains(t, key, "|opts:")
}

func TestBuildKey_LargeTextHashed(t *testing.T) {
	g := NewKeyGenerator(0)

	text := strings.Repeat("A", 10000)
	key := g.BuildKey(text, "summarize", nil)

	hashed := regexp.MustCompile(`txt:hash:[0-9a-f]{64}`)
	assert.Regexp(t, hashed, key)
	assert.NotContains(t, key, "AAAA")

	for i := 0; i < 10; i++ {
		assert.Equal(t, key, g.BuildKey(text, "summarize", nil))
	}
}

func TestBuildKey_ThresholdBoundary(t *testing.T) {
	g := NewKeyGenerator(10)

	atLimit := strings.Repeat("x", 10)
	assert.Contains(t, g.BuildKey(atLimit, "summarize", nil), "txt:"+atLimit)

	over := strings.Repeat("x", 11)
	assert.Contains(t, g.BuildKey(over, "summarize", nil), "txt:hash:")
}

func TestBuildKey_OptionOrderIrrelevant(t *testing.T) {
	g := NewKeyGenerator(0)

	a := map[string]any{"alpha": 1, "beta": 2, "gamma": 3}
	b := map[string]any{"gamma": 3, "alpha": 1, "beta": 2}
	assert.Equal(t, g.BuildKey("doc", "summarize", a), g.BuildKey("doc", "summarize", b))
}

func TestBuildKey_OptionValuesMatter(t *testing.T) {
	g := NewKeyGenerator(0)

	a := g.BuildKey("doc", "summarize", map[string]any{"max_length": 100})
	b := g.BuildKey("doc", "summarize", map[string]any{"max_length": 200})
	assert.NotEqual(t, a, b)
}

func TestBuildKey_QuestionSegment(t *testing.T) {
	g := NewKeyGenerator(0)

	q1 := g.BuildKey("doc", "qa", map[string]any{"question": "Q1"})
	q2 := g.BuildKey("doc", "qa", map[string]any{"question": "Q2"})

	assert.Contains(t, q1, "|q:")
	assert.Contains(t, q2, "|q:")
	assert.NotEqual(t, q1, q2, "Q&A requests must differ by question alone")

	// Without a question there is no q segment.
	plain := g.BuildKey("doc", "qa", nil)
	assert.NotContains(t, plain, "|q:")
}

func TestBuildKey_CaseSensitive(t *testing.T) {
	g := NewKeyGenerator(0)

	assert.NotEqual(t,
		g.BuildKey("Hello", "summarize", nil),
		g.BuildKey("hello", "summarize", nil))
	assert.NotEqual(t,
		g.BuildKey("doc", "Summarize", nil),
		g.BuildKey("doc", "summarize", nil))
}

func TestBuildKey_EmptyOptions(t *testing.T) {
	g := NewKeyGenerator(0)

	withNil := g.BuildKey("doc", "sentiment", nil)
	withEmpty := g.BuildKey("doc", "sentiment", map[string]any{})
	assert.Equal(t, withNil, withEmpty)
}

func TestBuildKey_NestedOptionOrderIrrelevant(t *testing.T) {
	g := NewKeyGenerator(0)

	a := map[string]any{"cfg": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"cfg": map[string]any{"y": 2, "x": 1}}
	require.Equal(t, g.BuildKey("doc", "summarize", a), g.BuildKey("doc", "summarize", b))
}
