package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tc := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "let it be", b: "let it be", want: 100},
		{name: "substring", a: "let it be", b: "let it be naked", want: 100},
		{name: "empty left", a: "", b: "x", want: 0},
		{name: "empty right", a: "x", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		{name: "one edit", a: "abcd", b: "abxd", want: 75},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestSimilarityProperties(t *testing.T) {
	pairs := [][2]string{
		{"the beatles", "beatles"},
		{"abbey road", "abbey road remastered"},
		{"café", "cafe"},
		{"something", "come together"},
	}

	for _, p := range pairs {
		ab, ba := Similarity(p[0], p[1]), Similarity(p[1], p[0])
		assert.Equal(t, ab, ba, "Similarity(%q, %q) should be symmetric", p[0], p[1])
		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 100.0)
	}

	assert.Greater(t, Similarity("the beatles", "beatles"), DefaultThreshold)
	assert.LessOrEqual(t, Similarity("something", "come together"), DefaultThreshold)
}
