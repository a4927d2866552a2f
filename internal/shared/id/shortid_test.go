package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Length(t *testing.T) {
	s, err := Generate(12)
	require.NoError(t, err)
	assert.Len(t, s, 12)
}

func TestGenerate_DefaultLength(t *testing.T) {
	s, err := Generate(0)
	require.NoError(t, err)
	assert.Len(t, s, DefaultLength)
}

func TestGenerate_Alphabet(t *testing.T) {
	s := MustGenerate(64)
	for _, r := range s {
		assert.Contains(t, alphabet, string(r))
	}
}

func TestGenerate_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := MustGenerate(DefaultLength)
		assert.False(t, seen[s], "duplicate id generated: %s", s)
		seen[s] = true
	}
}
