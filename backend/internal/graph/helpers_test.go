package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckIdentifier(t *testing.T) {
	for _, ok := range []string{"Person", "NAME_CITATION", "_x", "publicationFacts", "a1"} {
		assert.NoError(t, checkIdentifier("label", ok), ok)
	}
	for _, bad := range []string{"", "1abc", "has space", "a-b", "n:Person", "a`b", "ø"} {
		assert.Error(t, checkIdentifier("label", bad), bad)
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeValue([]interface{}{"a", "b"}))
	assert.Equal(t, []string{}, normalizeValue([]interface{}{}))

	mixed := []interface{}{"a", int64(1)}
	assert.Equal(t, mixed, normalizeValue(mixed))
	assert.Equal(t, "x", normalizeValue("x"))
}

func TestGetters(t *testing.T) {
	n := &Node{Properties: map[string]any{
		"name":  "Oslo",
		"names": []string{"Oslo", "Christiania"},
		"count": int64(2),
	}}

	assert.Equal(t, "Oslo", GetString(n, "name"))
	assert.Equal(t, "", GetString(n, "count"))
	assert.Equal(t, []string{"Oslo", "Christiania"}, GetStringSlice(n, "names"))
	assert.Nil(t, GetStringSlice(n, "name"))
	assert.Equal(t, "", GetString(nil, "name"))
	assert.Nil(t, GetStringSlice(nil, "names"))
}
