package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes_English(t *testing.T) {
	types, err := EventTypesFor("en")
	require.NoError(t, err)

	assert.Equal(t, "en", types.Locale())
	assert.Len(t, types.labels, 20)
	assert.Equal(t, "Birth", types.Label("BIRT"))
	assert.Equal(t, "Divorce filed", types.Label("DIVF"))
	assert.Equal(t, "XYZZ", types.Label("XYZZ"))
}

func TestEventTypes_Norwegian(t *testing.T) {
	types, err := EventTypesFor("nb")
	require.NoError(t, err)

	assert.Len(t, types.labels, 20)
	assert.Equal(t, "Fødsel", types.Label("BIRT"))
	assert.Equal(t, "Pensjon", types.Label("RETI"))
	assert.Equal(t, "XYZZ", types.Label("XYZZ"))
}

func TestEventTypes_SameCodes(t *testing.T) {
	en, err := EventTypesFor("en")
	require.NoError(t, err)
	nb, err := EventTypesFor("nb")
	require.NoError(t, err)

	for code := range en.labels {
		_, ok := nb.labels[code]
		assert.True(t, ok, "missing %s in nb", code)
	}
}

func TestEventTypes_DefaultAndUnknown(t *testing.T) {
	types, err := EventTypesFor("")
	require.NoError(t, err)
	assert.Equal(t, "en", types.Locale())

	_, err = EventTypesFor("sv")
	assert.Error(t, err)
}
