package branches

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIsCaseInsensitive(t *testing.T) {
	s := New([]string{"Utrecht", " Zwolle ", "utrecht", ""})
	assert.Equal(t, []string{"Utrecht", "Zwolle"}, s.List())

	got, ok := s.Resolve("ZWOLLE")
	assert.True(t, ok)
	assert.Equal(t, "Zwolle", got)

	_, ok = s.Resolve("Amsterdam")
	assert.False(t, ok)
}

func TestEmptyCatalogueAcceptsAnyName(t *testing.T) {
	s := New(nil)
	got, ok := s.Resolve(" Den Bosch ")
	assert.True(t, ok)
	assert.Equal(t, "Den Bosch", got)

	_, ok = s.Resolve("  ")
	assert.False(t, ok)
}
