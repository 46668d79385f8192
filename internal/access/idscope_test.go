package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnrestrictedScope(t *testing.T) {
	s := UnrestrictedScope()

	assert.True(t, s.Unrestricted())
	assert.True(t, s.Contains("anything"))
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.IDs(), "unrestricted must serialize as null, not []")
}

func TestRestrictedScope(t *testing.T) {
	s := RestrictedScope("b", "a", "b")

	assert.False(t, s.Unrestricted())
	assert.True(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))
	assert.False(t, s.Contains("c"))
	assert.Equal(t, 2, s.Len(), "duplicates collapse")
	assert.Equal(t, []string{"a", "b"}, s.IDs())
}

func TestEmptyRestrictedScopeMatchesNothing(t *testing.T) {
	s := RestrictedScope()

	assert.False(t, s.Unrestricted())
	assert.False(t, s.Contains("a"))
	assert.NotNil(t, s.IDs(), "empty restricted must be [], never null")
	assert.Empty(t, s.IDs())
}
