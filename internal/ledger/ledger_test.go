package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := NewSet("b", "a", "b", "")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has(""))
	s.Add("c")
	assert.Equal(t, []string{"a", "b", "c"}, s.Sorted())
}
