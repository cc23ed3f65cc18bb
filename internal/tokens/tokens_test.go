package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCount(t *testing.T) {
	assert.Zero(t, Count(""))
	assert.Greater(t, Count("hello world"), 0)
	assert.Less(t, Count("hello world"), len("hello world"))

	long := strings.Repeat("token ", 100)
	assert.Greater(t, Count(long), Count("token"))
}

func TestCountAll(t *testing.T) {
	assert.Equal(t, Count("a b")+Count("c d"), CountAll("a b", "c d"))
	assert.Zero(t, CountAll())
}
