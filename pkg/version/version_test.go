package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetReturnsTrimmedVersion(t *testing.T) {
	got := Get()
	assert.Equal(t, strings.TrimSpace(raw), got)
	assert.NotContains(t, got, "\n")
}

func TestVersionNotEmptyAndPrefixed(t *testing.T) {
	s := Get()
	assert.NotEmpty(t, s)
	// Release versions in this repo carry a 'v' prefix.
	assert.True(t, strings.HasPrefix(s, "v"))
}
