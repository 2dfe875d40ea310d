package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
		seen[code] = true
	}
	// 100 draws from a million values collide sometimes, but never collapse
	// to a handful.
	assert.Greater(t, len(seen), 90)
}
