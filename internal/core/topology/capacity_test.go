package topology

import (
	"testing"

	"github.com/stratahq/strata/internal/common/errorx"
	"github.com/stretchr/testify/assert"
)

func TestCheckCapacity(t *testing.T) {
	assert.NoError(t, CheckCapacity(0, 10, 10))
	assert.NoError(t, CheckCapacity(5, 5, 10))
	assert.NoError(t, CheckCapacity(10, 0, 10))
	// Exclusion (negative delta) never trips the guard.
	assert.NoError(t, CheckCapacity(10, -3, 10))
}

func TestCheckCapacity_Exceeded(t *testing.T) {
	err := CheckCapacity(10, 1, 10)
	assert.True(t, errorx.HasCode(err, errorx.CodeCapacityExceeded))
	assert.Equal(t, 1, errorx.ExcessBy(err))

	err = CheckCapacity(8, 7, 10)
	assert.Equal(t, 5, errorx.ExcessBy(err))
}

func TestCheckCapacity_Pure(t *testing.T) {
	// Same inputs, same answer, every time.
	for i := 0; i < 3; i++ {
		assert.Equal(t, 2, errorx.ExcessBy(CheckCapacity(4, 3, 5)))
	}
}
