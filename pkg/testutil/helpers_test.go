package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestContext(t *testing.T) {
	var ctx interface{ Err() error }

	t.Run("bounded", func(t *testing.T) {
		c := DefaultTestContext(t)
		deadline, ok := c.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, 5*time.Second)
		assert.NoError(t, c.Err())
		ctx = c
	})

	assert.Error(t, ctx.Err(), "context is cancelled once the subtest finishes")
}
