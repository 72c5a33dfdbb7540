package actor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActor_IsSystem(t *testing.T) {
	var nilActor *Actor
	assert.True(t, nilActor.IsSystem())
	assert.True(t, (&Actor{}).IsSystem())
	assert.False(t, (&Actor{ID: "u-1"}).IsSystem())
	assert.True(t, System().IsSystem())
}

func TestActor_UserID(t *testing.T) {
	var nilActor *Actor
	assert.Nil(t, nilActor.UserID())

	id := (&Actor{ID: "u-1"}).UserID()
	require.NotNil(t, id)
	assert.Equal(t, "u-1", *id)
}

func TestActor_String(t *testing.T) {
	var nilActor *Actor
	assert.Equal(t, "system", nilActor.String())
	assert.Equal(t, "u-1", (&Actor{ID: "u-1"}).String())
	assert.Equal(t, "Ana (u-1)", (&Actor{ID: "u-1", Name: "Ana"}).String())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))

	a := &Actor{ID: "u-1"}
	ctx = WithActor(ctx, a)
	assert.Same(t, a, FromContext(ctx))
}
