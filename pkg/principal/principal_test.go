package principal_test

import (
	"context"
	"testing"

	"github.com/medstock/medstock-backend/pkg/principal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns nil when absent", func(t *testing.T) {
		assert.Nil(t, principal.FromContext(context.Background()))
	})

	t.Run("round-trips through context", func(t *testing.T) {
		p := &principal.Principal{
			ID:       "user-1",
			Username: "jdoe",
			FullName: "Jane Doe",
			Role:     "doctor",
		}

		ctx := principal.WithPrincipal(context.Background(), p)
		got := principal.FromContext(ctx)

		require.NotNil(t, got)
		assert.Equal(t, p, got)
	})
}

func TestMustFromContext_PanicsWhenAbsent(t *testing.T) {
	assert.Panics(t, func() {
		principal.MustFromContext(context.Background())
	})
}

func TestIsSystem(t *testing.T) {
	assert.True(t, principal.System().IsSystem())

	var nilPrincipal *principal.Principal
	assert.True(t, nilPrincipal.IsSystem())

	user := &principal.Principal{ID: "user-1", Role: "nurse"}
	assert.False(t, user.IsSystem())
}

func TestString(t *testing.T) {
	var nilPrincipal *principal.Principal
	assert.Equal(t, "system", nilPrincipal.String())

	p := &principal.Principal{Username: "jdoe", FullName: "Jane Doe"}
	assert.Equal(t, "Jane Doe (jdoe)", p.String())
}
