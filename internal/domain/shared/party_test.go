package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyFromIDs(t *testing.T) {
	clientID := uuid.New()
	supplierID := uuid.New()
	nilID := uuid.Nil

	t.Run("client only", func(t *testing.T) {
		p, err := PartyFromIDs(&clientID, nil)
		require.NoError(t, err)
		assert.True(t, p.IsClient())
		assert.Equal(t, clientID, p.ID)

		c, s := p.IDs()
		require.NotNil(t, c)
		assert.Nil(t, s)
		assert.Equal(t, clientID, *c)
	})

	t.Run("supplier only", func(t *testing.T) {
		p, err := PartyFromIDs(&nilID, &supplierID)
		require.NoError(t, err)
		assert.True(t, p.IsSupplier())
	})

	t.Run("both rejected", func(t *testing.T) {
		_, err := PartyFromIDs(&clientID, &supplierID)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("neither rejected", func(t *testing.T) {
		_, err := PartyFromIDs(nil, &nilID)
		assert.ErrorIs(t, err, ErrValidation)
	})
}
