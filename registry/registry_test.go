package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMintAssignsSequentialIDs(t *testing.T) {
	reg := NewMemRegistry()

	first, err := reg.Mint("alice")
	require.NoError(t, err)
	second, err := reg.Mint("bob")
	require.NoError(t, err)
	require.Equal(t, first+1, second)

	owner, err := reg.OwnerOf(first)
	require.NoError(t, err)
	require.Equal(t, Owner("alice"), owner)
}

func TestTransferRequiresCurrentOwner(t *testing.T) {
	reg := NewMemRegistry()
	token, err := reg.Mint("alice")
	require.NoError(t, err)

	require.ErrorIs(t, reg.Transfer(token, "bob", "carol"), ErrNotOwner)
	require.NoError(t, reg.Transfer(token, "alice", "bob"))

	owner, err := reg.OwnerOf(token)
	require.NoError(t, err)
	require.Equal(t, Owner("bob"), owner)

	require.ErrorIs(t, reg.Transfer(token+99, "bob", "carol"), ErrTokenNotFound)
	_, err = reg.OwnerOf(token + 99)
	require.ErrorIs(t, err, ErrTokenNotFound)
}
