package pass

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"moxieprotocol/core/state"
	"moxieprotocol/native/access"
	"moxieprotocol/storage"
)

var (
	admin  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	minter = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	holder = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	vault  = common.HexToAddress("0x00000000000000000000000000000000000000a4")
)

func newTestPass(t *testing.T) (*Registry, *Verifier) {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	roles := access.NewRegistry("pass")
	roles.SetState(st)
	require.NoError(t, roles.Bootstrap(admin))
	require.NoError(t, roles.GrantRole(admin, access.PassMinterRole, minter))

	reg := NewRegistry(roles)
	reg.SetState(st)
	verifier := NewVerifier(reg)
	verifier.SetState(st)
	return reg, verifier
}

func TestMintRequiresMinterRole(t *testing.T) {
	reg, _ := newTestPass(t)
	_, err := reg.Mint(holder, holder, "uri")
	require.ErrorIs(t, err, access.ErrUnauthorized)

	id, err := reg.Mint(minter, holder, "ipfs://pass/0")
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)
	id, err = reg.Mint(minter, holder, "ipfs://pass/1")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	owner, err := reg.OwnerOf(1)
	require.NoError(t, err)
	require.Equal(t, holder, owner)
	balance, err := reg.BalanceOf(holder)
	require.NoError(t, err)
	require.Equal(t, uint64(2), balance)

	_, err = reg.OwnerOf(7)
	require.ErrorIs(t, err, ErrNonexistentPass)
	_, err = reg.Mint(minter, common.Address{}, "")
	require.ErrorIs(t, err, ErrInvalidOwner)
}

func TestVerifierAdmitsHoldersAndAllowList(t *testing.T) {
	reg, verifier := newTestPass(t)

	ok, err := verifier.IsAllowed(holder)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = reg.Mint(minter, holder, "")
	require.NoError(t, err)
	ok, err = verifier.IsAllowed(holder)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, verifier.Allow(vault))
	ok, _ = verifier.IsAllowed(vault)
	require.True(t, ok)
	require.NoError(t, verifier.Remove(vault))
	ok, _ = verifier.IsAllowed(vault)
	require.False(t, ok)
}
