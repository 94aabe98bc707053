package token

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"moxieprotocol/core/events"
	"moxieprotocol/core/state"
	"moxieprotocol/storage"
)

var (
	deployer = common.HexToAddress("0x0000000000000000000000000000000000000d01")
	minter   = common.HexToAddress("0x0000000000000000000000000000000000000d02")
	alice    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob      = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type allowList map[common.Address]bool

func (a allowList) IsAllowed(account common.Address) (bool, error) { return a[account], nil }

func newTestLedger(t *testing.T) (*Ledger, *events.Buffer) {
	t.Helper()
	ledger := NewLedger()
	ledger.SetState(state.NewManager(storage.NewMemDB()))
	buf := &events.Buffer{}
	ledger.SetEmitter(buf)
	return ledger, buf
}

func TestDeployDerivesSequentialAddresses(t *testing.T) {
	ledger, _ := newTestLedger(t)
	first, err := ledger.Deploy(deployer, " Moxie ", "MOXIE", minter, false)
	require.NoError(t, err)
	second, err := ledger.Deploy(deployer, "Other", "OTH", minter, false)
	require.NoError(t, err)

	require.Equal(t, ethcrypto.CreateAddress(deployer, 0), first.Address)
	require.Equal(t, ethcrypto.CreateAddress(deployer, 1), second.Address)
	require.Equal(t, "Moxie", first.Name)

	meta, ok, err := ledger.Metadata(first.Address)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint8(18), meta.Decimals)
	require.Zero(t, meta.TotalSupply.Sign())
}

func TestMintTransferBurn(t *testing.T) {
	ledger, buf := newTestLedger(t)
	meta, err := ledger.Deploy(deployer, "Moxie", "MOXIE", minter, false)
	require.NoError(t, err)
	tok := meta.Address

	require.ErrorIs(t, ledger.Mint(tok, alice, alice, big.NewInt(10)), ErrUnauthorizedMinter)
	require.NoError(t, ledger.Mint(tok, minter, alice, big.NewInt(100)))
	require.NoError(t, ledger.Transfer(tok, alice, bob, big.NewInt(40)))
	require.ErrorIs(t, ledger.Transfer(tok, bob, alice, big.NewInt(41)), ErrInsufficientBalance)
	require.ErrorIs(t, ledger.Transfer(tok, bob, common.Address{}, big.NewInt(1)), ErrInvalidReceiver)
	require.NoError(t, ledger.Burn(tok, bob, big.NewInt(15)))

	balA, _ := ledger.BalanceOf(tok, alice)
	balB, _ := ledger.BalanceOf(tok, bob)
	supply, err := ledger.TotalSupply(tok)
	require.NoError(t, err)
	require.Equal(t, int64(60), balA.Int64())
	require.Equal(t, int64(25), balB.Int64())
	require.Equal(t, int64(85), supply.Int64())

	raw := events.Raw(buf.Drain())
	require.Len(t, raw, 6)
	require.Equal(t, EventTypeDeployed, raw[0].Type)
	require.Equal(t, EventTypeTransfer, raw[1].Type)
	require.Equal(t, common.Address{}.Hex(), raw[1].Attr("from"))
	require.Equal(t, events.TypeTokenSupply, raw[2].Type)
	require.Equal(t, "100", raw[2].Attr("delta"))
	require.Equal(t, "15", raw[4].Attr("value"))
	require.Equal(t, events.SupplyReasonBurn, raw[5].Attr("reason"))
	require.Equal(t, "-15", raw[5].Attr("delta"))
	require.Equal(t, "85", raw[5].Attr("total"))
}

func TestAllowances(t *testing.T) {
	ledger, _ := newTestLedger(t)
	meta, err := ledger.Deploy(deployer, "Moxie", "MOXIE", minter, false)
	require.NoError(t, err)
	tok := meta.Address
	require.NoError(t, ledger.Mint(tok, minter, alice, big.NewInt(100)))

	require.ErrorIs(t, ledger.TransferFrom(tok, bob, alice, bob, big.NewInt(1)), ErrInsufficientAllowance)
	require.NoError(t, ledger.Approve(tok, alice, bob, big.NewInt(30)))
	require.NoError(t, ledger.TransferFrom(tok, bob, alice, bob, big.NewInt(20)))
	allowance, _ := ledger.Allowance(tok, alice, bob)
	require.Equal(t, int64(10), allowance.Int64())

	require.NoError(t, ledger.BurnFrom(tok, bob, alice, big.NewInt(10)))
	allowance, _ = ledger.Allowance(tok, alice, bob)
	require.Zero(t, allowance.Sign())

	require.NoError(t, ledger.Approve(tok, alice, bob, MaxUint256))
	require.NoError(t, ledger.TransferFrom(tok, bob, alice, bob, big.NewInt(5)))
	allowance, _ = ledger.Allowance(tok, alice, bob)
	require.Equal(t, 0, allowance.Cmp(MaxUint256), "unlimited allowance must not decrease")
}

func TestPassGatedRecipients(t *testing.T) {
	ledger, _ := newTestLedger(t)
	meta, err := ledger.Deploy(deployer, "Subject", "SUB", minter, true)
	require.NoError(t, err)
	tok := meta.Address

	if err := ledger.Mint(tok, minter, alice, big.NewInt(5)); !errors.Is(err, ErrRecipientNotAllowed) {
		t.Fatalf("expected ErrRecipientNotAllowed without verifier, got %v", err)
	}
	ledger.SetPassVerifier(allowList{alice: true})
	require.NoError(t, ledger.Mint(tok, minter, alice, big.NewInt(5)))
	require.ErrorIs(t, ledger.Transfer(tok, alice, bob, big.NewInt(1)), ErrRecipientNotAllowed)
	// Burning never consults the allow-list.
	require.NoError(t, ledger.Burn(tok, alice, big.NewInt(5)))
}

func TestUnknownToken(t *testing.T) {
	ledger, _ := newTestLedger(t)
	_, err := ledger.TotalSupply(alice)
	require.ErrorIs(t, err, ErrTokenNotFound)
	require.ErrorIs(t, ledger.Transfer(alice, alice, bob, big.NewInt(1)), ErrTokenNotFound)
}
