package rewards

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"moxieprotocol/core/events"
	"moxieprotocol/core/state"
	"moxieprotocol/native/token"
	"moxieprotocol/storage"
)

var (
	rewardsAddr = common.HexToAddress("0x00000000000000000000000000000000000000e0")
	curve       = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	creator     = common.HexToAddress("0x0000000000000000000000000000000000005b01")
	payee       = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

type fixture struct {
	engine  *Engine
	ledger  *token.Ledger
	reserve common.Address
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	ledger := token.NewLedger()
	ledger.SetState(st)
	meta, err := ledger.Deploy(curve, "Moxie", "MOXIE", curve, false)
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(meta.Address, curve, curve, big.NewInt(10_000)))
	require.NoError(t, ledger.Approve(meta.Address, curve, rewardsAddr, token.MaxUint256))

	f := &fixture{ledger: ledger, reserve: meta.Address, now: 1_700_000_000}
	f.engine = NewEngine(rewardsAddr, meta.Address, ledger, Domain{Name: "ProtocolRewards", Version: "1", ChainID: big.NewInt(8453)})
	f.engine.SetState(st)
	f.engine.SetEmitter(&events.Buffer{})
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.engine.Deposit(curve, creator, big.NewInt(300), "SUBJECT_FEE", "buy"))
	require.ErrorIs(t, f.engine.Deposit(curve, common.Address{}, big.NewInt(1), "", ""), ErrAddressZero)
	require.ErrorIs(t, f.engine.Deposit(curve, creator, big.NewInt(0), "", ""), ErrInvalidAmount)

	balance, err := f.engine.BalanceOf(creator)
	require.NoError(t, err)
	require.Equal(t, int64(300), balance.Int64())

	require.ErrorIs(t, f.engine.Withdraw(creator, payee, big.NewInt(301)), ErrInvalidWithdraw)
	require.NoError(t, f.engine.Withdraw(creator, payee, big.NewInt(100)))
	require.NoError(t, f.engine.WithdrawFor(creator, big.NewInt(50)))

	got, _ := f.ledger.BalanceOf(f.reserve, payee)
	require.Equal(t, int64(100), got.Int64())
	got, _ = f.ledger.BalanceOf(f.reserve, creator)
	require.Equal(t, int64(50), got.Int64())
	total, _ := f.engine.TotalSupply()
	require.Equal(t, int64(150), total.Int64())
}

func TestDepositBatch(t *testing.T) {
	f := newFixture(t)
	err := f.engine.DepositBatch(curve, []common.Address{creator, payee}, []*big.Int{big.NewInt(5)}, []string{"a", "b"}, "")
	require.ErrorIs(t, err, ErrArrayLengthMismatch)

	require.NoError(t, f.engine.DepositBatch(curve,
		[]common.Address{creator, payee},
		[]*big.Int{big.NewInt(5), big.NewInt(7)},
		[]string{"a", "b"}, "batch"))
	held, _ := f.ledger.BalanceOf(f.reserve, rewardsAddr)
	require.Equal(t, int64(12), held.Int64())
	total, _ := f.engine.TotalSupply()
	require.Equal(t, int64(12), total.Int64())
}

func TestWithdrawWithSig(t *testing.T) {
	f := newFixture(t)
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	signer := ethcrypto.PubkeyToAddress(key.PublicKey)
	require.NoError(t, f.engine.Deposit(curve, signer, big.NewInt(1_000), "", ""))

	deadline := big.NewInt(f.now + 60)
	sign := func(amount *big.Int, nonce int64) []byte {
		digest, err := WithdrawDigest(f.engine.Domain(), rewardsAddr, signer, payee, amount, big.NewInt(nonce), deadline)
		require.NoError(t, err)
		sig, err := ethcrypto.Sign(digest, key)
		require.NoError(t, err)
		sig[64] += 27
		return sig
	}

	sig := sign(big.NewInt(400), 0)
	require.NoError(t, f.engine.WithdrawWithSig(signer, payee, big.NewInt(400), deadline, sig))
	nonce, _ := f.engine.Nonce(signer)
	require.Equal(t, int64(1), nonce.Int64())

	// Replaying the same signature fails because the nonce moved on.
	require.ErrorIs(t, f.engine.WithdrawWithSig(signer, payee, big.NewInt(400), deadline, sig), ErrInvalidSignature)
	// A signature for a different amount does not authorise this one.
	require.ErrorIs(t, f.engine.WithdrawWithSig(signer, payee, big.NewInt(500), deadline, sign(big.NewInt(400), 1)), ErrInvalidSignature)
	require.ErrorIs(t, f.engine.WithdrawWithSig(signer, payee, big.NewInt(1), deadline, []byte{1, 2}), ErrInvalidSignature)

	f.now += 61
	require.ErrorIs(t, f.engine.WithdrawWithSig(signer, payee, big.NewInt(100), deadline, sign(big.NewInt(100), 1)), ErrSignatureDeadlineExpired)

	got, _ := f.ledger.BalanceOf(f.reserve, payee)
	require.Equal(t, int64(400), got.Int64())
}
