package vesting

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"moxieprotocol/core/events"
	"moxieprotocol/core/state"
	"moxieprotocol/native/access"
	"moxieprotocol/native/token"
	"moxieprotocol/storage"
)

var (
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	beneficiary  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	managerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	protocolAddr = common.HexToAddress("0x00000000000000000000000000000000000000e2")
)

const (
	buySig  = "buyShares(address,uint256,uint256)"
	sellSig = "sellShares(address,uint256,uint256)"
)

type allowAll struct{}

func (allowAll) IsAllowed(common.Address) (bool, error) { return true, nil }

type fixture struct {
	manager *Manager
	ledger  *token.Ledger
	buf     *events.Buffer
	token   common.Address
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	buf := &events.Buffer{}

	ledger := token.NewLedger()
	ledger.SetState(st)
	ledger.SetPassVerifier(allowAll{})
	moxie, err := ledger.Deploy(owner, "Moxie", "MOXIE", owner, false)
	require.NoError(t, err)
	require.NoError(t, ledger.Mint(moxie.Address, owner, owner, big.NewInt(100_000)))
	require.NoError(t, ledger.Mint(moxie.Address, owner, protocolAddr, big.NewInt(100_000)))
	require.NoError(t, ledger.Approve(moxie.Address, owner, managerAddr, token.MaxUint256))

	roles := access.NewRegistry("vesting")
	roles.SetState(st)
	require.NoError(t, roles.Bootstrap(owner))

	f := &fixture{ledger: ledger, buf: buf, token: moxie.Address, now: 1000}
	m := NewManager(managerAddr, moxie.Address, ledger, roles)
	m.SetState(st)
	m.SetEmitter(buf)
	m.SetNowFunc(func() int64 { return f.now })
	require.NoError(t, m.Deposit(owner, big.NewInt(10_000)))

	// buyShares pulls the amount from the wallet; sellShares pays it back.
	require.NoError(t, m.RegisterHandler(buySig, Handler{SpendArg: 1, Exec: func(wallet common.Address, args []interface{}) error {
		return ledger.TransferFrom(moxie.Address, protocolAddr, wallet, protocolAddr, args[1].(*big.Int))
	}}))
	require.NoError(t, m.RegisterHandler(sellSig, Handler{SpendArg: -1, Exec: func(wallet common.Address, args []interface{}) error {
		return ledger.Transfer(moxie.Address, protocolAddr, wallet, args[1].(*big.Int))
	}}))
	require.NoError(t, m.SetAuthFunctionCallMany(owner, []string{buySig, sellSig}, []common.Address{protocolAddr, protocolAddr}))
	require.NoError(t, m.AddTokenDestination(owner, protocolAddr))
	buf.Drain()
	f.manager = m
	return f
}

// defaultParams vests 1200 over 12 periods of 100 seconds starting at 1000.
func defaultParams() WalletParams {
	return WalletParams{
		Owner:            owner,
		Beneficiary:      beneficiary,
		ManagedAmount:    big.NewInt(1200),
		StartTime:        1000,
		EndTime:          2200,
		Periods:          12,
		ReleaseStartTime: 1000,
		Revocable:        true,
	}
}

func (f *fixture) wallet(t *testing.T, p WalletParams) *Wallet {
	t.Helper()
	addr, err := f.manager.CreateTokenLockWallet(owner, p)
	require.NoError(t, err)
	w, err := f.manager.Wallet(addr)
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, holder common.Address) *big.Int {
	t.Helper()
	bal, err := f.ledger.BalanceOf(f.token, holder)
	require.NoError(t, err)
	return bal
}

func TestVestingSchedule(t *testing.T) {
	w := &WalletState{ManagedAmount: big.NewInt(1200), StartTime: 1000, EndTime: 2200, Periods: 12}
	w.normalize()

	cases := []struct {
		now  uint64
		want int64
	}{
		{now: 0, want: 0},
		{now: 1000, want: 0},
		{now: 1099, want: 0},
		{now: 1100, want: 100},
		{now: 1650, want: 600},
		{now: 2199, want: 1100},
		{now: 2200, want: 1200},
		{now: 9999, want: 1200},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, w.VestedAmount(tc.now).Int64(), "now=%d", tc.now)
	}

	w.VestingCliffTime = 1300
	require.Zero(t, w.VestedAmount(1250).Sign())
	require.Equal(t, int64(300), w.VestedAmount(1300).Int64())

	w.ReleaseStartTime = 1500
	require.Zero(t, w.ReleasableAmount(1400).Sign())
	require.Equal(t, int64(500), w.ReleasableAmount(1500).Int64())

	w.UsedAmount = big.NewInt(200)
	w.ReleasedAmount = big.NewInt(100)
	require.Equal(t, int64(200), w.AvailableAmount(1500).Int64())
	require.Equal(t, int64(900), w.OutstandingAmount().Int64())
}

func TestCreateTokenLockWallet(t *testing.T) {
	f := newFixture(t)

	addr, err := f.manager.CreateTokenLockWallet(owner, defaultParams())
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(managerAddr, 0), addr)
	require.Equal(t, int64(1200), f.balance(t, addr).Int64())
	require.Equal(t, int64(8800), f.balance(t, managerAddr).Int64())

	second, err := f.manager.CreateTokenLockWallet(owner, defaultParams())
	require.NoError(t, err)
	require.Equal(t, crypto.CreateAddress(managerAddr, 1), second)

	evts := events.Raw(f.buf.Drain())
	require.Len(t, evts, 2)
	require.Equal(t, EventTypeWalletCreated, evts[0].Type)
	require.Equal(t, addr.Hex(), evts[0].Attributes["wallet"])

	w, err := f.manager.Wallet(addr)
	require.NoError(t, err)
	st, err := w.State()
	require.NoError(t, err)
	require.Equal(t, beneficiary, st.Beneficiary)
	require.Equal(t, f.token, st.Token)

	_, err = f.manager.Wallet(stranger)
	require.ErrorIs(t, err, ErrUnknownWallet)
}

func TestCreateTokenLockWalletValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		caller common.Address
		mutate func(*WalletParams)
		want   error
	}{
		{name: "not owner", caller: stranger, mutate: func(*WalletParams) {}, want: access.ErrUnauthorized},
		{name: "start after end", caller: owner, mutate: func(p *WalletParams) { p.StartTime = 3000 }, want: ErrInvalidSchedule},
		{name: "zero periods", caller: owner, mutate: func(p *WalletParams) { p.Periods = 0 }, want: ErrInvalidPeriods},
		{name: "zero beneficiary", caller: owner, mutate: func(p *WalletParams) { p.Beneficiary = common.Address{} }, want: ErrInvalidBeneficiary},
		{name: "zero owner", caller: owner, mutate: func(p *WalletParams) { p.Owner = common.Address{} }, want: ErrInvalidOwner},
		{name: "zero amount", caller: owner, mutate: func(p *WalletParams) { p.ManagedAmount = big.NewInt(0) }, want: ErrInvalidManagedAmount},
		{name: "cliff after end", caller: owner, mutate: func(p *WalletParams) { p.VestingCliffTime = 2200 }, want: ErrInvalidCliff},
		{name: "insufficient funds", caller: owner, mutate: func(p *WalletParams) { p.ManagedAmount = big.NewInt(10_001) }, want: ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := defaultParams()
			tc.mutate(&p)
			_, err := f.manager.CreateTokenLockWallet(tc.caller, p)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Equal(t, int64(10_000), f.balance(t, managerAddr).Int64())
}

func TestRelease(t *testing.T) {
	f := newFixture(t)
	p := defaultParams()
	p.ReleaseStartTime = 1500
	w := f.wallet(t, p)
	f.buf.Drain()

	f.now = 1400
	_, err := w.Release(beneficiary)
	require.ErrorIs(t, err, ErrNoAvailableTokens)

	f.now = 1500
	_, err = w.Release(stranger)
	require.ErrorIs(t, err, ErrNotBeneficiary)
	released, err := w.Release(beneficiary)
	require.NoError(t, err)
	require.Equal(t, int64(500), released.Int64())
	require.Equal(t, int64(500), f.balance(t, beneficiary).Int64())

	evts := events.Raw(f.buf.Drain())
	require.Len(t, evts, 1)
	require.Equal(t, EventTypeTokensReleased, evts[0].Type)
	require.Equal(t, "500", evts[0].Attributes["amount"])

	_, err = w.Release(beneficiary)
	require.ErrorIs(t, err, ErrNoAvailableTokens)

	f.now = 5000
	released, err = w.Release(beneficiary)
	require.NoError(t, err)
	require.Equal(t, int64(700), released.Int64())
	require.Zero(t, f.balance(t, w.Address()).Sign())
}

func TestForwardTracksUsage(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, defaultParams())
	require.NoError(t, w.ApproveProtocol(beneficiary))
	f.now = 1400 // 400 vested

	subject := common.HexToAddress("0x5b")
	tooMuch, err := EncodeCall(buySig, subject, big.NewInt(401), big.NewInt(0))
	require.NoError(t, err)
	require.ErrorIs(t, w.Forward(beneficiary, protocolAddr, tooMuch), ErrCannotUseMoreThanVested)
	require.Equal(t, int64(1200), f.balance(t, w.Address()).Int64())

	buy, err := EncodeCall(buySig, subject, big.NewInt(300), big.NewInt(0))
	require.NoError(t, err)
	require.ErrorIs(t, w.Forward(stranger, protocolAddr, buy), ErrNotBeneficiary)
	require.ErrorIs(t, w.Forward(beneficiary, stranger, buy), ErrTargetNotAuthorized)
	require.NoError(t, w.Forward(beneficiary, protocolAddr, buy))

	st, err := w.State()
	require.NoError(t, err)
	require.Equal(t, int64(300), st.UsedAmount.Int64())
	available, err := w.AvailableAmount()
	require.NoError(t, err)
	require.Equal(t, int64(100), available.Int64())

	// Release pays the releasable amount net of tokens in use.
	releasable, err := w.ReleasableAmount()
	require.NoError(t, err)
	released, err := w.Release(beneficiary)
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(releasable, st.UsedAmount).Int64(), released.Int64())
	require.Equal(t, int64(100), released.Int64())

	sell, err := EncodeCall(sellSig, subject, big.NewInt(120), big.NewInt(0))
	require.NoError(t, err)
	require.NoError(t, w.Forward(beneficiary, protocolAddr, sell))
	st, err = w.State()
	require.NoError(t, err)
	require.Equal(t, int64(180), st.UsedAmount.Int64())

	unknown, err := EncodeCall("stake(uint256)", big.NewInt(1))
	require.NoError(t, err)
	require.ErrorIs(t, w.Forward(beneficiary, protocolAddr, unknown), ErrFunctionNotAuthorized)
	require.ErrorIs(t, w.Forward(beneficiary, protocolAddr, []byte{1, 2}), ErrInvalidCalldata)

	require.NoError(t, f.manager.UnsetAuthFunctionCall(owner, buySig))
	require.ErrorIs(t, w.Forward(beneficiary, protocolAddr, buy), ErrFunctionNotAuthorized)
}

func TestForwardWithoutHandler(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, defaultParams())
	f.now = 2200

	require.NoError(t, f.manager.SetAuthFunctionCall(owner, "stake(uint256)", protocolAddr))
	call, err := EncodeCall("stake(uint256)", big.NewInt(1))
	require.NoError(t, err)
	require.ErrorIs(t, w.Forward(beneficiary, protocolAddr, call), ErrNoHandler)
}

func TestProtocolApprovals(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, defaultParams())

	require.ErrorIs(t, w.ApproveProtocol(stranger), ErrNotBeneficiary)
	require.NoError(t, w.ApproveProtocol(beneficiary))
	allowance, err := f.ledger.Allowance(f.token, w.Address(), protocolAddr)
	require.NoError(t, err)
	require.Equal(t, 0, allowance.Cmp(token.MaxUint256))

	require.NoError(t, w.RevokeProtocol(beneficiary))
	allowance, err = f.ledger.Allowance(f.token, w.Address(), protocolAddr)
	require.NoError(t, err)
	require.Zero(t, allowance.Sign())
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, defaultParams())
	f.now = 1450 // 400 vested

	_, err := w.Revoke(beneficiary)
	require.ErrorIs(t, err, ErrNotOwner)
	ownerBefore := f.balance(t, owner)
	returned, err := w.Revoke(owner)
	require.NoError(t, err)
	require.Equal(t, int64(800), returned.Int64())
	require.Equal(t, int64(800), new(big.Int).Sub(f.balance(t, owner), ownerBefore).Int64())

	f.now = 9999
	vested, err := w.VestedAmount()
	require.NoError(t, err)
	require.Equal(t, int64(400), vested.Int64())

	// A second revoke leaves everything as it was.
	again, err := w.Revoke(owner)
	require.NoError(t, err)
	require.Zero(t, again.Sign())
	require.Equal(t, int64(400), f.balance(t, w.Address()).Int64())

	released, err := w.Release(beneficiary)
	require.NoError(t, err)
	require.Equal(t, int64(400), released.Int64())

	p := defaultParams()
	p.Revocable = false
	fixed := f.wallet(t, p)
	_, err = fixed.Revoke(owner)
	require.ErrorIs(t, err, ErrNotRevocable)
}

func TestWithdrawSurplus(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, defaultParams())
	require.NoError(t, f.ledger.Transfer(f.token, owner, w.Address(), big.NewInt(50)))

	surplus, err := w.SurplusAmount()
	require.NoError(t, err)
	require.Equal(t, int64(50), surplus.Int64())

	require.ErrorIs(t, w.WithdrawSurplus(beneficiary, big.NewInt(51)), ErrAmountExceedsSurplus)
	require.ErrorIs(t, w.WithdrawSurplus(stranger, big.NewInt(10)), ErrNotBeneficiary)
	require.NoError(t, w.WithdrawSurplus(beneficiary, big.NewInt(50)))
	require.Equal(t, int64(50), f.balance(t, beneficiary).Int64())
	require.Equal(t, int64(1200), f.balance(t, w.Address()).Int64())
}

func TestChangeBeneficiary(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, defaultParams())

	require.ErrorIs(t, w.ChangeBeneficiary(beneficiary, stranger), ErrNotOwner)
	require.ErrorIs(t, w.ChangeBeneficiary(owner, common.Address{}), ErrInvalidBeneficiary)
	require.NoError(t, w.ChangeBeneficiary(owner, stranger))

	f.now = 2200
	_, err := w.Release(beneficiary)
	require.ErrorIs(t, err, ErrNotBeneficiary)
	released, err := w.Release(stranger)
	require.NoError(t, err)
	require.Equal(t, int64(1200), released.Int64())
}

func TestManagerAllowLists(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.manager.SetAuthFunctionCallMany(owner, []string{buySig}, nil), ErrArrayLengthMismatch)
	require.ErrorIs(t, f.manager.SetAuthFunctionCall(stranger, buySig, protocolAddr), access.ErrUnauthorized)
	require.ErrorIs(t, f.manager.SetAuthFunctionCall(owner, buySig, common.Address{}), ErrInvalidTarget)
	require.Error(t, f.manager.SetAuthFunctionCall(owner, "notASignature", protocolAddr))

	ok, err := f.manager.IsAuthorizedFunction(sellSig)
	require.NoError(t, err)
	require.True(t, ok)
	sel, err := SelectorOf(buySig)
	require.NoError(t, err)
	require.Equal(t, crypto.Keccak256([]byte(buySig))[:4], sel[:])
	target, ok, err := f.manager.AuthFunctionCallTarget(sel)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, protocolAddr, target)

	require.ErrorIs(t, f.manager.AddTokenDestination(owner, protocolAddr), ErrDestinationExists)
	require.ErrorIs(t, f.manager.AddTokenDestination(owner, common.Address{}), ErrInvalidDestination)
	require.NoError(t, f.manager.AddTokenDestination(owner, stranger))
	dsts, err := f.manager.TokenDestinations()
	require.NoError(t, err)
	require.Equal(t, []common.Address{protocolAddr, stranger}, dsts)
	require.NoError(t, f.manager.RemoveTokenDestination(owner, protocolAddr))
	require.ErrorIs(t, f.manager.RemoveTokenDestination(owner, protocolAddr), ErrDestinationNotFound)
	isDst, err := f.manager.IsTokenDestination(stranger)
	require.NoError(t, err)
	require.True(t, isDst)

	require.ErrorIs(t, f.manager.RegisterHandler(buySig, Handler{SpendArg: -1, Exec: func(common.Address, []interface{}) error { return nil }}), ErrDuplicateHandler)
}

func TestManagerFunds(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.manager.Withdraw(stranger, big.NewInt(1)), access.ErrUnauthorized)
	require.ErrorIs(t, f.manager.Deposit(owner, big.NewInt(0)), ErrInvalidAmount)
	require.NoError(t, f.manager.Withdraw(owner, big.NewInt(4_000)))
	require.Equal(t, int64(6_000), f.balance(t, managerAddr).Int64())
}
