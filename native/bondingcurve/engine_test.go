package bondingcurve

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"moxieprotocol/core/events"
	"moxieprotocol/core/state"
	"moxieprotocol/native/access"
	nativecommon "moxieprotocol/native/common"
	"moxieprotocol/native/formula"
	"moxieprotocol/native/rewards"
	"moxieprotocol/native/token"
	"moxieprotocol/native/tokenmanager"
	"moxieprotocol/native/vault"
	"moxieprotocol/storage"
)

var (
	admin        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	onboarder    = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	feeCollector = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	curveAddr    = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	vaultAddr    = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	managerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	rewardsAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c4")
	subject      = common.HexToAddress("0x0000000000000000000000000000000000005b01")
	buyer        = common.HexToAddress("0x0000000000000000000000000000000000000b01")
)

const testRatio uint32 = 660000

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), PctBase)
}

type allowAll struct{}

func (allowAll) IsAllowed(common.Address) (bool, error) { return true, nil }

type fixture struct {
	curve        *Engine
	ledger       *token.Ledger
	vault        *vault.Engine
	rewards      *rewards.Engine
	roles        *access.Registry
	buf          *events.Buffer
	reserveToken common.Address
	subjectToken common.Address
}

func defaultFees() Fees {
	return Fees{
		ProtocolBuyFeePct:  big.NewInt(1e16),
		ProtocolSellFeePct: big.NewInt(2e16),
		SubjectBuyFeePct:   big.NewInt(3e16),
		SubjectSellFeePct:  big.NewInt(4e16),
	}
}

func newFixture(t *testing.T, initialize bool) *fixture {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	buf := &events.Buffer{}

	ledger := token.NewLedger()
	ledger.SetState(st)
	ledger.SetPassVerifier(allowAll{})
	reserve, err := ledger.Deploy(admin, "Moxie", "MOXIE", admin, false)
	require.NoError(t, err)
	for _, holder := range []common.Address{onboarder, buyer} {
		require.NoError(t, ledger.Mint(reserve.Address, admin, holder, ether(1_000_000)))
		require.NoError(t, ledger.Approve(reserve.Address, holder, curveAddr, token.MaxUint256))
	}

	vaultRoles := access.NewRegistry(vault.ModuleName)
	vaultRoles.SetState(st)
	require.NoError(t, vaultRoles.Bootstrap(admin))
	require.NoError(t, vaultRoles.GrantRole(admin, access.DepositRole, curveAddr))
	require.NoError(t, vaultRoles.GrantRole(admin, access.TransferRole, curveAddr))
	v := vault.NewEngine(vaultAddr, ledger, vaultRoles)
	v.SetState(st)

	managerRoles := access.NewRegistry("tokenmanager")
	managerRoles.SetState(st)
	require.NoError(t, managerRoles.Bootstrap(admin))
	require.NoError(t, managerRoles.GrantRole(admin, access.CreateRole, admin))
	require.NoError(t, managerRoles.GrantRole(admin, access.MintRole, curveAddr))
	manager := tokenmanager.NewEngine(managerAddr, ledger, managerRoles)
	manager.SetState(st)
	subjectToken, err := manager.Create(admin, tokenmanager.CreateInput{
		Subject: subject, Name: "Subject", Symbol: "SUB", InitialSupply: ether(1000), PassGated: true, Recipient: onboarder,
	})
	require.NoError(t, err)

	rw := rewards.NewEngine(rewardsAddr, reserve.Address, ledger, rewards.Domain{Name: "ProtocolRewards", Version: "1", ChainID: big.NewInt(1)})
	rw.SetState(st)

	roles := access.NewRegistry(ModuleName)
	roles.SetState(st)
	require.NoError(t, roles.Bootstrap(admin))
	require.NoError(t, roles.GrantRole(admin, access.OnboardingRole, onboarder))

	curve := NewEngine(Config{
		Address:      curveAddr,
		ReserveToken: reserve.Address,
		Tokens:       ledger,
		TokenManager: manager,
		Vault:        v,
		Rewards:      rw,
		Auth:         roles,
	})
	curve.SetState(st)
	curve.SetEmitter(buf)
	curve.SetPauses(roles)
	require.NoError(t, curve.Setup(defaultFees(), feeCollector))

	f := &fixture{curve: curve, ledger: ledger, vault: v, rewards: rw, roles: roles, buf: buf, reserveToken: reserve.Address, subjectToken: subjectToken}
	if initialize {
		require.NoError(t, curve.InitializeSubjectBondingCurve(onboarder, subject, testRatio, ether(1000), ether(1000)))
		buf.Drain()
	}
	return f
}

func (f *fixture) balance(t *testing.T, tok, holder common.Address) *big.Int {
	t.Helper()
	bal, err := f.ledger.BalanceOf(tok, holder)
	require.NoError(t, err)
	return bal
}

func TestInitializeSubjectBondingCurve(t *testing.T) {
	f := newFixture(t, false)

	require.ErrorIs(t, f.curve.InitializeSubjectBondingCurve(buyer, subject, testRatio, ether(1000), ether(1)), access.ErrUnauthorized)
	require.ErrorIs(t, f.curve.InitializeSubjectBondingCurve(onboarder, subject, 0, ether(1000), ether(1)), ErrInvalidReserveRatio)
	require.ErrorIs(t, f.curve.InitializeSubjectBondingCurve(onboarder, subject, 1_000_001, ether(1000), ether(1)), ErrInvalidReserveRatio)
	require.ErrorIs(t, f.curve.InitializeSubjectBondingCurve(onboarder, subject, testRatio, ether(999), ether(1)), ErrInvalidSubjectSupply)
	require.ErrorIs(t, f.curve.InitializeSubjectBondingCurve(onboarder, buyer, testRatio, ether(1000), ether(1)), ErrInvalidSubjectToken)

	_, err := f.curve.BuyShares(buyer, subject, ether(1), big.NewInt(0))
	require.ErrorIs(t, err, ErrSubjectNotInitialized)

	require.NoError(t, f.curve.InitializeSubjectBondingCurve(onboarder, subject, testRatio, ether(1000), ether(500)))
	err = f.curve.InitializeSubjectBondingCurve(onboarder, subject, testRatio, ether(1000), ether(500))
	require.ErrorIs(t, err, ErrSubjectAlreadyInitialized)

	st, err := f.curve.State(subject)
	require.NoError(t, err)
	require.Equal(t, testRatio, st.ReserveRatio)
	require.Equal(t, 0, st.Reserve.Cmp(ether(500)))
	require.Equal(t, 0, st.Supply.Cmp(ether(1000)))
	ok, err := f.curve.IsInitialized(subject)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBuySharesFeeConservation(t *testing.T) {
	f := newFixture(t, true)
	deposit := ether(100)

	reserveBefore, _ := f.vault.BalanceOf(f.subjectToken, f.reserveToken)
	supplyBefore, _ := f.ledger.TotalSupply(f.subjectToken)
	buyerBefore := f.balance(t, f.reserveToken, buyer)

	protocolFee := ether(1)
	subjectFee := ether(3)
	effective := ether(96)
	expected, err := formula.CalculatePurchaseReturn(supplyBefore, reserveBefore, testRatio, effective)
	require.NoError(t, err)

	minted, err := f.curve.BuyShares(buyer, subject, deposit, expected)
	require.NoError(t, err)
	require.Equal(t, 0, minted.Cmp(expected))

	reserveAfter, _ := f.vault.BalanceOf(f.subjectToken, f.reserveToken)
	require.Equal(t, 0, new(big.Int).Sub(reserveAfter, reserveBefore).Cmp(effective))
	require.Equal(t, 0, f.balance(t, f.subjectToken, buyer).Cmp(expected))
	require.Equal(t, 0, new(big.Int).Sub(buyerBefore, f.balance(t, f.reserveToken, buyer)).Cmp(deposit))
	require.Equal(t, 0, f.balance(t, f.reserveToken, feeCollector).Cmp(protocolFee))
	accrued, err := f.rewards.BalanceOf(subject)
	require.NoError(t, err)
	require.Equal(t, 0, accrued.Cmp(subjectFee))
	require.Zero(t, f.balance(t, f.reserveToken, curveAddr).Sign(), "curve must not retain reserve")

	var purchase *big.Int
	for _, evt := range events.Raw(f.buf.Drain()) {
		if evt.Type != EventTypeSubjectSharePurchased {
			continue
		}
		require.Equal(t, subject.Hex(), evt.Attr("subject"))
		require.Equal(t, f.reserveToken.Hex(), evt.Attr("sellToken"))
		require.Equal(t, deposit.String(), evt.Attr("sellAmount"))
		require.Equal(t, f.subjectToken.Hex(), evt.Attr("buyToken"))
		require.Equal(t, buyer.Hex(), evt.Attr("beneficiary"))
		purchase, _ = new(big.Int).SetString(evt.Attr("buyAmount"), 10)
	}
	require.NotNil(t, purchase)
	require.Equal(t, 0, purchase.Cmp(expected))
}

func TestBuySharesFor(t *testing.T) {
	f := newFixture(t, true)
	minted, err := f.curve.BuySharesFor(buyer, subject, ether(10), onboarder, nil)
	require.NoError(t, err)
	require.Equal(t, 0, f.balance(t, f.subjectToken, onboarder).Cmp(new(big.Int).Add(ether(1000), minted)))
	require.Zero(t, f.balance(t, f.subjectToken, buyer).Sign())

	_, err = f.curve.BuySharesFor(buyer, subject, ether(10), common.Address{}, nil)
	require.ErrorIs(t, err, ErrInvalidBeneficiary)
}

func TestBuySharesSlippage(t *testing.T) {
	f := newFixture(t, true)
	quote, err := f.curve.CalculateTokensForBuy(subject, ether(5))
	require.NoError(t, err)

	_, err = f.curve.BuyShares(buyer, subject, quote.Deposit, ether(6))
	require.ErrorIs(t, err, ErrSlippageExceedsLimit)
	_, err = f.curve.BuyShares(buyer, subject, big.NewInt(0), nil)
	require.ErrorIs(t, err, ErrInvalidAmount)

	minted, err := f.curve.BuyShares(buyer, subject, quote.Deposit, ether(5))
	require.NoError(t, err)
	require.True(t, minted.Cmp(ether(5)) >= 0)
}

func TestSellShares(t *testing.T) {
	f := newFixture(t, true)
	minted, err := f.curve.BuyShares(buyer, subject, ether(100), nil)
	require.NoError(t, err)

	sell := new(big.Int).Quo(minted, big.NewInt(2))
	_, err = f.curve.SellShares(buyer, subject, sell, nil)
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.NoError(t, f.ledger.Approve(f.subjectToken, buyer, curveAddr, sell))

	supply, _ := f.ledger.TotalSupply(f.subjectToken)
	reserve, _ := f.vault.BalanceOf(f.subjectToken, f.reserveToken)
	gross, err := formula.CalculateSaleReturn(supply, reserve, testRatio, sell)
	require.NoError(t, err)
	fees := defaultFees()
	protocolFee, subjectFee := fees.SellSide(gross)
	wantNet := new(big.Int).Sub(gross, protocolFee)
	wantNet.Sub(wantNet, subjectFee)

	quote, err := f.curve.CalculateTokensForSell(subject, sell)
	require.NoError(t, err)
	require.Equal(t, 0, quote.Return.Cmp(wantNet))

	_, err = f.curve.SellShares(buyer, subject, sell, new(big.Int).Add(wantNet, big.NewInt(1)))
	require.ErrorIs(t, err, ErrSlippageExceedsLimit)

	reserveBefore := f.balance(t, f.reserveToken, buyer)
	feesBefore := f.balance(t, f.reserveToken, feeCollector)
	net, err := f.curve.SellShares(buyer, subject, sell, wantNet)
	require.NoError(t, err)
	require.Equal(t, 0, net.Cmp(wantNet))

	require.Equal(t, 0, new(big.Int).Sub(f.balance(t, f.reserveToken, buyer), reserveBefore).Cmp(wantNet))
	require.Equal(t, 0, new(big.Int).Sub(f.balance(t, f.reserveToken, feeCollector), feesBefore).Cmp(protocolFee))
	reserveAfter, _ := f.vault.BalanceOf(f.subjectToken, f.reserveToken)
	require.Equal(t, 0, new(big.Int).Sub(reserve, reserveAfter).Cmp(gross))
	supplyAfter, _ := f.ledger.TotalSupply(f.subjectToken)
	require.Equal(t, 0, new(big.Int).Sub(supply, supplyAfter).Cmp(sell))

	tooMuch := new(big.Int).Add(f.balance(t, f.subjectToken, buyer), big.NewInt(1))
	_, err = f.curve.SellShares(buyer, subject, tooMuch, nil)
	require.ErrorIs(t, err, ErrInsufficientSubjectBalance)
}

func TestUpdateFeesAppliesProspectively(t *testing.T) {
	f := newFixture(t, true)
	zero := Fees{ProtocolBuyFeePct: big.NewInt(0), ProtocolSellFeePct: big.NewInt(0), SubjectBuyFeePct: big.NewInt(0), SubjectSellFeePct: big.NewInt(0)}

	require.ErrorIs(t, f.curve.UpdateFees(buyer, zero), access.ErrUnauthorized)
	require.NoError(t, f.roles.GrantRole(admin, access.UpdateFeesRole, admin))

	bad := zero.Clone()
	bad.ProtocolBuyFeePct = new(big.Int).Set(PctBase)
	require.ErrorIs(t, f.curve.UpdateFees(admin, bad), ErrInvalidFeePercentage)

	require.NoError(t, f.curve.UpdateFees(admin, zero))
	_, err := f.curve.BuyShares(buyer, subject, ether(100), nil)
	require.NoError(t, err)
	require.Zero(t, f.balance(t, f.reserveToken, feeCollector).Sign())

	require.ErrorIs(t, f.curve.UpdateFeeBeneficiary(admin, buyer), access.ErrUnauthorized)
	require.NoError(t, f.roles.GrantRole(admin, access.UpdateBeneficiaryRole, admin))
	require.ErrorIs(t, f.curve.UpdateFeeBeneficiary(admin, common.Address{}), ErrInvalidBeneficiary)
	require.NoError(t, f.curve.UpdateFeeBeneficiary(admin, buyer))
	got, err := f.curve.FeeBeneficiary()
	require.NoError(t, err)
	require.Equal(t, buyer, got)
}

func TestPausedCurveRejectsTrades(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.roles.GrantRole(admin, access.PauseRole, admin))
	require.NoError(t, f.roles.Pause(admin))
	_, err := f.curve.BuyShares(buyer, subject, ether(1), nil)
	if !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
}

func TestFeesValidate(t *testing.T) {
	fees := defaultFees()
	require.NoError(t, fees.Validate())
	fees.SubjectBuyFeePct = new(big.Int).Sub(PctBase, fees.ProtocolBuyFeePct)
	require.ErrorIs(t, fees.Validate(), ErrInvalidFeePercentage)
	fees = defaultFees()
	fees.SubjectSellFeePct = big.NewInt(-1)
	require.ErrorIs(t, fees.Validate(), ErrInvalidFeePercentage)

	p, s := defaultFees().BuySide(big.NewInt(100))
	require.Equal(t, int64(1), p.Int64())
	require.Equal(t, int64(3), s.Int64())
}
