package bondingcurve

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
	nativecommon "moxieprotocol/native/common"
	"moxieprotocol/native/formula"
)

// ModuleName is the pause domain of the bonding curve.
const ModuleName = "bondingcurve"

// SubjectFeeReason tags subject fee credits on the rewards ledger.
const SubjectFeeReason = "SUBJECT_FEE"

var (
	errNilState        = errors.New("bonding curve: state not configured")
	errMissingDeps     = errors.New("bonding curve: dependencies not configured")
	errNotConfigured   = errors.New("bonding curve: fee schedule not configured")
	errAlreadySetup    = errors.New("bonding curve: fee schedule already configured")
	errNegativeProceed = errors.New("bonding curve: fees exceed trade amount")

	ErrInvalidSubject             = errors.New("bonding curve: InvalidSubject")
	ErrInvalidSubjectToken        = errors.New("bonding curve: InvalidSubjectToken")
	ErrInvalidAmount              = errors.New("bonding curve: InvalidAmount")
	ErrInvalidBeneficiary         = errors.New("bonding curve: InvalidBeneficiary")
	ErrInvalidReserveRatio        = errors.New("bonding curve: InvalidReserveRatio")
	ErrInvalidSubjectSupply       = errors.New("bonding curve: InvalidSubjectSupply")
	ErrInvalidFeePercentage       = errors.New("bonding curve: InvalidFeePercentage")
	ErrSubjectAlreadyInitialized  = errors.New("bonding curve: SubjectAlreadyInitialized")
	ErrSubjectNotInitialized      = errors.New("bonding curve: SubjectNotInitialized")
	ErrSlippageExceedsLimit       = errors.New("bonding curve: SlippageExceedsLimit")
	ErrInsufficientSubjectBalance = errors.New("bonding curve: InsufficientSubjectTokenBalance")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Formula prices trades along the curve.
type Formula interface {
	CalculatePurchaseReturn(supply, reserve *big.Int, ratio uint32, deposit *big.Int) (*big.Int, error)
	CalculateSaleReturn(supply, reserve *big.Int, ratio uint32, sell *big.Int) (*big.Int, error)
	CalculateFundCost(supply, reserve *big.Int, ratio uint32, mint *big.Int) (*big.Int, error)
}

// TokenLedger is the fungible-token capability used for the reserve currency
// and for subject token burns.
type TokenLedger interface {
	BalanceOf(token, holder common.Address) (*big.Int, error)
	TotalSupply(token common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Approve(token, owner, spender common.Address, amount *big.Int) error
	BurnFrom(token, spender, from common.Address, amount *big.Int) error
}

// TokenManager resolves and mints subject tokens.
type TokenManager interface {
	TokenOf(subject common.Address) (common.Address, bool, error)
	Mint(caller, subject, beneficiary common.Address, amount *big.Int) error
}

// Vault custodies the reserve of every curve.
type Vault interface {
	Address() common.Address
	BalanceOf(subjectToken, reserveToken common.Address) (*big.Int, error)
	Deposit(caller, subjectToken, reserveToken common.Address, amount *big.Int) error
	Transfer(caller, subjectToken, reserveToken, to common.Address, amount *big.Int) error
}

// RewardsLedger accrues subject fees for later withdrawal.
type RewardsLedger interface {
	Address() common.Address
	Deposit(caller, to common.Address, amount *big.Int, reason, comment string) error
}

// Engine runs the subject bonding curves. Its address holds the deposit and
// transfer roles on the vault and the mint role on the token manager.
type Engine struct {
	address      common.Address
	reserveToken common.Address
	state        engineState
	emitter      events.Emitter
	formula      Formula
	tokens       TokenLedger
	manager      TokenManager
	vault        Vault
	rewards      RewardsLedger
	auth         access.Authority
	pauses       nativecommon.PauseView
}

// Config bundles the collaborators of the curve.
type Config struct {
	Address      common.Address
	ReserveToken common.Address
	Formula      Formula
	Tokens       TokenLedger
	TokenManager TokenManager
	Vault        Vault
	// Rewards is optional; without it subject fees are transferred directly.
	Rewards RewardsLedger
	Auth    access.Authority
}

// NewEngine constructs a bonding curve engine.
func NewEngine(cfg Config) *Engine {
	f := cfg.Formula
	if f == nil {
		f = formula.Bancor{}
	}
	return &Engine{
		address:      cfg.Address,
		reserveToken: cfg.ReserveToken,
		formula:      f,
		tokens:       cfg.Tokens,
		manager:      cfg.TokenManager,
		vault:        cfg.Vault,
		rewards:      cfg.Rewards,
		auth:         cfg.Auth,
		emitter:      events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the pause view consulted before trades.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Address returns the curve address.
func (e *Engine) Address() common.Address { return e.address }

// ReserveToken returns the reserve currency of every curve.
func (e *Engine) ReserveToken() common.Address { return e.reserveToken }

func curveKey(subject common.Address) []byte {
	return []byte("bondingcurve/curve/" + subject.Hex())
}

var (
	feesKey        = []byte("bondingcurve/fees")
	beneficiaryKey = []byte("bondingcurve/feeBeneficiary")
)

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil || e.manager == nil || e.vault == nil {
		return errMissingDeps
	}
	return nil
}

// Setup stores the initial fee schedule and protocol fee beneficiary. It is
// called once by deployment wiring.
func (e *Engine) Setup(fees Fees, beneficiary common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if ok, err := e.state.KVGet(feesKey, nil); err != nil {
		return err
	} else if ok {
		return errAlreadySetup
	}
	if err := e.writeFees(fees); err != nil {
		return err
	}
	return e.writeBeneficiary(beneficiary)
}

// Fees returns the current fee schedule.
func (e *Engine) Fees() (Fees, error) {
	if e == nil || e.state == nil {
		return Fees{}, errNilState
	}
	var fees Fees
	ok, err := e.state.KVGet(feesKey, &fees)
	if err != nil {
		return Fees{}, err
	}
	if !ok {
		return Fees{}, errNotConfigured
	}
	return fees.Clone(), nil
}

// FeeBeneficiary returns the recipient of protocol fees.
func (e *Engine) FeeBeneficiary() (common.Address, error) {
	if e == nil || e.state == nil {
		return common.Address{}, errNilState
	}
	var beneficiary common.Address
	ok, err := e.state.KVGet(beneficiaryKey, &beneficiary)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, errNotConfigured
	}
	return beneficiary, nil
}

func (e *Engine) writeFees(fees Fees) error {
	fees = fees.Clone()
	if err := fees.Validate(); err != nil {
		return err
	}
	if err := e.state.KVPut(feesKey, &fees); err != nil {
		return err
	}
	e.emit(FeesUpdatedEvent(fees))
	return nil
}

func (e *Engine) writeBeneficiary(beneficiary common.Address) error {
	if beneficiary == (common.Address{}) {
		return ErrInvalidBeneficiary
	}
	if err := e.state.KVPut(beneficiaryKey, beneficiary); err != nil {
		return err
	}
	e.emit(FeeBeneficiaryUpdatedEvent(beneficiary))
	return nil
}

// UpdateFees replaces the fee schedule. Trades already executed are not
// affected.
func (e *Engine) UpdateFees(caller common.Address, fees Fees) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.auth, access.UpdateFeesRole, caller); err != nil {
		return err
	}
	return e.writeFees(fees)
}

// UpdateFeeBeneficiary replaces the protocol fee beneficiary.
func (e *Engine) UpdateFeeBeneficiary(caller, beneficiary common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.auth, access.UpdateBeneficiaryRole, caller); err != nil {
		return err
	}
	return e.writeBeneficiary(beneficiary)
}

func (e *Engine) curve(subject common.Address) (*curveRecord, error) {
	rec := new(curveRecord)
	ok, err := e.state.KVGet(curveKey(subject), rec)
	if err != nil {
		return nil, err
	}
	if !ok || !rec.Initialized {
		return nil, ErrSubjectNotInitialized
	}
	return rec, nil
}

// IsInitialized reports whether subject has a live curve.
func (e *Engine) IsInitialized(subject common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, err := e.curve(subject)
	if errors.Is(err, ErrSubjectNotInitialized) {
		return false, nil
	}
	return err == nil, err
}

// ReserveRatio returns the reserve ratio of subject's curve.
func (e *Engine) ReserveRatio(subject common.Address) (uint32, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	rec, err := e.curve(subject)
	if err != nil {
		return 0, err
	}
	return rec.ReserveRatio, nil
}

// State returns the live curve parameters of subject.
func (e *Engine) State(subject common.Address) (*CurveState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	rec, err := e.curve(subject)
	if err != nil {
		return nil, err
	}
	supply, reserve, err := e.supplyAndReserve(rec.SubjectToken)
	if err != nil {
		return nil, err
	}
	return &CurveState{
		Subject:      subject,
		SubjectToken: rec.SubjectToken,
		ReserveToken: e.reserveToken,
		ReserveRatio: rec.ReserveRatio,
		Supply:       supply,
		Reserve:      reserve,
		Initialized:  true,
	}, nil
}

func (e *Engine) supplyAndReserve(subjectToken common.Address) (*big.Int, *big.Int, error) {
	supply, err := e.tokens.TotalSupply(subjectToken)
	if err != nil {
		return nil, nil, err
	}
	reserve, err := e.vault.BalanceOf(subjectToken, e.reserveToken)
	if err != nil {
		return nil, nil, err
	}
	return supply, reserve, nil
}

// InitializeSubjectBondingCurve opens subject's curve with initialReserve
// pulled from caller. The initial supply must already be in circulation.
func (e *Engine) InitializeSubjectBondingCurve(caller, subject common.Address, ratio uint32, initialSupply, initialReserve *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := access.Require(e.auth, access.OnboardingRole, caller); err != nil {
		return err
	}
	if subject == (common.Address{}) {
		return ErrInvalidSubject
	}
	if ratio == 0 || ratio > formula.MaxReserveRatio {
		return ErrInvalidReserveRatio
	}
	if initialReserve == nil || initialReserve.Sign() <= 0 {
		return ErrInvalidAmount
	}
	var existing curveRecord
	if ok, err := e.state.KVGet(curveKey(subject), &existing); err != nil {
		return err
	} else if ok && existing.Initialized {
		return ErrSubjectAlreadyInitialized
	}
	subjectToken, ok, err := e.manager.TokenOf(subject)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSubjectToken
	}
	supply, err := e.tokens.TotalSupply(subjectToken)
	if err != nil {
		return err
	}
	if initialSupply == nil || initialSupply.Sign() <= 0 || supply.Cmp(initialSupply) != 0 {
		return ErrInvalidSubjectSupply
	}
	if err := e.tokens.TransferFrom(e.reserveToken, e.address, caller, e.address, initialReserve); err != nil {
		return err
	}
	if err := e.depositToVault(subjectToken, initialReserve); err != nil {
		return err
	}
	rec := &curveRecord{SubjectToken: subjectToken, ReserveRatio: ratio, Initialized: true}
	if err := e.state.KVPut(curveKey(subject), rec); err != nil {
		return err
	}
	e.emit(InitializedEvent(subject, subjectToken, initialSupply, initialReserve, ratio))
	return nil
}

func (e *Engine) depositToVault(subjectToken common.Address, amount *big.Int) error {
	if err := e.tokens.Approve(e.reserveToken, e.address, e.vault.Address(), amount); err != nil {
		return err
	}
	return e.vault.Deposit(e.address, subjectToken, e.reserveToken, amount)
}

// BuyShares buys subject tokens for caller.
func (e *Engine) BuyShares(caller, subject common.Address, deposit, minReturn *big.Int) (*big.Int, error) {
	return e.BuySharesFor(caller, subject, deposit, caller, minReturn)
}

// BuySharesFor pulls deposit of the reserve currency from caller and mints
// the resulting subject tokens to beneficiary.
func (e *Engine) BuySharesFor(caller, subject common.Address, deposit *big.Int, beneficiary common.Address, minReturn *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if beneficiary == (common.Address{}) {
		return nil, ErrInvalidBeneficiary
	}
	rec, err := e.curve(subject)
	if err != nil {
		return nil, err
	}
	fees, err := e.Fees()
	if err != nil {
		return nil, err
	}
	supply, reserve, err := e.supplyAndReserve(rec.SubjectToken)
	if err != nil {
		return nil, err
	}
	protocolFee, subjectFee := fees.BuySide(deposit)
	effective := new(big.Int).Sub(deposit, protocolFee)
	effective.Sub(effective, subjectFee)
	if effective.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	minted, err := e.formula.CalculatePurchaseReturn(supply, reserve, rec.ReserveRatio, effective)
	if err != nil {
		return nil, err
	}
	if minted.Sign() == 0 || (minReturn != nil && minted.Cmp(minReturn) < 0) {
		return nil, ErrSlippageExceedsLimit
	}

	if err := e.tokens.TransferFrom(e.reserveToken, e.address, caller, e.address, deposit); err != nil {
		return nil, err
	}
	if err := e.depositToVault(rec.SubjectToken, effective); err != nil {
		return nil, err
	}
	if err := e.distributeFees(subject, protocolFee, subjectFee, "buy"); err != nil {
		return nil, err
	}
	if err := e.manager.Mint(e.address, subject, beneficiary, minted); err != nil {
		return nil, err
	}
	e.emit(SharePurchasedEvent(subject, e.reserveToken, deposit, rec.SubjectToken, minted, beneficiary, protocolFee, subjectFee))
	return minted, nil
}

// SellShares sells caller's subject tokens and pays caller.
func (e *Engine) SellShares(caller, subject common.Address, sell, minReturn *big.Int) (*big.Int, error) {
	return e.SellSharesFor(caller, subject, sell, caller, minReturn)
}

// SellSharesFor burns sell subject tokens from caller and pays the reserve,
// net of fees, to beneficiary. The curve burns through caller's allowance.
func (e *Engine) SellSharesFor(caller, subject common.Address, sell *big.Int, beneficiary common.Address, minReturn *big.Int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if sell == nil || sell.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if beneficiary == (common.Address{}) {
		return nil, ErrInvalidBeneficiary
	}
	rec, err := e.curve(subject)
	if err != nil {
		return nil, err
	}
	balance, err := e.tokens.BalanceOf(rec.SubjectToken, caller)
	if err != nil {
		return nil, err
	}
	if sell.Cmp(balance) > 0 {
		return nil, ErrInsufficientSubjectBalance
	}
	fees, err := e.Fees()
	if err != nil {
		return nil, err
	}
	supply, reserve, err := e.supplyAndReserve(rec.SubjectToken)
	if err != nil {
		return nil, err
	}
	gross, err := e.formula.CalculateSaleReturn(supply, reserve, rec.ReserveRatio, sell)
	if err != nil {
		return nil, err
	}
	protocolFee, subjectFee := fees.SellSide(gross)
	net := new(big.Int).Sub(gross, protocolFee)
	net.Sub(net, subjectFee)
	if net.Sign() < 0 {
		return nil, errNegativeProceed
	}
	if minReturn != nil && net.Cmp(minReturn) < 0 {
		return nil, ErrSlippageExceedsLimit
	}

	if err := e.tokens.BurnFrom(rec.SubjectToken, e.address, caller, sell); err != nil {
		return nil, err
	}
	if gross.Sign() > 0 {
		if err := e.vault.Transfer(e.address, rec.SubjectToken, e.reserveToken, e.address, gross); err != nil {
			return nil, err
		}
	}
	if net.Sign() > 0 {
		if err := e.tokens.Transfer(e.reserveToken, e.address, beneficiary, net); err != nil {
			return nil, err
		}
	}
	if err := e.distributeFees(subject, protocolFee, subjectFee, "sell"); err != nil {
		return nil, err
	}
	e.emit(ShareSoldEvent(subject, rec.SubjectToken, sell, e.reserveToken, net, beneficiary, protocolFee, subjectFee))
	return net, nil
}

func (e *Engine) distributeFees(subject common.Address, protocolFee, subjectFee *big.Int, side string) error {
	if protocolFee.Sign() > 0 {
		beneficiary, err := e.FeeBeneficiary()
		if err != nil {
			return err
		}
		if err := e.tokens.Transfer(e.reserveToken, e.address, beneficiary, protocolFee); err != nil {
			return err
		}
	}
	if subjectFee.Sign() == 0 {
		return nil
	}
	if e.rewards == nil {
		return e.tokens.Transfer(e.reserveToken, e.address, subject, subjectFee)
	}
	if err := e.tokens.Approve(e.reserveToken, e.address, e.rewards.Address(), subjectFee); err != nil {
		return err
	}
	return e.rewards.Deposit(e.address, subject, subjectFee, SubjectFeeReason, side)
}

// CalculateTokensForBuy quotes the deposit, fees included, needed to mint
// shares subject tokens.
func (e *Engine) CalculateTokensForBuy(subject common.Address, shares *big.Int) (*BuyQuote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	rec, err := e.curve(subject)
	if err != nil {
		return nil, err
	}
	fees, err := e.Fees()
	if err != nil {
		return nil, err
	}
	supply, reserve, err := e.supplyAndReserve(rec.SubjectToken)
	if err != nil {
		return nil, err
	}
	cost, err := e.formula.CalculateFundCost(supply, reserve, rec.ReserveRatio, shares)
	if err != nil {
		return nil, err
	}
	// Gross the cost up by the buy-side fee rate, then walk forward until
	// the post-fee amount covers the cost despite fee rounding.
	feePct := new(big.Int).Add(fees.ProtocolBuyFeePct, fees.SubjectBuyFeePct)
	denom := new(big.Int).Sub(PctBase, feePct)
	deposit := new(big.Int).Mul(cost, PctBase)
	deposit.Quo(deposit, denom)
	for {
		protocolFee, subjectFee := fees.BuySide(deposit)
		effective := new(big.Int).Sub(deposit, protocolFee)
		effective.Sub(effective, subjectFee)
		if effective.Cmp(cost) >= 0 {
			return &BuyQuote{Deposit: deposit, ProtocolFee: protocolFee, SubjectFee: subjectFee}, nil
		}
		deposit.Add(deposit, big.NewInt(1))
	}
}

// CalculateTokensForSell quotes the reserve paid, after fees, for selling
// sell subject tokens.
func (e *Engine) CalculateTokensForSell(subject common.Address, sell *big.Int) (*SellQuote, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if sell == nil || sell.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	rec, err := e.curve(subject)
	if err != nil {
		return nil, err
	}
	fees, err := e.Fees()
	if err != nil {
		return nil, err
	}
	supply, reserve, err := e.supplyAndReserve(rec.SubjectToken)
	if err != nil {
		return nil, err
	}
	gross, err := e.formula.CalculateSaleReturn(supply, reserve, rec.ReserveRatio, sell)
	if err != nil {
		return nil, err
	}
	protocolFee, subjectFee := fees.SellSide(gross)
	net := new(big.Int).Sub(gross, protocolFee)
	net.Sub(net, subjectFee)
	return &SellQuote{Return: net, ProtocolFee: protocolFee, SubjectFee: subjectFee}, nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}
