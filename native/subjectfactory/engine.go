package subjectfactory

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
	nativecommon "moxieprotocol/native/common"
	"moxieprotocol/native/tokenmanager"
)

// ModuleName is the pause domain of the factory.
const ModuleName = "subjectfactory"

var pctBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

var (
	errNilState      = errors.New("subject factory: state not configured")
	errMissingDeps   = errors.New("subject factory: dependencies not configured")
	errNotConfigured = errors.New("subject factory: not configured")
	errAlreadySetup  = errors.New("subject factory: already configured")

	ErrInvalidSubject          = errors.New("subject factory: InvalidSubject")
	ErrNotAPassHolder          = errors.New("subject factory: NotAMoxiePassHolder")
	ErrInvalidAmount           = errors.New("subject factory: InvalidAmount")
	ErrSubjectAlreadyOnboarded = errors.New("subject factory: SubjectAlreadyOnboarded")
	ErrSubjectNotInAuction     = errors.New("subject factory: SubjectNotInAuction")
	ErrAuctionNotDoneYet       = errors.New("subject factory: AuctionNotDoneYet")
	ErrInvalidAuctionTime      = errors.New("subject factory: InvalidAuctionTime")
	ErrInvalidFeePercentage    = errors.New("subject factory: InvalidFeePercentage")
	ErrInvalidBeneficiary      = errors.New("subject factory: InvalidBeneficiary")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// TokenLedger is the fungible-token capability.
type TokenLedger interface {
	BalanceOf(token, holder common.Address) (*big.Int, error)
	TotalSupply(token common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Approve(token, owner, spender common.Address, amount *big.Int) error
	Burn(token, from common.Address, amount *big.Int) error
}

// TokenManager creates subject tokens.
type TokenManager interface {
	Address() common.Address
	Create(caller common.Address, in tokenmanager.CreateInput) (common.Address, error)
}

// BondingCurve opens subject curves.
type BondingCurve interface {
	Address() common.Address
	InitializeSubjectBondingCurve(caller, subject common.Address, ratio uint32, initialSupply, initialReserve *big.Int) error
}

// PassView reports access pass ownership.
type PassView interface {
	IsPassHolder(account common.Address) (bool, error)
}

// Config bundles the factory collaborators.
type Config struct {
	Address      common.Address
	ReserveToken common.Address
	Tokens       TokenLedger
	TokenManager TokenManager
	BondingCurve BondingCurve
	Auction      Auction
	Passes       PassView
	Auth         access.Authority
}

// Engine onboards subjects: it issues the subject token through an external
// batch auction and seeds the subject's bonding curve from the proceeds.
type Engine struct {
	cfg     Config
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine constructs a subject factory.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
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

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses wires the pause view consulted before onboarding.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Address returns the factory address.
func (e *Engine) Address() common.Address { return e.cfg.Address }

// EasyAuction returns the address of the external auction.
func (e *Engine) EasyAuction() common.Address { return e.cfg.Auction.Address() }

// TokenManager returns the address of the token manager.
func (e *Engine) TokenManager() common.Address { return e.cfg.TokenManager.Address() }

// BondingCurve returns the address of the bonding curve.
func (e *Engine) BondingCurve() common.Address { return e.cfg.BondingCurve.Address() }

func subjectKey(subject common.Address) []byte {
	return []byte("subjectfactory/subject/" + subject.Hex())
}

var (
	auctionTimeKey = []byte("subjectfactory/auctionTime")
	feesKey        = []byte("subjectfactory/fees")
)

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	c := e.cfg
	if c.Tokens == nil || c.TokenManager == nil || c.BondingCurve == nil || c.Auction == nil || c.Passes == nil {
		return errMissingDeps
	}
	return nil
}

func (e *Engine) now() uint64 {
	now := e.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

// Setup stores the initial auction window and fee configuration.
func (e *Engine) Setup(window AuctionTime, fees FeeConfig) error {
	if err := e.ready(); err != nil {
		return err
	}
	if ok, err := e.state.KVGet(auctionTimeKey, nil); err != nil {
		return err
	} else if ok {
		return errAlreadySetup
	}
	if err := e.writeAuctionTime(window); err != nil {
		return err
	}
	return e.writeFees(fees)
}

// AuctionTime returns the window applied to new auctions.
func (e *Engine) AuctionTime() (AuctionTime, error) {
	if e == nil || e.state == nil {
		return AuctionTime{}, errNilState
	}
	var window AuctionTime
	ok, err := e.state.KVGet(auctionTimeKey, &window)
	if err != nil {
		return AuctionTime{}, err
	}
	if !ok {
		return AuctionTime{}, errNotConfigured
	}
	return window, nil
}

// Fees returns the fees charged on auction proceeds.
func (e *Engine) Fees() (FeeConfig, error) {
	if e == nil || e.state == nil {
		return FeeConfig{}, errNilState
	}
	var fees FeeConfig
	ok, err := e.state.KVGet(feesKey, &fees)
	if err != nil {
		return FeeConfig{}, err
	}
	if !ok {
		return FeeConfig{}, errNotConfigured
	}
	if fees.ProtocolFeePct == nil {
		fees.ProtocolFeePct = big.NewInt(0)
	}
	if fees.SubjectFeePct == nil {
		fees.SubjectFeePct = big.NewInt(0)
	}
	return fees, nil
}

func (e *Engine) writeAuctionTime(window AuctionTime) error {
	if window.Duration == 0 || window.CancellationDuration > window.Duration {
		return ErrInvalidAuctionTime
	}
	if err := e.state.KVPut(auctionTimeKey, &window); err != nil {
		return err
	}
	e.emit(AuctionTimeUpdatedEvent(window.Duration, window.CancellationDuration))
	return nil
}

func (e *Engine) writeFees(fees FeeConfig) error {
	protocolPct := fees.ProtocolFeePct
	if protocolPct == nil {
		protocolPct = big.NewInt(0)
	}
	subjectPct := fees.SubjectFeePct
	if subjectPct == nil {
		subjectPct = big.NewInt(0)
	}
	if protocolPct.Sign() < 0 || subjectPct.Sign() < 0 || new(big.Int).Add(protocolPct, subjectPct).Cmp(pctBase) >= 0 {
		return ErrInvalidFeePercentage
	}
	if protocolPct.Sign() > 0 && fees.Beneficiary == (common.Address{}) {
		return ErrInvalidBeneficiary
	}
	stored := FeeConfig{ProtocolFeePct: new(big.Int).Set(protocolPct), SubjectFeePct: new(big.Int).Set(subjectPct), Beneficiary: fees.Beneficiary}
	if err := e.state.KVPut(feesKey, &stored); err != nil {
		return err
	}
	e.emit(FeesUpdatedEvent(stored.ProtocolFeePct, stored.SubjectFeePct))
	return nil
}

// UpdateAuctionTime changes the window of subsequently initiated auctions.
func (e *Engine) UpdateAuctionTime(caller common.Address, duration, cancellationDuration uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.cfg.Auth, access.UpdateAuctionRole, caller); err != nil {
		return err
	}
	return e.writeAuctionTime(AuctionTime{Duration: duration, CancellationDuration: cancellationDuration})
}

// UpdateFees changes the fees charged on proceeds of later finalisations.
func (e *Engine) UpdateFees(caller common.Address, fees FeeConfig) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.cfg.Auth, access.UpdateFeesRole, caller); err != nil {
		return err
	}
	return e.writeFees(fees)
}

// UpdateFeeBeneficiary changes the recipient of the protocol fee.
func (e *Engine) UpdateFeeBeneficiary(caller, beneficiary common.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.cfg.Auth, access.UpdateBeneficiaryRole, caller); err != nil {
		return err
	}
	if beneficiary == (common.Address{}) {
		return ErrInvalidBeneficiary
	}
	fees, err := e.Fees()
	if err != nil {
		return err
	}
	fees.Beneficiary = beneficiary
	return e.writeFees(fees)
}

// Subject returns the onboarding record of subject.
func (e *Engine) Subject(subject common.Address) (*Subject, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	rec := new(Subject)
	ok, err := e.state.KVGet(subjectKey(subject), rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Subject{Subject: subject, InitialSupply: big.NewInt(0), Status: StatusNotOnboarded}, nil
	}
	if rec.InitialSupply == nil {
		rec.InitialSupply = big.NewInt(0)
	}
	return rec, nil
}

// InitiateSubjectOnboarding creates the subject token with the initial supply
// held by the factory and offers it through the external auction.
func (e *Engine) InitiateSubjectOnboarding(caller, subject common.Address, in AuctionInput) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	if err := access.Require(e.cfg.Auth, access.OnboardingRole, caller); err != nil {
		return 0, err
	}
	if subject == (common.Address{}) {
		return 0, ErrInvalidSubject
	}
	if in.InitialSupply == nil || in.InitialSupply.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	holder, err := e.cfg.Passes.IsPassHolder(subject)
	if err != nil {
		return 0, err
	}
	if !holder {
		return 0, ErrNotAPassHolder
	}
	existing, err := e.Subject(subject)
	if err != nil {
		return 0, err
	}
	if existing.Status != StatusNotOnboarded {
		return 0, ErrSubjectAlreadyOnboarded
	}
	window, err := e.AuctionTime()
	if err != nil {
		return 0, err
	}

	self := e.cfg.Address
	subjectToken, err := e.cfg.TokenManager.Create(self, tokenmanager.CreateInput{
		Subject:       subject,
		Name:          in.Name,
		Symbol:        in.Symbol,
		InitialSupply: in.InitialSupply,
		PassGated:     true,
		Recipient:     self,
	})
	if err != nil {
		return 0, err
	}
	if err := e.cfg.Tokens.Approve(subjectToken, self, e.cfg.Auction.Address(), in.InitialSupply); err != nil {
		return 0, err
	}
	now := e.now()
	params := AuctionParams{
		AuctioningToken:          subjectToken,
		BiddingToken:             e.cfg.ReserveToken,
		OrderCancellationEndDate: now + window.CancellationDuration,
		AuctionEndDate:           now + window.Duration,
		AuctionedSellAmount:      new(big.Int).Set(in.InitialSupply),
		MinBuyAmount:             orZero(in.MinBuyAmount),
		MinimumBiddingAmount:     orZero(in.MinBiddingAmount),
		MinFundingThreshold:      orZero(in.MinFundingThreshold),
		IsAtomicClosureAllowed:   in.IsAtomicClosure,
	}
	auctionID, err := e.cfg.Auction.InitiateAuction(self, params)
	if err != nil {
		return 0, err
	}
	rec := &Subject{
		Subject:        subject,
		SubjectToken:   subjectToken,
		AuctionID:      auctionID,
		AuctionEndDate: params.AuctionEndDate,
		InitialSupply:  new(big.Int).Set(in.InitialSupply),
		Status:         StatusAuctionActive,
	}
	if err := e.state.KVPut(subjectKey(subject), rec); err != nil {
		return 0, err
	}
	e.emit(OnboardingInitiatedEvent(subject, subjectToken, in, auctionID, params.AuctionEndDate))
	return auctionID, nil
}

// FinalizeSubjectOnboarding settles the auction, burns unsold tokens, adds
// buyAmount pulled from caller to the proceeds and opens the bonding curve.
func (e *Engine) FinalizeSubjectOnboarding(caller, subject common.Address, buyAmount *big.Int, ratio uint32) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := access.Require(e.cfg.Auth, access.OnboardingRole, caller); err != nil {
		return err
	}
	if buyAmount == nil || buyAmount.Sign() < 0 {
		return ErrInvalidAmount
	}
	rec, err := e.Subject(subject)
	if err != nil {
		return err
	}
	if rec.Status != StatusAuctionActive {
		return ErrSubjectNotInAuction
	}
	if e.now() < rec.AuctionEndDate {
		return ErrAuctionNotDoneYet
	}
	fees, err := e.Fees()
	if err != nil {
		return err
	}

	self := e.cfg.Address
	reserveToken := e.cfg.ReserveToken
	reserveBefore, err := e.cfg.Tokens.BalanceOf(reserveToken, self)
	if err != nil {
		return err
	}
	subjectBefore, err := e.cfg.Tokens.BalanceOf(rec.SubjectToken, self)
	if err != nil {
		return err
	}
	if err := e.cfg.Auction.SettleAuction(rec.AuctionID); err != nil {
		return err
	}
	reserveAfter, err := e.cfg.Tokens.BalanceOf(reserveToken, self)
	if err != nil {
		return err
	}
	subjectAfter, err := e.cfg.Tokens.BalanceOf(rec.SubjectToken, self)
	if err != nil {
		return err
	}
	proceeds := new(big.Int).Sub(reserveAfter, reserveBefore)
	unsold := new(big.Int).Sub(subjectAfter, subjectBefore)
	if unsold.Sign() > 0 {
		if err := e.cfg.Tokens.Burn(rec.SubjectToken, self, unsold); err != nil {
			return err
		}
	}

	protocolFee := new(big.Int).Mul(proceeds, fees.ProtocolFeePct)
	protocolFee.Quo(protocolFee, pctBase)
	subjectFee := new(big.Int).Mul(proceeds, fees.SubjectFeePct)
	subjectFee.Quo(subjectFee, pctBase)
	if protocolFee.Sign() > 0 {
		if err := e.cfg.Tokens.Transfer(reserveToken, self, fees.Beneficiary, protocolFee); err != nil {
			return err
		}
	}
	if subjectFee.Sign() > 0 {
		if err := e.cfg.Tokens.Transfer(reserveToken, self, subject, subjectFee); err != nil {
			return err
		}
	}
	reserve := new(big.Int).Sub(proceeds, protocolFee)
	reserve.Sub(reserve, subjectFee)
	if buyAmount.Sign() > 0 {
		if err := e.cfg.Tokens.TransferFrom(reserveToken, self, caller, self, buyAmount); err != nil {
			return err
		}
		reserve.Add(reserve, buyAmount)
	}
	supply, err := e.cfg.Tokens.TotalSupply(rec.SubjectToken)
	if err != nil {
		return err
	}
	curve := e.cfg.BondingCurve
	if err := e.cfg.Tokens.Approve(reserveToken, self, curve.Address(), reserve); err != nil {
		return err
	}
	if err := curve.InitializeSubjectBondingCurve(self, subject, ratio, supply, reserve); err != nil {
		return err
	}
	rec.Status = StatusFinalized
	if err := e.state.KVPut(subjectKey(subject), rec); err != nil {
		return err
	}
	e.emit(OnboardingFinalizedEvent(subject, rec.SubjectToken, rec.AuctionID, supply, reserve, protocolFee, subjectFee))
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}
