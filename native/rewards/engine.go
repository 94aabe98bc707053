package rewards

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
)

var (
	errNilState  = errors.New("rewards engine: state not configured")
	errNilTokens = errors.New("rewards engine: token ledger not configured")

	ErrAddressZero         = errors.New("rewards engine: ADDRESS_ZERO")
	ErrInvalidAmount       = errors.New("rewards engine: INVALID_DEPOSIT")
	ErrInvalidWithdraw     = errors.New("rewards engine: INVALID_WITHDRAW")
	ErrArrayLengthMismatch = errors.New("rewards engine: ARRAY_LENGTH_MISMATCH")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// TokenLedger moves the reward currency.
type TokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// Engine is the protocol rewards ledger: fees owed to subjects accrue here
// and are withdrawn directly or through a signed authorisation.
type Engine struct {
	address      common.Address
	reserveToken common.Address
	domain       Domain
	state        engineState
	emitter      events.Emitter
	tokens       TokenLedger
	nowFn        func() int64
}

// NewEngine constructs a rewards ledger paying out reserveToken.
func NewEngine(address, reserveToken common.Address, tokens TokenLedger, domain Domain) *Engine {
	return &Engine{
		address:      address,
		reserveToken: reserveToken,
		domain:       domain,
		tokens:       tokens,
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
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

// Address returns the custody address of the ledger.
func (e *Engine) Address() common.Address { return e.address }

// Domain returns the EIP-712 domain of withdraw signatures.
func (e *Engine) Domain() Domain { return e.domain }

func balanceKey(account common.Address) []byte {
	return []byte("rewards/balance/" + account.Hex())
}

func nonceKey(account common.Address) []byte {
	return []byte("rewards/nonce/" + account.Hex())
}

var totalSupplyKey = []byte("rewards/totalSupply")

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

func (e *Engine) readBig(key []byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	v := new(big.Int)
	if _, err := e.state.KVGet(key, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (e *Engine) writeBig(key []byte, v *big.Int) error {
	if v.Sign() == 0 {
		return e.state.KVDelete(key)
	}
	return e.state.KVPut(key, v)
}

// BalanceOf returns the withdrawable rewards of account.
func (e *Engine) BalanceOf(account common.Address) (*big.Int, error) {
	return e.readBig(balanceKey(account))
}

// Nonce returns the next withdraw signature nonce of account.
func (e *Engine) Nonce(account common.Address) (*big.Int, error) {
	return e.readBig(nonceKey(account))
}

// TotalSupply returns the sum of all balances.
func (e *Engine) TotalSupply() (*big.Int, error) {
	return e.readBig(totalSupplyKey)
}

func (e *Engine) credit(to common.Address, amount *big.Int) error {
	balance, err := e.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := e.writeBig(balanceKey(to), balance.Add(balance, amount)); err != nil {
		return err
	}
	total, err := e.TotalSupply()
	if err != nil {
		return err
	}
	return e.writeBig(totalSupplyKey, total.Add(total, amount))
}

// Deposit pulls amount from caller and credits it to to.
func (e *Engine) Deposit(caller, to common.Address, amount *big.Int, reason, comment string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrAddressZero
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.tokens.TransferFrom(e.reserveToken, e.address, caller, e.address, amount); err != nil {
		return err
	}
	if err := e.credit(to, amount); err != nil {
		return err
	}
	e.emit(DepositEvent(caller, to, reason, amount, comment))
	return nil
}

// DepositBatch credits several recipients with a single pull of the summed
// amount.
func (e *Engine) DepositBatch(caller common.Address, recipients []common.Address, amounts []*big.Int, reasons []string, comment string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if len(recipients) != len(amounts) || len(recipients) != len(reasons) {
		return ErrArrayLengthMismatch
	}
	total := big.NewInt(0)
	for i, to := range recipients {
		if to == (common.Address{}) {
			return ErrAddressZero
		}
		if amounts[i] == nil || amounts[i].Sign() <= 0 {
			return ErrInvalidAmount
		}
		total.Add(total, amounts[i])
	}
	if total.Sign() == 0 {
		return ErrInvalidAmount
	}
	if err := e.tokens.TransferFrom(e.reserveToken, e.address, caller, e.address, total); err != nil {
		return err
	}
	for i, to := range recipients {
		if err := e.credit(to, amounts[i]); err != nil {
			return err
		}
		e.emit(DepositEvent(caller, to, reasons[i], amounts[i], comment))
	}
	return nil
}

func (e *Engine) withdraw(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrAddressZero
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidWithdraw
	}
	balance, err := e.BalanceOf(from)
	if err != nil {
		return err
	}
	if amount.Cmp(balance) > 0 {
		return ErrInvalidWithdraw
	}
	if err := e.writeBig(balanceKey(from), balance.Sub(balance, amount)); err != nil {
		return err
	}
	total, err := e.TotalSupply()
	if err != nil {
		return err
	}
	if err := e.writeBig(totalSupplyKey, total.Sub(total, amount)); err != nil {
		return err
	}
	if err := e.tokens.Transfer(e.reserveToken, e.address, to, amount); err != nil {
		return err
	}
	e.emit(WithdrawEvent(from, to, amount))
	return nil
}

// Withdraw sends amount of caller's rewards to to.
func (e *Engine) Withdraw(caller, to common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.withdraw(caller, to, amount)
}

// WithdrawFor pays amount of owner's rewards to owner. Anyone may trigger it.
func (e *Engine) WithdrawFor(owner common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.withdraw(owner, owner, amount)
}

// WithdrawWithSig executes a withdrawal authorised off-chain by from.
func (e *Engine) WithdrawWithSig(from, to common.Address, amount, deadline *big.Int, sig []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if deadline == nil || deadline.Cmp(big.NewInt(e.nowFn())) < 0 {
		return ErrSignatureDeadlineExpired
	}
	nonce, err := e.Nonce(from)
	if err != nil {
		return err
	}
	if amount == nil {
		return ErrInvalidWithdraw
	}
	digest, err := WithdrawDigest(e.domain, e.address, from, to, amount, nonce, deadline)
	if err != nil {
		return err
	}
	signer, err := recoverSigner(digest, sig)
	if err != nil {
		return err
	}
	if signer != from || from == (common.Address{}) {
		return ErrInvalidSignature
	}
	if err := e.state.KVPut(nonceKey(from), new(big.Int).Add(nonce, big.NewInt(1))); err != nil {
		return err
	}
	return e.withdraw(from, to, amount)
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}
