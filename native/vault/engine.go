package vault

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
	nativecommon "moxieprotocol/native/common"
)

// ModuleName is the pause domain of the vault.
const ModuleName = "vault"

var (
	errNilState  = errors.New("vault engine: state not configured")
	errNilTokens = errors.New("vault engine: token ledger not configured")

	ErrInvalidSubjectToken   = errors.New("vault engine: InvalidSubjectToken")
	ErrInvalidToken          = errors.New("vault engine: InvalidToken")
	ErrInvalidAmount         = errors.New("vault engine: InvalidAmount")
	ErrInvalidReceiver       = errors.New("vault engine: InvalidToAddress")
	ErrInvalidReserveBalance = errors.New("vault engine: InvalidReserveBalance")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// TokenLedger is the fungible-token capability the vault custodies reserve
// through.
type TokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
}

// Engine keeps the per (subjectToken, reserveToken) reserve ledger and holds
// the matching tokens at its own address.
type Engine struct {
	address common.Address
	state   engineState
	emitter events.Emitter
	tokens  TokenLedger
	auth    access.Authority
	pauses  nativecommon.PauseView
}

// NewEngine constructs a vault custodying tokens at address.
func NewEngine(address common.Address, tokens TokenLedger, auth access.Authority) *Engine {
	return &Engine{address: address, tokens: tokens, auth: auth, emitter: events.NoopEmitter{}}
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

// SetPauses wires the pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Address returns the custody address of the vault.
func (e *Engine) Address() common.Address { return e.address }

func balanceKey(subjectToken, reserveToken common.Address) []byte {
	return []byte("vault/reserve/" + subjectToken.Hex() + "/" + reserveToken.Hex())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokens
	}
	return nil
}

func validate(subjectToken, reserveToken common.Address, amount *big.Int) error {
	if subjectToken == (common.Address{}) {
		return ErrInvalidSubjectToken
	}
	if reserveToken == (common.Address{}) {
		return ErrInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// BalanceOf returns the recorded reserve of the pair.
func (e *Engine) BalanceOf(subjectToken, reserveToken common.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	balance := new(big.Int)
	if _, err := e.state.KVGet(balanceKey(subjectToken, reserveToken), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// Deposit pulls amount of reserveToken from caller and credits the pair.
// Deposits stay open while the vault is paused.
func (e *Engine) Deposit(caller, subjectToken, reserveToken common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.auth, access.DepositRole, caller); err != nil {
		return err
	}
	if err := validate(subjectToken, reserveToken, amount); err != nil {
		return err
	}
	if err := e.tokens.TransferFrom(reserveToken, e.address, caller, e.address, amount); err != nil {
		return err
	}
	balance, err := e.BalanceOf(subjectToken, reserveToken)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	if err := e.state.KVPut(balanceKey(subjectToken, reserveToken), balance); err != nil {
		return err
	}
	e.emit(DepositEvent(subjectToken, reserveToken, caller, amount, balance))
	return nil
}

// Transfer debits the pair and sends amount of reserveToken to to.
func (e *Engine) Transfer(caller, subjectToken, reserveToken, to common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := access.Require(e.auth, access.TransferRole, caller); err != nil {
		return err
	}
	if err := validate(subjectToken, reserveToken, amount); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	balance, err := e.BalanceOf(subjectToken, reserveToken)
	if err != nil {
		return err
	}
	if amount.Cmp(balance) > 0 {
		return ErrInvalidReserveBalance
	}
	balance.Sub(balance, amount)
	if balance.Sign() == 0 {
		err = e.state.KVDelete(balanceKey(subjectToken, reserveToken))
	} else {
		err = e.state.KVPut(balanceKey(subjectToken, reserveToken), balance)
	}
	if err != nil {
		return err
	}
	if err := e.tokens.Transfer(reserveToken, e.address, to, amount); err != nil {
		return err
	}
	e.emit(TransferEvent(subjectToken, reserveToken, to, amount, balance))
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}
