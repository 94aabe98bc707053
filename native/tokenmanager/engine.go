package tokenmanager

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
	"moxieprotocol/native/token"
)

var (
	errNilState  = errors.New("token manager: state not configured")
	errNilLedger = errors.New("token manager: token ledger not configured")

	ErrInvalidSubject = errors.New("token manager: InvalidSubject")
	ErrSubjectExists  = errors.New("token manager: SubjectExists")
	ErrTokenNotFound  = errors.New("token manager: TokenNotFound")
	ErrInvalidAmount  = errors.New("token manager: InvalidAmount")
)

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// TokenLedger deploys and mints fungible tokens.
type TokenLedger interface {
	Deploy(deployer common.Address, name, symbol string, minter common.Address, requirePass bool) (*token.Metadata, error)
	Mint(token, caller, to common.Address, amount *big.Int) error
}

// CreateInput describes a subject token.
type CreateInput struct {
	Subject       common.Address
	Name          string
	Symbol        string
	InitialSupply *big.Int
	// PassGated restricts holders to accounts admitted by the pass verifier.
	PassGated bool
	// Recipient receives the initial supply. Defaults to Subject.
	Recipient common.Address
}

// Engine registers exactly one fungible token per subject and is the sole
// minter of those tokens.
type Engine struct {
	address common.Address
	state   engineState
	emitter events.Emitter
	ledger  TokenLedger
	auth    access.Authority
}

// NewEngine constructs a token manager operating at address.
func NewEngine(address common.Address, ledger TokenLedger, auth access.Authority) *Engine {
	return &Engine{address: address, ledger: ledger, auth: auth, emitter: events.NoopEmitter{}}
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

// Address returns the manager address, which is also the minter of every
// subject token.
func (e *Engine) Address() common.Address { return e.address }

func tokenKey(subject common.Address) []byte {
	return []byte("tokenmanager/token/" + subject.Hex())
}

func subjectKey(tok common.Address) []byte {
	return []byte("tokenmanager/subject/" + tok.Hex())
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

// TokenOf returns the token registered for subject.
func (e *Engine) TokenOf(subject common.Address) (common.Address, bool, error) {
	if e == nil || e.state == nil {
		return common.Address{}, false, errNilState
	}
	var tok common.Address
	ok, err := e.state.KVGet(tokenKey(subject), &tok)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return tok, true, nil
}

// SubjectOf returns the subject owning tok.
func (e *Engine) SubjectOf(tok common.Address) (common.Address, bool, error) {
	if e == nil || e.state == nil {
		return common.Address{}, false, errNilState
	}
	var subject common.Address
	ok, err := e.state.KVGet(subjectKey(tok), &subject)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return subject, true, nil
}

// Create deploys the subject token and mints the initial supply.
func (e *Engine) Create(caller common.Address, in CreateInput) (common.Address, error) {
	if err := e.ready(); err != nil {
		return common.Address{}, err
	}
	if err := access.Require(e.auth, access.CreateRole, caller); err != nil {
		return common.Address{}, err
	}
	if in.Subject == (common.Address{}) {
		return common.Address{}, ErrInvalidSubject
	}
	if in.InitialSupply != nil && in.InitialSupply.Sign() < 0 {
		return common.Address{}, ErrInvalidAmount
	}
	if _, exists, err := e.TokenOf(in.Subject); err != nil {
		return common.Address{}, err
	} else if exists {
		return common.Address{}, ErrSubjectExists
	}
	meta, err := e.ledger.Deploy(e.address, in.Name, in.Symbol, e.address, in.PassGated)
	if err != nil {
		return common.Address{}, err
	}
	if err := e.state.KVPut(tokenKey(in.Subject), meta.Address); err != nil {
		return common.Address{}, err
	}
	if err := e.state.KVPut(subjectKey(meta.Address), in.Subject); err != nil {
		return common.Address{}, err
	}
	supply := big.NewInt(0)
	if in.InitialSupply != nil && in.InitialSupply.Sign() > 0 {
		supply.Set(in.InitialSupply)
		recipient := in.Recipient
		if recipient == (common.Address{}) {
			recipient = in.Subject
		}
		if err := e.ledger.Mint(meta.Address, e.address, recipient, supply); err != nil {
			return common.Address{}, err
		}
	}
	e.emit(TokenDeployedEvent(in.Subject, meta.Address, supply))
	return meta.Address, nil
}

// Mint issues amount of the subject's token to beneficiary.
func (e *Engine) Mint(caller, subject, beneficiary common.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.auth, access.MintRole, caller); err != nil {
		return err
	}
	tok, ok, err := e.TokenOf(subject)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTokenNotFound
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.ledger.Mint(tok, e.address, beneficiary, amount); err != nil {
		return err
	}
	e.emit(TokenMintedEvent(subject, beneficiary, amount))
	return nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}
