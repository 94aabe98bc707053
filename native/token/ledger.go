package token

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
)

var (
	errNilState = errors.New("token ledger: state not configured")

	ErrTokenNotFound         = errors.New("token ledger: token not found")
	ErrInvalidAmount         = errors.New("token ledger: amount must not be negative")
	ErrInvalidReceiver       = errors.New("token ledger: ERC20InvalidReceiver")
	ErrInvalidSender         = errors.New("token ledger: ERC20InvalidSender")
	ErrInsufficientBalance   = errors.New("token ledger: ERC20InsufficientBalance")
	ErrInsufficientAllowance = errors.New("token ledger: ERC20InsufficientAllowance")
	ErrUnauthorizedMinter    = errors.New("token ledger: caller is not the token minter")
	ErrRecipientNotAllowed   = errors.New("token ledger: recipient does not hold an access pass")
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
	EventTypeDeployed = "token.deployed"
)

// MaxUint256 is the allowance value treated as unlimited.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Metadata describes a fungible token tracked by the ledger.
type Metadata struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	Minter      common.Address
	RequirePass bool
	TotalSupply *big.Int
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	clone.TotalSupply = newBigInt(m.TotalSupply)
	return &clone
}

// PassVerifier decides whether an account may receive pass-gated tokens.
type PassVerifier interface {
	IsAllowed(account common.Address) (bool, error)
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Ledger implements the fungible-token capability (balances, allowances,
// mint and burn) for every token deployed through it.
type Ledger struct {
	state    ledgerState
	emitter  events.Emitter
	verifier PassVerifier
}

// NewLedger constructs a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter used by the ledger.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetPassVerifier configures the allow-list consulted for pass-gated tokens.
func (l *Ledger) SetPassVerifier(verifier PassVerifier) { l.verifier = verifier }

func metaKey(token common.Address) []byte {
	return []byte("token/meta/" + token.Hex())
}

func balanceKey(token, holder common.Address) []byte {
	return []byte("token/balance/" + token.Hex() + "/" + holder.Hex())
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return []byte("token/allowance/" + token.Hex() + "/" + owner.Hex() + "/" + spender.Hex())
}

func nonceKey(deployer common.Address) []byte {
	return []byte("token/nonce/" + deployer.Hex())
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (l *Ledger) ready() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return nil
}

// Deploy registers a new token. The address is derived from the deployer and
// its deployment nonce, mirroring contract-creation addressing.
func (l *Ledger) Deploy(deployer common.Address, name, symbol string, minter common.Address, requirePass bool) (*Metadata, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	var nonce uint64
	if _, err := l.state.KVGet(nonceKey(deployer), &nonce); err != nil {
		return nil, err
	}
	addr := ethcrypto.CreateAddress(deployer, nonce)
	if err := l.state.KVPut(nonceKey(deployer), nonce+1); err != nil {
		return nil, err
	}
	meta := &Metadata{
		Address:     addr,
		Name:        strings.TrimSpace(name),
		Symbol:      strings.TrimSpace(symbol),
		Decimals:    18,
		Minter:      minter,
		RequirePass: requirePass,
		TotalSupply: big.NewInt(0),
	}
	if err := l.state.KVPut(metaKey(addr), meta); err != nil {
		return nil, err
	}
	l.emit(EventTypeDeployed, map[string]string{
		"token":    addr.Hex(),
		"name":     meta.Name,
		"symbol":   meta.Symbol,
		"deployer": deployer.Hex(),
	})
	return meta.Clone(), nil
}

// Metadata returns the token description.
func (l *Ledger) Metadata(token common.Address) (*Metadata, bool, error) {
	if err := l.ready(); err != nil {
		return nil, false, err
	}
	meta := new(Metadata)
	ok, err := l.state.KVGet(metaKey(token), meta)
	if err != nil || !ok {
		return nil, false, err
	}
	meta.TotalSupply = newBigInt(meta.TotalSupply)
	return meta, true, nil
}

func (l *Ledger) mustMetadata(token common.Address) (*Metadata, error) {
	meta, ok, err := l.Metadata(token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTokenNotFound
	}
	return meta, nil
}

// TotalSupply returns the circulating supply of token.
func (l *Ledger) TotalSupply(token common.Address) (*big.Int, error) {
	meta, err := l.mustMetadata(token)
	if err != nil {
		return nil, err
	}
	return meta.TotalSupply, nil
}

// BalanceOf returns the balance of holder.
func (l *Ledger) BalanceOf(token, holder common.Address) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	balance := new(big.Int)
	if _, err := l.state.KVGet(balanceKey(token, holder), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (l *Ledger) putBalance(token, holder common.Address, balance *big.Int) error {
	if balance.Sign() == 0 {
		return l.state.KVDelete(balanceKey(token, holder))
	}
	return l.state.KVPut(balanceKey(token, holder), balance)
}

// Allowance returns how much spender may pull from owner.
func (l *Ledger) Allowance(token, owner, spender common.Address) (*big.Int, error) {
	if err := l.ready(); err != nil {
		return nil, err
	}
	allowance := new(big.Int)
	if _, err := l.state.KVGet(allowanceKey(token, owner, spender), allowance); err != nil {
		return nil, err
	}
	return allowance, nil
}

// Approve sets the allowance of spender over owner's balance.
func (l *Ledger) Approve(token, owner, spender common.Address, amount *big.Int) error {
	if _, err := l.mustMetadata(token); err != nil {
		return err
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if owner == (common.Address{}) {
		return ErrInvalidSender
	}
	if spender == (common.Address{}) {
		return ErrInvalidReceiver
	}
	if amount.Sign() == 0 {
		if err := l.state.KVDelete(allowanceKey(token, owner, spender)); err != nil {
			return err
		}
	} else if err := l.state.KVPut(allowanceKey(token, owner, spender), amount); err != nil {
		return err
	}
	l.emit(EventTypeApproval, map[string]string{
		"token":   token.Hex(),
		"owner":   owner.Hex(),
		"spender": spender.Hex(),
		"value":   amount.String(),
	})
	return nil
}

func (l *Ledger) spendAllowance(token, owner, spender common.Address, amount *big.Int) error {
	current, err := l.Allowance(token, owner, spender)
	if err != nil {
		return err
	}
	if current.Cmp(MaxUint256) == 0 {
		return nil
	}
	if current.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	remaining := new(big.Int).Sub(current, amount)
	if remaining.Sign() == 0 {
		return l.state.KVDelete(allowanceKey(token, owner, spender))
	}
	return l.state.KVPut(allowanceKey(token, owner, spender), remaining)
}

// Transfer moves amount from the sender's own balance.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	meta, err := l.mustMetadata(token)
	if err != nil {
		return err
	}
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	return l.update(meta, from, to, amount)
}

// TransferFrom moves amount from owner to recipient using spender's allowance.
func (l *Ledger) TransferFrom(token, spender, from, to common.Address, amount *big.Int) error {
	meta, err := l.mustMetadata(token)
	if err != nil {
		return err
	}
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.spendAllowance(token, from, spender, amount); err != nil {
		return err
	}
	return l.update(meta, from, to, amount)
}

// Mint creates amount new tokens for to. Only the token minter may mint.
func (l *Ledger) Mint(token, caller, to common.Address, amount *big.Int) error {
	meta, err := l.mustMetadata(token)
	if err != nil {
		return err
	}
	if caller != meta.Minter {
		return ErrUnauthorizedMinter
	}
	if to == (common.Address{}) {
		return ErrInvalidReceiver
	}
	return l.update(meta, common.Address{}, to, amount)
}

// Burn destroys amount from the holder's own balance.
func (l *Ledger) Burn(token, from common.Address, amount *big.Int) error {
	meta, err := l.mustMetadata(token)
	if err != nil {
		return err
	}
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	return l.update(meta, from, common.Address{}, amount)
}

// BurnFrom destroys amount from owner using spender's allowance.
func (l *Ledger) BurnFrom(token, spender, from common.Address, amount *big.Int) error {
	meta, err := l.mustMetadata(token)
	if err != nil {
		return err
	}
	if from == (common.Address{}) {
		return ErrInvalidSender
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.spendAllowance(token, from, spender, amount); err != nil {
		return err
	}
	return l.update(meta, from, common.Address{}, amount)
}

// update is the single balance mutation path. A zero from mints, a zero to
// burns.
func (l *Ledger) update(meta *Metadata, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if meta.RequirePass && to != (common.Address{}) {
		if err := l.checkPass(to); err != nil {
			return err
		}
	}
	if from == (common.Address{}) {
		meta.TotalSupply = new(big.Int).Add(meta.TotalSupply, amount)
	} else {
		balance, err := l.BalanceOf(meta.Address, from)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		if err := l.putBalance(meta.Address, from, balance.Sub(balance, amount)); err != nil {
			return err
		}
	}
	if to == (common.Address{}) {
		meta.TotalSupply = new(big.Int).Sub(meta.TotalSupply, amount)
	} else {
		balance, err := l.BalanceOf(meta.Address, to)
		if err != nil {
			return err
		}
		if err := l.putBalance(meta.Address, to, balance.Add(balance, amount)); err != nil {
			return err
		}
	}
	if from == (common.Address{}) || to == (common.Address{}) {
		if err := l.state.KVPut(metaKey(meta.Address), meta); err != nil {
			return err
		}
	}
	l.emit(EventTypeTransfer, map[string]string{
		"token": meta.Address.Hex(),
		"from":  from.Hex(),
		"to":    to.Hex(),
		"value": amount.String(),
	})
	switch {
	case from == (common.Address{}):
		l.emitSupply(meta, amount, events.SupplyReasonMint)
	case to == (common.Address{}):
		l.emitSupply(meta, new(big.Int).Neg(amount), events.SupplyReasonBurn)
	}
	return nil
}

func (l *Ledger) emitSupply(meta *Metadata, delta *big.Int, reason string) {
	if l.emitter == nil {
		return
	}
	l.emitter.Emit(events.TokenSupply{
		Address: meta.Address,
		Symbol:  meta.Symbol,
		Total:   meta.TotalSupply,
		Delta:   delta,
		Reason:  reason,
	})
}

func (l *Ledger) checkPass(to common.Address) error {
	if l.verifier == nil {
		return ErrRecipientNotAllowed
	}
	ok, err := l.verifier.IsAllowed(to)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRecipientNotAllowed
	}
	return nil
}

func (l *Ledger) emit(kind string, attrs map[string]string) {
	if l.emitter == nil {
		return
	}
	l.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}
