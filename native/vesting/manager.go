package vesting

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
)

var (
	errNilState  = errors.New("vesting: state not configured")
	errNilTokens = errors.New("vesting: token ledger not configured")

	ErrInvalidBeneficiary      = errors.New("vesting: Beneficiary cannot be zero")
	ErrInvalidOwner            = errors.New("vesting: Owner cannot be zero")
	ErrInvalidManagedAmount    = errors.New("vesting: Managed tokens cannot be zero")
	ErrInvalidSchedule         = errors.New("vesting: Start time > end time")
	ErrInvalidPeriods          = errors.New("vesting: Periods cannot be below minimum")
	ErrInvalidCliff            = errors.New("vesting: Cliff time must be before end time")
	ErrInsufficientFunds       = errors.New("vesting: Not enough tokens to create wallet")
	ErrInvalidAmount           = errors.New("vesting: Amount cannot be zero")
	ErrInvalidTarget           = errors.New("vesting: Target must be other than 0x0")
	ErrInvalidDestination      = errors.New("vesting: Destination cannot be zero")
	ErrDestinationExists       = errors.New("vesting: Destination already added")
	ErrDestinationNotFound     = errors.New("vesting: Destination already removed")
	ErrArrayLengthMismatch     = errors.New("vesting: Array length mismatch")
	ErrUnknownWallet           = errors.New("vesting: unknown lock wallet")
	ErrFunctionNotAuthorized   = errors.New("vesting: Unauthorized function")
	ErrTargetNotAuthorized     = errors.New("vesting: Unauthorized target")
	ErrNoHandler               = errors.New("vesting: no handler for function")
	ErrDuplicateHandler        = errors.New("vesting: handler already registered")
	ErrCannotUseMoreThanVested = errors.New("vesting: Cannot use more tokens than vested amount")
)

type managerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// TokenLedger is the fungible-token capability wallets hold the vested token
// through.
type TokenLedger interface {
	BalanceOf(token, holder common.Address) (*big.Int, error)
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Approve(token, owner, spender common.Address, amount *big.Int) error
}

type authEntry struct {
	Signature string
	Target    common.Address
}

// Manager creates lock wallets for a single token and keeps the allow-lists
// that bound what those wallets may do with unvested tokens.
type Manager struct {
	address common.Address
	token   common.Address
	tokens  TokenLedger
	auth    access.Authority
	state   managerState
	emitter events.Emitter
	nowFn   func() int64

	mu       sync.RWMutex
	handlers map[Selector]*dispatchEntry
}

// NewManager constructs a manager at address for token. The admin role of
// auth is the manager owner.
func NewManager(address, token common.Address, tokens TokenLedger, auth access.Authority) *Manager {
	return &Manager{
		address:  address,
		token:    token,
		tokens:   tokens,
		auth:     auth,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		handlers: make(map[Selector]*dispatchEntry),
	}
}

// SetState configures the state backend.
func (m *Manager) SetState(state managerState) { m.state = state }

// SetEmitter configures the event emitter.
func (m *Manager) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		m.emitter = events.NoopEmitter{}
		return
	}
	m.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (m *Manager) SetNowFunc(now func() int64) {
	if now == nil {
		m.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	m.nowFn = now
}

// Address returns the manager address.
func (m *Manager) Address() common.Address { return m.address }

// Token returns the vested token.
func (m *Manager) Token() common.Address { return m.token }

var (
	nonceKey        = []byte("vesting/nonce")
	destinationsKey = []byte("vesting/destinations")
)

func walletKey(addr common.Address) []byte {
	return []byte("vesting/wallet/" + addr.Hex())
}

func authKey(sel Selector) []byte {
	return []byte("vesting/auth/" + sel.Hex())
}

func (m *Manager) ready() error {
	if m == nil || m.state == nil {
		return errNilState
	}
	if m.tokens == nil {
		return errNilTokens
	}
	return nil
}

func (m *Manager) now() uint64 {
	now := m.nowFn()
	if now < 0 {
		return 0
	}
	return uint64(now)
}

func (m *Manager) requireOwner(caller common.Address) error {
	return access.Require(m.auth, access.DefaultAdminRole, caller)
}

// Deposit adds amount of the vested token to the manager's funds.
func (m *Manager) Deposit(caller common.Address, amount *big.Int) error {
	if err := m.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := m.tokens.TransferFrom(m.token, m.address, caller, m.address, amount); err != nil {
		return err
	}
	m.emit(amountEvent(EventTypeManagerDeposit, caller, amount))
	return nil
}

// Withdraw returns amount of the manager's funds to the owner.
func (m *Manager) Withdraw(caller common.Address, amount *big.Int) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := m.tokens.Transfer(m.token, m.address, caller, amount); err != nil {
		return err
	}
	m.emit(amountEvent(EventTypeManagerWithdraw, caller, amount))
	return nil
}

// CreateTokenLockWallet deploys a wallet funded with p.ManagedAmount from the
// manager's balance.
func (m *Manager) CreateTokenLockWallet(caller common.Address, p WalletParams) (common.Address, error) {
	if err := m.ready(); err != nil {
		return common.Address{}, err
	}
	if err := m.requireOwner(caller); err != nil {
		return common.Address{}, err
	}
	switch {
	case p.Owner == (common.Address{}):
		return common.Address{}, ErrInvalidOwner
	case p.Beneficiary == (common.Address{}):
		return common.Address{}, ErrInvalidBeneficiary
	case p.ManagedAmount == nil || p.ManagedAmount.Sign() <= 0:
		return common.Address{}, ErrInvalidManagedAmount
	case p.StartTime > p.EndTime:
		return common.Address{}, ErrInvalidSchedule
	case p.Periods == 0:
		return common.Address{}, ErrInvalidPeriods
	case p.VestingCliffTime > 0 && p.VestingCliffTime >= p.EndTime:
		return common.Address{}, ErrInvalidCliff
	}
	funds, err := m.tokens.BalanceOf(m.token, m.address)
	if err != nil {
		return common.Address{}, err
	}
	if funds.Cmp(p.ManagedAmount) < 0 {
		return common.Address{}, ErrInsufficientFunds
	}

	var nonce uint64
	if _, err := m.state.KVGet(nonceKey, &nonce); err != nil {
		return common.Address{}, err
	}
	addr := crypto.CreateAddress(m.address, nonce)
	w := &WalletState{
		Address:          addr,
		Owner:            p.Owner,
		Beneficiary:      p.Beneficiary,
		Token:            m.token,
		ManagedAmount:    new(big.Int).Set(p.ManagedAmount),
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		Periods:          p.Periods,
		ReleaseStartTime: p.ReleaseStartTime,
		VestingCliffTime: p.VestingCliffTime,
		Revocable:        p.Revocable,
	}
	w.normalize()
	if err := m.tokens.Transfer(m.token, m.address, addr, w.ManagedAmount); err != nil {
		return common.Address{}, err
	}
	if err := m.putWallet(w); err != nil {
		return common.Address{}, err
	}
	if err := m.state.KVPut(nonceKey, nonce+1); err != nil {
		return common.Address{}, err
	}
	m.emit(walletCreatedEvent(w))
	return addr, nil
}

// Wallet returns a handle on the wallet at addr.
func (m *Manager) Wallet(addr common.Address) (*Wallet, error) {
	if _, err := m.wallet(addr); err != nil {
		return nil, err
	}
	return &Wallet{manager: m, address: addr}, nil
}

func (m *Manager) wallet(addr common.Address) (*WalletState, error) {
	if m == nil || m.state == nil {
		return nil, errNilState
	}
	w := new(WalletState)
	ok, err := m.state.KVGet(walletKey(addr), w)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnknownWallet
	}
	w.normalize()
	return w, nil
}

func (m *Manager) putWallet(w *WalletState) error {
	return m.state.KVPut(walletKey(w.Address), w)
}

// SetAuthFunctionCall authorises wallets to forward signature to target.
func (m *Manager) SetAuthFunctionCall(caller common.Address, signature string, target common.Address) error {
	return m.SetAuthFunctionCallMany(caller, []string{signature}, []common.Address{target})
}

// SetAuthFunctionCallMany authorises each signatures[i] against targets[i].
func (m *Manager) SetAuthFunctionCallMany(caller common.Address, signatures []string, targets []common.Address) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if len(signatures) != len(targets) {
		return ErrArrayLengthMismatch
	}
	for i, signature := range signatures {
		if targets[i] == (common.Address{}) {
			return ErrInvalidTarget
		}
		sel, err := SelectorOf(signature)
		if err != nil {
			return err
		}
		if err := m.state.KVPut(authKey(sel), &authEntry{Signature: signature, Target: targets[i]}); err != nil {
			return err
		}
		m.emit(functionCallAuthEvent(caller, sel, targets[i], signature))
	}
	return nil
}

// UnsetAuthFunctionCall revokes the authorisation of signature.
func (m *Manager) UnsetAuthFunctionCall(caller common.Address, signature string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	sel, err := SelectorOf(signature)
	if err != nil {
		return err
	}
	if err := m.state.KVDelete(authKey(sel)); err != nil {
		return err
	}
	m.emit(functionCallAuthEvent(caller, sel, common.Address{}, signature))
	return nil
}

// AuthFunctionCallTarget returns the target authorised for sel.
func (m *Manager) AuthFunctionCallTarget(sel Selector) (common.Address, bool, error) {
	if m == nil || m.state == nil {
		return common.Address{}, false, errNilState
	}
	var entry authEntry
	ok, err := m.state.KVGet(authKey(sel), &entry)
	if err != nil || !ok {
		return common.Address{}, false, err
	}
	return entry.Target, true, nil
}

// IsAuthorizedFunction reports whether wallets may forward signature.
func (m *Manager) IsAuthorizedFunction(signature string) (bool, error) {
	sel, err := SelectorOf(signature)
	if err != nil {
		return false, err
	}
	_, ok, err := m.AuthFunctionCallTarget(sel)
	return ok, err
}

// TokenDestinations lists the accounts wallets approve through
// ApproveProtocol.
func (m *Manager) TokenDestinations() ([]common.Address, error) {
	if m == nil || m.state == nil {
		return nil, errNilState
	}
	var list []common.Address
	if _, err := m.state.KVGet(destinationsKey, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// IsTokenDestination reports whether dst is an allowed token destination.
func (m *Manager) IsTokenDestination(dst common.Address) (bool, error) {
	list, err := m.TokenDestinations()
	if err != nil {
		return false, err
	}
	for _, existing := range list {
		if existing == dst {
			return true, nil
		}
	}
	return false, nil
}

// AddTokenDestination allows wallets to approve dst.
func (m *Manager) AddTokenDestination(caller, dst common.Address) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	if dst == (common.Address{}) {
		return ErrInvalidDestination
	}
	list, err := m.TokenDestinations()
	if err != nil {
		return err
	}
	for _, existing := range list {
		if existing == dst {
			return ErrDestinationExists
		}
	}
	list = append(list, dst)
	if err := m.state.KVPut(destinationsKey, list); err != nil {
		return err
	}
	m.emit(tokenDestinationEvent(dst, true))
	return nil
}

// RemoveTokenDestination stops wallets approving dst. Existing approvals
// are cleared by RevokeProtocol.
func (m *Manager) RemoveTokenDestination(caller, dst common.Address) error {
	if err := m.ready(); err != nil {
		return err
	}
	if err := m.requireOwner(caller); err != nil {
		return err
	}
	list, err := m.TokenDestinations()
	if err != nil {
		return err
	}
	for i, existing := range list {
		if existing != dst {
			continue
		}
		list = append(list[:i], list[i+1:]...)
		if err := m.state.KVPut(destinationsKey, list); err != nil {
			return err
		}
		m.emit(tokenDestinationEvent(dst, false))
		return nil
	}
	return ErrDestinationNotFound
}

// RegisterHandler binds the in-process implementation of signature. Only
// calls that are both authorised in state and registered here can be
// forwarded.
func (m *Manager) RegisterHandler(signature string, h Handler) error {
	if h.Exec == nil {
		return ErrNoHandler
	}
	method, err := ParseSignature(signature)
	if err != nil {
		return err
	}
	var sel Selector
	copy(sel[:], method.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.handlers[sel]; exists {
		return ErrDuplicateHandler
	}
	m.handlers[sel] = &dispatchEntry{method: method, handler: h}
	return nil
}

func (m *Manager) handler(sel Selector) (*dispatchEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.handlers[sel]
	return entry, ok
}

func (m *Manager) emit(evt *types.Event) {
	if m == nil || evt == nil || m.emitter == nil {
		return
	}
	m.emitter.Emit(events.Wrap(evt))
}
