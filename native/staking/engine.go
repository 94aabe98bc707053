package staking

import (
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
	nativecommon "moxieprotocol/native/common"
)

// ModuleName is the pause domain of the staking engine.
const ModuleName = "staking"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// TokenLedger is the fungible-token capability used to custody locked tokens.
type TokenLedger interface {
	Transfer(token, from, to common.Address, amount *big.Int) error
	TransferFrom(token, spender, from, to common.Address, amount *big.Int) error
	Approve(token, owner, spender common.Address, amount *big.Int) error
}

// TokenRegistry resolves subjects to their tokens.
type TokenRegistry interface {
	TokenOf(subject common.Address) (common.Address, bool, error)
}

// BondingCurve is the buy path used by BuyAndLock.
type BondingCurve interface {
	Address() common.Address
	BuySharesFor(caller, subject common.Address, deposit *big.Int, beneficiary common.Address, minReturn *big.Int) (*big.Int, error)
}

// RoleAdmin grants roles on the staking domain.
type RoleAdmin interface {
	access.Authority
	GrantRole(caller common.Address, role access.Role, account common.Address) error
}

// Config bundles the staking collaborators.
type Config struct {
	Address      common.Address
	ReserveToken common.Address
	Tokens       TokenLedger
	TokenManager TokenRegistry
	BondingCurve BondingCurve
	Auth         RoleAdmin
}

// Lock is one record of the lock arena. Withdrawn records are zeroed in
// place and their index is never reused.
type Lock struct {
	User         common.Address
	Subject      common.Address
	SubjectToken common.Address
	Amount       *big.Int
	UnlockTime   uint64
	LockPeriod   uint64
}

func (l *Lock) withdrawn() bool {
	return l.User == (common.Address{}) && (l.Amount == nil || l.Amount.Sign() == 0)
}

// Engine time-locks subject tokens.
type Engine struct {
	cfg     Config
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine constructs a staking engine.
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

// SetPauses wires the pause view consulted before mutating calls.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// Address returns the custody address of locked tokens.
func (e *Engine) Address() common.Address { return e.cfg.Address }

var (
	lockCountKey  = []byte("staking/lockCount")
	lockPeriodKey = []byte("staking/lockPeriod")
)

func lockKey(index uint64) []byte {
	return []byte("staking/lock/" + strconv.FormatUint(index, 10))
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.cfg.Tokens == nil || e.cfg.TokenManager == nil {
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

// LockCount returns the number of lock slots ever allocated.
func (e *Engine) LockCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var count uint64
	if _, err := e.state.KVGet(lockCountKey, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// LockPeriod returns the period applied to new and extended locks.
func (e *Engine) LockPeriod() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	var period uint64
	if _, err := e.state.KVGet(lockPeriodKey, &period); err != nil {
		return 0, err
	}
	return period, nil
}

// SetLockPeriod changes the global lock period. Existing locks keep their
// unlock time.
func (e *Engine) SetLockPeriod(caller common.Address, period uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := access.Require(e.cfg.Auth, access.ChangeLockDurationRole, caller); err != nil {
		return err
	}
	if period == 0 {
		return ErrInvalidLockPeriod
	}
	if err := e.state.KVPut(lockPeriodKey, period); err != nil {
		return err
	}
	e.emit(LockPeriodUpdatedEvent(period))
	return nil
}

// SetChangeLockDurationRole lets an admin delegate lock-period changes.
func (e *Engine) SetChangeLockDurationRole(caller, account common.Address) error {
	if e == nil || e.cfg.Auth == nil {
		return errMissingDeps
	}
	return e.cfg.Auth.GrantRole(caller, access.ChangeLockDurationRole, account)
}

// GetLockInfo returns a copy of the lock at index.
func (e *Engine) GetLockInfo(index uint64) (*Lock, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.LockCount()
	if err != nil {
		return nil, err
	}
	if index >= count {
		return nil, indexErr(ErrInvalidIndex, index)
	}
	return e.readLock(index)
}

func (e *Engine) readLock(index uint64) (*Lock, error) {
	lock := new(Lock)
	if _, err := e.state.KVGet(lockKey(index), lock); err != nil {
		return nil, err
	}
	if lock.Amount == nil {
		lock.Amount = big.NewInt(0)
	}
	return lock, nil
}

func (e *Engine) subjectToken(subject common.Address) (common.Address, error) {
	if subject == (common.Address{}) {
		return common.Address{}, ErrInvalidSubjectToken
	}
	tok, ok, err := e.cfg.TokenManager.TokenOf(subject)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, ErrInvalidSubjectToken
	}
	return tok, nil
}

func (e *Engine) appendLock(user, subject, subjectToken common.Address, amount *big.Int) (uint64, error) {
	period, err := e.LockPeriod()
	if err != nil {
		return 0, err
	}
	index, err := e.LockCount()
	if err != nil {
		return 0, err
	}
	lock := &Lock{
		User:         user,
		Subject:      subject,
		SubjectToken: subjectToken,
		Amount:       new(big.Int).Set(amount),
		UnlockTime:   e.now() + period,
		LockPeriod:   period,
	}
	if err := e.state.KVPut(lockKey(index), lock); err != nil {
		return 0, err
	}
	if err := e.state.KVPut(lockCountKey, index+1); err != nil {
		return 0, err
	}
	e.emit(LockEvent(lock, index))
	return index, nil
}

// DepositAndLock locks amount of the subject token held by caller.
func (e *Engine) DepositAndLock(caller, subject common.Address, amount *big.Int) (uint64, error) {
	return e.DepositAndLockFor(caller, subject, amount, caller)
}

// DepositAndLockFor pulls amount of the subject token from caller and locks
// it for onBehalfOf.
func (e *Engine) DepositAndLockFor(caller, subject common.Address, amount *big.Int, onBehalfOf common.Address) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	return e.depositAndLock(caller, subject, amount, onBehalfOf)
}

func (e *Engine) depositAndLock(caller, subject common.Address, amount *big.Int, onBehalfOf common.Address) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	if onBehalfOf == (common.Address{}) {
		return 0, ErrInvalidRequest
	}
	tok, err := e.subjectToken(subject)
	if err != nil {
		return 0, err
	}
	if err := e.cfg.Tokens.TransferFrom(tok, e.cfg.Address, caller, e.cfg.Address, amount); err != nil {
		return 0, err
	}
	return e.appendLock(onBehalfOf, subject, tok, amount)
}

// DepositAndLockMultiple locks amounts[i] of subjects[i] for caller.
func (e *Engine) DepositAndLockMultiple(caller common.Address, subjects []common.Address, amounts []*big.Int) ([]uint64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	if len(subjects) == 0 || len(subjects) != len(amounts) {
		return nil, ErrInvalidRequest
	}
	indexes := make([]uint64, 0, len(subjects))
	for i := range subjects {
		idx, err := e.depositAndLock(caller, subjects[i], amounts[i], caller)
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// BuyAndLock buys subject tokens with deposit of the reserve token and locks
// the minted amount for caller.
func (e *Engine) BuyAndLock(caller, subject common.Address, deposit, minReturn *big.Int) (uint64, *big.Int, error) {
	return e.BuyAndLockFor(caller, subject, deposit, minReturn, caller)
}

// BuyAndLockFor is BuyAndLock with the lock recorded for onBehalfOf.
func (e *Engine) BuyAndLockFor(caller, subject common.Address, deposit, minReturn *big.Int, onBehalfOf common.Address) (uint64, *big.Int, error) {
	if err := e.ready(); err != nil {
		return 0, nil, err
	}
	if e.cfg.BondingCurve == nil {
		return 0, nil, errMissingDeps
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, nil, err
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	if onBehalfOf == (common.Address{}) {
		return 0, nil, ErrInvalidRequest
	}
	tok, err := e.subjectToken(subject)
	if err != nil {
		return 0, nil, err
	}
	self := e.cfg.Address
	curve := e.cfg.BondingCurve
	if err := e.cfg.Tokens.TransferFrom(e.cfg.ReserveToken, self, caller, self, deposit); err != nil {
		return 0, nil, err
	}
	if err := e.cfg.Tokens.Approve(e.cfg.ReserveToken, self, curve.Address(), deposit); err != nil {
		return 0, nil, err
	}
	minted, err := curve.BuySharesFor(self, subject, deposit, self, minReturn)
	if err != nil {
		return 0, nil, err
	}
	index, err := e.appendLock(onBehalfOf, subject, tok, minted)
	if err != nil {
		return 0, nil, err
	}
	return index, minted, nil
}

// validateBatch applies the per-index rules shared by withdraw and extend
// and returns the loaded locks in order. A withdraw batch must also stay on
// one subject, may not name a slot twice and may only hold expired locks.
// Every rule is checked for one index before moving to the next.
func (e *Engine) validateBatch(caller common.Address, indexes []uint64, withdrawing bool) ([]*Lock, error) {
	if len(indexes) == 0 {
		return nil, ErrEmptyIndexes
	}
	count, err := e.LockCount()
	if err != nil {
		return nil, err
	}
	now := e.now()
	locks := make([]*Lock, 0, len(indexes))
	seen := make(map[uint64]struct{}, len(indexes))
	for _, index := range indexes {
		if index >= count {
			return nil, indexErr(ErrInvalidIndex, index)
		}
		lock, err := e.readLock(index)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[index]; dup && withdrawing {
			return nil, indexErr(ErrLockAlreadyWithdrawn, index)
		}
		seen[index] = struct{}{}
		if lock.withdrawn() {
			return nil, indexErr(ErrLockAlreadyWithdrawn, index)
		}
		if lock.User != caller {
			return nil, indexErr(ErrNotSameUser, index)
		}
		if withdrawing && len(locks) > 0 && lock.Subject != locks[0].Subject {
			return nil, indexErr(ErrSubjectsDoesntMatch, index)
		}
		if withdrawing && now < lock.UnlockTime {
			return nil, &LockNotExpiredError{Index: index, Now: now, UnlockTime: lock.UnlockTime}
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

// Withdraw releases every expired lock in indexes to caller with a single
// transfer. The batch fails as a whole on the first offending index.
func (e *Engine) Withdraw(caller common.Address, indexes []uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	locks, err := e.validateBatch(caller, indexes, true)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, lock := range locks {
		total.Add(total, lock.Amount)
	}
	subject, subjectToken := locks[0].Subject, locks[0].SubjectToken
	for _, index := range indexes {
		if err := e.state.KVPut(lockKey(index), &Lock{Amount: big.NewInt(0)}); err != nil {
			return nil, err
		}
	}
	if err := e.cfg.Tokens.Transfer(subjectToken, e.cfg.Address, caller, total); err != nil {
		return nil, err
	}
	e.emit(WithdrawEvent(caller, subject, subjectToken, indexes, total))
	return total, nil
}

// ExtendLock restarts the lock period of every index from now using the
// current global period.
func (e *Engine) ExtendLock(caller common.Address, indexes []uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	locks, err := e.validateBatch(caller, indexes, false)
	if err != nil {
		return 0, err
	}
	period, err := e.LockPeriod()
	if err != nil {
		return 0, err
	}
	unlockTime := e.now() + period
	for i, lock := range locks {
		lock.UnlockTime = unlockTime
		lock.LockPeriod = period
		if err := e.state.KVPut(lockKey(indexes[i]), lock); err != nil {
			return 0, err
		}
	}
	e.emit(LockExtendedEvent(caller, indexes, unlockTime))
	return unlockTime, nil
}

// GetTotalStakedAmount sums the locks in indexes, which must all belong to
// user and subject. Expiry is not checked.
func (e *Engine) GetTotalStakedAmount(user, subject common.Address, indexes []uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, err := e.subjectToken(subject); err != nil {
		return nil, err
	}
	count, err := e.LockCount()
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, index := range indexes {
		if index >= count {
			return nil, indexErr(ErrInvalidIndex, index)
		}
		lock, err := e.readLock(index)
		if err != nil {
			return nil, err
		}
		if lock.User != user {
			return nil, indexErr(ErrNotSameUser, index)
		}
		if lock.Subject != subject {
			return nil, indexErr(ErrSubjectsDoesntMatch, index)
		}
		total.Add(total, lock.Amount)
	}
	return total, nil
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(events.Wrap(evt))
}
