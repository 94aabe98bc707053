package vesting

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/native/token"
)

var (
	ErrNotBeneficiary       = errors.New("vesting: !auth")
	ErrNotOwner             = errors.New("vesting: Ownable: caller is not the owner")
	ErrNoAvailableTokens    = errors.New("vesting: No available releasable amount")
	ErrNotRevocable         = errors.New("vesting: Contract is non-revocable")
	ErrNoUnvestedTokens     = errors.New("vesting: No available unvested amount")
	ErrAmountExceedsSurplus = errors.New("vesting: Amount requested > surplus available")
	ErrInvalidCalldata      = errors.New("vesting: calldata too short")
)

// Wallet is a handle on one lock wallet. Every call reloads the persisted
// record.
type Wallet struct {
	manager *Manager
	address common.Address
}

// Address returns the wallet address.
func (w *Wallet) Address() common.Address { return w.address }

// State returns a copy of the persisted record.
func (w *Wallet) State() (*WalletState, error) {
	return w.manager.wallet(w.address)
}

func (w *Wallet) load() (*WalletState, error) {
	if err := w.manager.ready(); err != nil {
		return nil, err
	}
	return w.manager.wallet(w.address)
}

// VestedAmount is the amount vested now.
func (w *Wallet) VestedAmount() (*big.Int, error) {
	st, err := w.load()
	if err != nil {
		return nil, err
	}
	return st.VestedAmount(w.manager.now()), nil
}

// AvailableAmount is the vested amount not yet released or used.
func (w *Wallet) AvailableAmount() (*big.Int, error) {
	st, err := w.load()
	if err != nil {
		return nil, err
	}
	return st.AvailableAmount(w.manager.now()), nil
}

// ReleasableAmount is the vested amount the beneficiary may release now,
// before subtracting tokens in use.
func (w *Wallet) ReleasableAmount() (*big.Int, error) {
	st, err := w.load()
	if err != nil {
		return nil, err
	}
	return st.ReleasableAmount(w.manager.now()), nil
}

func (w *Wallet) balance(st *WalletState) (*big.Int, error) {
	return w.manager.tokens.BalanceOf(st.Token, st.Address)
}

// Release transfers the releasable amount net of used tokens, bounded by the
// wallet balance, to the beneficiary.
func (w *Wallet) Release(caller common.Address) (*big.Int, error) {
	st, err := w.load()
	if err != nil {
		return nil, err
	}
	if caller != st.Beneficiary {
		return nil, ErrNotBeneficiary
	}
	amount := st.ReleasableAmount(w.manager.now())
	amount.Sub(amount, st.UsedAmount)
	bal, err := w.balance(st)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(bal) > 0 {
		amount.Set(bal)
	}
	if amount.Sign() <= 0 {
		return nil, ErrNoAvailableTokens
	}
	st.ReleasedAmount.Add(st.ReleasedAmount, amount)
	if err := w.manager.tokens.Transfer(st.Token, st.Address, st.Beneficiary, amount); err != nil {
		return nil, err
	}
	if err := w.manager.putWallet(st); err != nil {
		return nil, err
	}
	w.manager.emit(walletAmountEvent(EventTypeTokensReleased, st.Address, st.Beneficiary, amount))
	return amount, nil
}

// Forward runs an authorised protocol call for the wallet. The call must be
// authorised for target by the manager and must not declare a spend above
// the available amount. Used tokens are tracked by the wallet balance delta.
func (w *Wallet) Forward(caller, target common.Address, calldata []byte) error {
	st, err := w.load()
	if err != nil {
		return err
	}
	if caller != st.Beneficiary {
		return ErrNotBeneficiary
	}
	if len(calldata) < 4 {
		return ErrInvalidCalldata
	}
	var sel Selector
	copy(sel[:], calldata[:4])
	authorised, ok, err := w.manager.AuthFunctionCallTarget(sel)
	if err != nil {
		return err
	}
	if !ok {
		return ErrFunctionNotAuthorized
	}
	if authorised != target {
		return ErrTargetNotAuthorized
	}
	entry, ok := w.manager.handler(sel)
	if !ok {
		return ErrNoHandler
	}
	args, err := entry.decode(calldata)
	if err != nil {
		return err
	}
	spend, err := entry.spend(args)
	if err != nil {
		return err
	}
	if spend.Cmp(st.AvailableAmount(w.manager.now())) > 0 {
		return ErrCannotUseMoreThanVested
	}

	before, err := w.balance(st)
	if err != nil {
		return err
	}
	if err := entry.handler.Exec(st.Address, args); err != nil {
		return err
	}
	after, err := w.balance(st)
	if err != nil {
		return err
	}
	// Spent tokens count as used; tokens flowing back reduce usage.
	switch after.Cmp(before) {
	case -1:
		st.UsedAmount.Add(st.UsedAmount, new(big.Int).Sub(before, after))
		if new(big.Int).Add(st.UsedAmount, st.ReleasedAmount).Cmp(st.VestedAmount(w.manager.now())) > 0 {
			return ErrCannotUseMoreThanVested
		}
	case 1:
		diff := new(big.Int).Sub(after, before)
		if diff.Cmp(st.UsedAmount) >= 0 {
			st.UsedAmount.SetUint64(0)
		} else {
			st.UsedAmount.Sub(st.UsedAmount, diff)
		}
	default:
		return nil
	}
	if err := w.manager.putWallet(st); err != nil {
		return err
	}
	w.manager.emit(walletAmountEvent(EventTypeTokensUsed, st.Address, target, st.UsedAmount))
	return nil
}

func (w *Wallet) setProtocolApproval(caller common.Address, amount *big.Int, kind string) error {
	st, err := w.load()
	if err != nil {
		return err
	}
	if caller != st.Beneficiary {
		return ErrNotBeneficiary
	}
	dsts, err := w.manager.TokenDestinations()
	if err != nil {
		return err
	}
	for _, dst := range dsts {
		if err := w.manager.tokens.Approve(st.Token, st.Address, dst, amount); err != nil {
			return err
		}
	}
	w.manager.emit(walletAmountEvent(kind, st.Address, caller, amount))
	return nil
}

// ApproveProtocol gives every manager token destination an unlimited
// allowance on the wallet's tokens.
func (w *Wallet) ApproveProtocol(caller common.Address) error {
	return w.setProtocolApproval(caller, token.MaxUint256, EventTypeProtocolApproved)
}

// RevokeProtocol clears the allowances granted by ApproveProtocol.
func (w *Wallet) RevokeProtocol(caller common.Address) error {
	return w.setProtocolApproval(caller, big.NewInt(0), EventTypeProtocolRevoked)
}

// Revoke freezes vesting at the amount vested now and returns the unvested
// remainder to the owner. Repeating it is a no-op.
func (w *Wallet) Revoke(caller common.Address) (*big.Int, error) {
	st, err := w.load()
	if err != nil {
		return nil, err
	}
	if caller != st.Owner {
		return nil, ErrNotOwner
	}
	if !st.Revocable {
		return nil, ErrNotRevocable
	}
	if st.Revoked {
		return big.NewInt(0), nil
	}
	vested := st.VestedAmount(w.manager.now())
	unvested := new(big.Int).Sub(st.ManagedAmount, vested)
	if unvested.Sign() <= 0 {
		return nil, ErrNoUnvestedTokens
	}
	bal, err := w.balance(st)
	if err != nil {
		return nil, err
	}
	if unvested.Cmp(bal) > 0 {
		unvested.Set(bal)
	}
	st.Revoked = true
	st.VestedAtRevoke = vested
	if unvested.Sign() > 0 {
		if err := w.manager.tokens.Transfer(st.Token, st.Address, st.Owner, unvested); err != nil {
			return nil, err
		}
	}
	if err := w.manager.putWallet(st); err != nil {
		return nil, err
	}
	w.manager.emit(walletAmountEvent(EventTypeTokensRevoked, st.Address, st.Owner, unvested))
	return unvested, nil
}

// SurplusAmount is the wallet balance above what it still owes.
func (w *Wallet) SurplusAmount() (*big.Int, error) {
	st, err := w.load()
	if err != nil {
		return nil, err
	}
	return w.surplus(st)
}

func (w *Wallet) surplus(st *WalletState) (*big.Int, error) {
	bal, err := w.balance(st)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Sub(bal, st.OutstandingAmount())
	if out.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return out, nil
}

// WithdrawSurplus lets the beneficiary take tokens sent to the wallet beyond
// its managed amount.
func (w *Wallet) WithdrawSurplus(caller common.Address, amount *big.Int) error {
	st, err := w.load()
	if err != nil {
		return err
	}
	if caller != st.Beneficiary {
		return ErrNotBeneficiary
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	surplus, err := w.surplus(st)
	if err != nil {
		return err
	}
	if amount.Cmp(surplus) > 0 {
		return ErrAmountExceedsSurplus
	}
	if err := w.manager.tokens.Transfer(st.Token, st.Address, st.Beneficiary, amount); err != nil {
		return err
	}
	w.manager.emit(walletAmountEvent(EventTypeSurplusWithdrawn, st.Address, st.Beneficiary, amount))
	return nil
}

// ChangeBeneficiary hands the wallet to a new beneficiary.
func (w *Wallet) ChangeBeneficiary(caller, beneficiary common.Address) error {
	st, err := w.load()
	if err != nil {
		return err
	}
	if caller != st.Owner {
		return ErrNotOwner
	}
	if beneficiary == (common.Address{}) {
		return ErrInvalidBeneficiary
	}
	st.Beneficiary = beneficiary
	if err := w.manager.putWallet(st); err != nil {
		return err
	}
	w.manager.emit(walletAmountEvent(EventTypeBeneficiaryChanged, st.Address, beneficiary, big.NewInt(0)))
	return nil
}
