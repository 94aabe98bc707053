package vesting

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WalletParams describes a new lock wallet.
type WalletParams struct {
	Owner            common.Address
	Beneficiary      common.Address
	ManagedAmount    *big.Int
	StartTime        uint64
	EndTime          uint64
	Periods          uint64
	ReleaseStartTime uint64
	VestingCliffTime uint64
	Revocable        bool
}

// WalletState is the persisted record of a lock wallet.
type WalletState struct {
	Address          common.Address
	Owner            common.Address
	Beneficiary      common.Address
	Token            common.Address
	ManagedAmount    *big.Int
	StartTime        uint64
	EndTime          uint64
	Periods          uint64
	ReleaseStartTime uint64
	VestingCliffTime uint64
	Revocable        bool
	UsedAmount       *big.Int
	ReleasedAmount   *big.Int
	Revoked          bool
	VestedAtRevoke   *big.Int
}

func (w *WalletState) normalize() {
	if w.ManagedAmount == nil {
		w.ManagedAmount = big.NewInt(0)
	}
	if w.UsedAmount == nil {
		w.UsedAmount = big.NewInt(0)
	}
	if w.ReleasedAmount == nil {
		w.ReleasedAmount = big.NewInt(0)
	}
	if w.VestedAtRevoke == nil {
		w.VestedAtRevoke = big.NewInt(0)
	}
}

// AmountPerPeriod is the amount that vests at each period boundary.
func (w *WalletState) AmountPerPeriod() *big.Int {
	if w.Periods == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(w.ManagedAmount, new(big.Int).SetUint64(w.Periods))
}

// PassedPeriods counts the whole periods elapsed at now.
func (w *WalletState) PassedPeriods(now uint64) uint64 {
	if w.Periods == 0 || now <= w.StartTime {
		return 0
	}
	if now >= w.EndTime {
		return w.Periods
	}
	duration := (w.EndTime - w.StartTime) / w.Periods
	if duration == 0 {
		return w.Periods
	}
	passed := (now - w.StartTime) / duration
	if passed > w.Periods {
		return w.Periods
	}
	return passed
}

// VestedAmount is the amount vested at now. Nothing vests before the cliff;
// the whole managed amount is vested from the end time on. A revoked wallet
// stays at the amount vested when it was revoked.
func (w *WalletState) VestedAmount(now uint64) *big.Int {
	if w.Revoked {
		return new(big.Int).Set(w.VestedAtRevoke)
	}
	if w.VestingCliffTime > 0 && now < w.VestingCliffTime {
		return big.NewInt(0)
	}
	if now >= w.EndTime {
		return new(big.Int).Set(w.ManagedAmount)
	}
	passed := new(big.Int).SetUint64(w.PassedPeriods(now))
	return passed.Mul(passed, w.AmountPerPeriod())
}

// AvailableAmount is the vested amount not yet released or used.
func (w *WalletState) AvailableAmount(now uint64) *big.Int {
	out := w.VestedAmount(now)
	out.Sub(out, w.ReleasedAmount)
	out.Sub(out, w.UsedAmount)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// ReleasableAmount is the vested amount not yet released. It stays zero
// until the release start time.
func (w *WalletState) ReleasableAmount(now uint64) *big.Int {
	if now < w.ReleaseStartTime {
		return big.NewInt(0)
	}
	out := w.VestedAmount(now)
	out.Sub(out, w.ReleasedAmount)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// OutstandingAmount is what the wallet still owes its beneficiary and owner
// from its own balance.
func (w *WalletState) OutstandingAmount() *big.Int {
	total := w.ManagedAmount
	if w.Revoked {
		total = w.VestedAtRevoke
	}
	out := new(big.Int).Sub(total, w.ReleasedAmount)
	out.Sub(out, w.UsedAmount)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// Clone returns a deep copy.
func (w *WalletState) Clone() *WalletState {
	if w == nil {
		return nil
	}
	out := *w
	out.ManagedAmount = new(big.Int).Set(w.ManagedAmount)
	out.UsedAmount = new(big.Int).Set(w.UsedAmount)
	out.ReleasedAmount = new(big.Int).Set(w.ReleasedAmount)
	out.VestedAtRevoke = new(big.Int).Set(w.VestedAtRevoke)
	return &out
}
