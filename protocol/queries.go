package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/staking"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/native/vesting"
)

// CurveFees is the bonding curve fee schedule with its beneficiary.
type CurveFees struct {
	Fees        bondingcurve.Fees
	Beneficiary common.Address
}

// WalletView is a vesting wallet record with the amounts derived at the
// current time.
type WalletView struct {
	State      *vesting.WalletState
	Vested     *big.Int
	Available  *big.Int
	Releasable *big.Int
	Surplus    *big.Int
	Balance    *big.Int
}

// RewardsAccount is a protocol rewards balance with the signer nonce.
type RewardsAccount struct {
	Balance *big.Int
	Nonce   *big.Int
}

func (p *Protocol) CurveState(subject common.Address) (*bondingcurve.CurveState, error) {
	var out *bondingcurve.CurveState
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.BondingCurve.State(subject)
		return err
	})
	return out, err
}

func (p *Protocol) CurveFees() (*CurveFees, error) {
	var out CurveFees
	err := p.View(func(e *Engines) error {
		fees, err := e.BondingCurve.Fees()
		if err != nil {
			return err
		}
		beneficiary, err := e.BondingCurve.FeeBeneficiary()
		if err != nil {
			return err
		}
		out = CurveFees{Fees: fees, Beneficiary: beneficiary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Protocol) QuoteBuy(subject common.Address, shares *big.Int) (*bondingcurve.BuyQuote, error) {
	var out *bondingcurve.BuyQuote
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.BondingCurve.CalculateTokensForBuy(subject, shares)
		return err
	})
	return out, err
}

func (p *Protocol) QuoteSell(subject common.Address, sell *big.Int) (*bondingcurve.SellQuote, error) {
	var out *bondingcurve.SellQuote
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.BondingCurve.CalculateTokensForSell(subject, sell)
		return err
	})
	return out, err
}

// VaultBalance returns the reserve held for a subject token.
func (p *Protocol) VaultBalance(subjectToken common.Address) (*big.Int, error) {
	var out *big.Int
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.Vault.BalanceOf(subjectToken, e.Addresses.MoxieToken)
		return err
	})
	return out, err
}

// SubjectToken resolves the token of a subject.
func (p *Protocol) SubjectToken(subject common.Address) (common.Address, bool, error) {
	var (
		tok common.Address
		ok  bool
	)
	err := p.View(func(e *Engines) error {
		var err error
		tok, ok, err = e.TokenManager.TokenOf(subject)
		return err
	})
	return tok, ok, err
}

func (p *Protocol) TokenBalance(tok, holder common.Address) (*big.Int, error) {
	var out *big.Int
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.Tokens.BalanceOf(tok, holder)
		return err
	})
	return out, err
}

func (p *Protocol) OnboardingRecord(subject common.Address) (*subjectfactory.Subject, error) {
	var out *subjectfactory.Subject
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.Factory.Subject(subject)
		return err
	})
	return out, err
}

func (p *Protocol) LockInfo(index uint64) (*staking.Lock, error) {
	var out *staking.Lock
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.Staking.GetLockInfo(index)
		return err
	})
	return out, err
}

func (p *Protocol) TotalStaked(user, subject common.Address, indexes []uint64) (*big.Int, error) {
	var out *big.Int
	err := p.View(func(e *Engines) error {
		var err error
		out, err = e.Staking.GetTotalStakedAmount(user, subject, indexes)
		return err
	})
	return out, err
}

func (p *Protocol) VestingWallet(addr common.Address) (*WalletView, error) {
	var out WalletView
	err := p.View(func(e *Engines) error {
		w, err := e.Vesting.Wallet(addr)
		if err != nil {
			return err
		}
		if out.State, err = w.State(); err != nil {
			return err
		}
		if out.Vested, err = w.VestedAmount(); err != nil {
			return err
		}
		if out.Available, err = w.AvailableAmount(); err != nil {
			return err
		}
		if out.Releasable, err = w.ReleasableAmount(); err != nil {
			return err
		}
		if out.Surplus, err = w.SurplusAmount(); err != nil {
			return err
		}
		out.Balance, err = e.Tokens.BalanceOf(out.State.Token, addr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *Protocol) RewardsAccount(account common.Address) (*RewardsAccount, error) {
	var out RewardsAccount
	err := p.View(func(e *Engines) error {
		var err error
		if out.Balance, err = e.Rewards.BalanceOf(account); err != nil {
			return err
		}
		out.Nonce, err = e.Rewards.Nonce(account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
