package protocol

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/native/access"
	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/native/tokenmanager"
	"moxieprotocol/native/vesting"
)

// Token

func (p *Protocol) Transfer(ctx context.Context, tok, from, to common.Address, amount *big.Int) error {
	return p.Execute(ctx, "token.transfer", func(e *Engines) error {
		return e.Tokens.Transfer(tok, from, to, amount)
	})
}

func (p *Protocol) Approve(ctx context.Context, tok, owner, spender common.Address, amount *big.Int) error {
	return p.Execute(ctx, "token.approve", func(e *Engines) error {
		return e.Tokens.Approve(tok, owner, spender, amount)
	})
}

// MintMoxie mints the reserve token. Only the deployment admin is its minter.
func (p *Protocol) MintMoxie(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	return p.Execute(ctx, "token.mint", func(e *Engines) error {
		return e.Tokens.Mint(e.Addresses.MoxieToken, caller, to, amount)
	})
}

func (p *Protocol) MintPass(ctx context.Context, caller, to common.Address, uri string) (uint64, error) {
	var id uint64
	err := p.Execute(ctx, "pass.mint", func(e *Engines) error {
		var err error
		id, err = e.Passes.Mint(caller, to, uri)
		return err
	})
	return id, err
}

// Roles

func (p *Protocol) GrantRole(ctx context.Context, domain string, caller common.Address, role access.Role, account common.Address) error {
	return p.Execute(ctx, "access.grant", func(e *Engines) error {
		reg, err := e.Role(domain)
		if err != nil {
			return err
		}
		return reg.GrantRole(caller, role, account)
	})
}

func (p *Protocol) RevokeRole(ctx context.Context, domain string, caller common.Address, role access.Role, account common.Address) error {
	return p.Execute(ctx, "access.revoke", func(e *Engines) error {
		reg, err := e.Role(domain)
		if err != nil {
			return err
		}
		return reg.RevokeRole(caller, role, account)
	})
}

func (p *Protocol) Pause(ctx context.Context, domain string, caller common.Address) error {
	return p.Execute(ctx, "access.pause", func(e *Engines) error {
		reg, err := e.Role(domain)
		if err != nil {
			return err
		}
		return reg.Pause(caller)
	})
}

func (p *Protocol) Unpause(ctx context.Context, domain string, caller common.Address) error {
	return p.Execute(ctx, "access.unpause", func(e *Engines) error {
		reg, err := e.Role(domain)
		if err != nil {
			return err
		}
		return reg.Unpause(caller)
	})
}

// Vault and token manager. Both are role gated to other components; the
// entry points exist for accounts an admin has granted the roles to.

func (p *Protocol) VaultDeposit(ctx context.Context, caller, subjectToken common.Address, amount *big.Int) error {
	return p.Execute(ctx, "vault.deposit", func(e *Engines) error {
		return e.Vault.Deposit(caller, subjectToken, e.Addresses.MoxieToken, amount)
	})
}

func (p *Protocol) VaultTransfer(ctx context.Context, caller, subjectToken, to common.Address, amount *big.Int) error {
	return p.Execute(ctx, "vault.transfer", func(e *Engines) error {
		return e.Vault.Transfer(caller, subjectToken, e.Addresses.MoxieToken, to, amount)
	})
}

func (p *Protocol) CreateSubjectToken(ctx context.Context, caller common.Address, in tokenmanager.CreateInput) (common.Address, error) {
	var tok common.Address
	err := p.Execute(ctx, "tokenmanager.create", func(e *Engines) error {
		var err error
		tok, err = e.TokenManager.Create(caller, in)
		return err
	})
	return tok, err
}

func (p *Protocol) MintSubjectToken(ctx context.Context, caller, subject, beneficiary common.Address, amount *big.Int) error {
	return p.Execute(ctx, "tokenmanager.mint", func(e *Engines) error {
		return e.TokenManager.Mint(caller, subject, beneficiary, amount)
	})
}

// Bonding curve

func (p *Protocol) BuyShares(ctx context.Context, caller, subject common.Address, deposit, minReturn *big.Int) (*big.Int, error) {
	return p.BuySharesFor(ctx, caller, subject, deposit, caller, minReturn)
}

func (p *Protocol) BuySharesFor(ctx context.Context, caller, subject common.Address, deposit *big.Int, beneficiary common.Address, minReturn *big.Int) (*big.Int, error) {
	var out *big.Int
	err := p.Execute(ctx, "curve.buy", func(e *Engines) error {
		var err error
		out, err = e.BondingCurve.BuySharesFor(caller, subject, deposit, beneficiary, minReturn)
		return err
	})
	return out, err
}

func (p *Protocol) SellShares(ctx context.Context, caller, subject common.Address, sell, minReturn *big.Int) (*big.Int, error) {
	return p.SellSharesFor(ctx, caller, subject, sell, caller, minReturn)
}

func (p *Protocol) SellSharesFor(ctx context.Context, caller, subject common.Address, sell *big.Int, beneficiary common.Address, minReturn *big.Int) (*big.Int, error) {
	var out *big.Int
	err := p.Execute(ctx, "curve.sell", func(e *Engines) error {
		var err error
		out, err = e.BondingCurve.SellSharesFor(caller, subject, sell, beneficiary, minReturn)
		return err
	})
	return out, err
}

func (p *Protocol) UpdateCurveFees(ctx context.Context, caller common.Address, fees bondingcurve.Fees) error {
	return p.Execute(ctx, "curve.updateFees", func(e *Engines) error {
		return e.BondingCurve.UpdateFees(caller, fees)
	})
}

func (p *Protocol) UpdateCurveFeeBeneficiary(ctx context.Context, caller, beneficiary common.Address) error {
	return p.Execute(ctx, "curve.updateBeneficiary", func(e *Engines) error {
		return e.BondingCurve.UpdateFeeBeneficiary(caller, beneficiary)
	})
}

// Subject factory

func (p *Protocol) InitiateSubjectOnboarding(ctx context.Context, caller, subject common.Address, in subjectfactory.AuctionInput) (uint64, error) {
	var id uint64
	err := p.Execute(ctx, "factory.initiate", func(e *Engines) error {
		var err error
		id, err = e.Factory.InitiateSubjectOnboarding(caller, subject, in)
		return err
	})
	return id, err
}

func (p *Protocol) FinalizeSubjectOnboarding(ctx context.Context, caller, subject common.Address, buyAmount *big.Int, ratio uint32) error {
	return p.Execute(ctx, "factory.finalize", func(e *Engines) error {
		return e.Factory.FinalizeSubjectOnboarding(caller, subject, buyAmount, ratio)
	})
}

func (p *Protocol) UpdateAuctionTime(ctx context.Context, caller common.Address, duration, cancellation uint64) error {
	return p.Execute(ctx, "factory.updateAuctionTime", func(e *Engines) error {
		return e.Factory.UpdateAuctionTime(caller, duration, cancellation)
	})
}

func (p *Protocol) UpdateFactoryFees(ctx context.Context, caller common.Address, fees subjectfactory.FeeConfig) error {
	return p.Execute(ctx, "factory.updateFees", func(e *Engines) error {
		return e.Factory.UpdateFees(caller, fees)
	})
}

func (p *Protocol) UpdateFactoryFeeBeneficiary(ctx context.Context, caller, beneficiary common.Address) error {
	return p.Execute(ctx, "factory.updateBeneficiary", func(e *Engines) error {
		return e.Factory.UpdateFeeBeneficiary(caller, beneficiary)
	})
}

// Staking

func (p *Protocol) SetLockPeriod(ctx context.Context, caller common.Address, period uint64) error {
	return p.Execute(ctx, "staking.setLockPeriod", func(e *Engines) error {
		return e.Staking.SetLockPeriod(caller, period)
	})
}

func (p *Protocol) DepositAndLock(ctx context.Context, caller, subject common.Address, amount *big.Int) (uint64, error) {
	return p.DepositAndLockFor(ctx, caller, subject, amount, caller)
}

func (p *Protocol) DepositAndLockFor(ctx context.Context, caller, subject common.Address, amount *big.Int, onBehalfOf common.Address) (uint64, error) {
	var index uint64
	err := p.Execute(ctx, "staking.depositAndLock", func(e *Engines) error {
		var err error
		index, err = e.Staking.DepositAndLockFor(caller, subject, amount, onBehalfOf)
		return err
	})
	return index, err
}

func (p *Protocol) DepositAndLockMultiple(ctx context.Context, caller common.Address, subjects []common.Address, amounts []*big.Int) ([]uint64, error) {
	var indexes []uint64
	err := p.Execute(ctx, "staking.depositAndLockMultiple", func(e *Engines) error {
		var err error
		indexes, err = e.Staking.DepositAndLockMultiple(caller, subjects, amounts)
		return err
	})
	return indexes, err
}

func (p *Protocol) BuyAndLock(ctx context.Context, caller, subject common.Address, deposit, minReturn *big.Int) (uint64, *big.Int, error) {
	return p.BuyAndLockFor(ctx, caller, subject, deposit, minReturn, caller)
}

func (p *Protocol) BuyAndLockFor(ctx context.Context, caller, subject common.Address, deposit, minReturn *big.Int, onBehalfOf common.Address) (uint64, *big.Int, error) {
	var (
		index  uint64
		minted *big.Int
	)
	err := p.Execute(ctx, "staking.buyAndLock", func(e *Engines) error {
		var err error
		index, minted, err = e.Staking.BuyAndLockFor(caller, subject, deposit, minReturn, onBehalfOf)
		return err
	})
	return index, minted, err
}

func (p *Protocol) WithdrawLocks(ctx context.Context, caller common.Address, indexes []uint64) (*big.Int, error) {
	var total *big.Int
	err := p.Execute(ctx, "staking.withdraw", func(e *Engines) error {
		var err error
		total, err = e.Staking.Withdraw(caller, indexes)
		return err
	})
	return total, err
}

func (p *Protocol) ExtendLock(ctx context.Context, caller common.Address, indexes []uint64) (uint64, error) {
	var unlock uint64
	err := p.Execute(ctx, "staking.extendLock", func(e *Engines) error {
		var err error
		unlock, err = e.Staking.ExtendLock(caller, indexes)
		return err
	})
	return unlock, err
}

// Rewards

func (p *Protocol) DepositRewards(ctx context.Context, caller, to common.Address, amount *big.Int, reason, comment string) error {
	return p.Execute(ctx, "rewards.deposit", func(e *Engines) error {
		return e.Rewards.Deposit(caller, to, amount, reason, comment)
	})
}

func (p *Protocol) DepositRewardsBatch(ctx context.Context, caller common.Address, recipients []common.Address, amounts []*big.Int, reasons []string, comment string) error {
	return p.Execute(ctx, "rewards.depositBatch", func(e *Engines) error {
		return e.Rewards.DepositBatch(caller, recipients, amounts, reasons, comment)
	})
}

func (p *Protocol) WithdrawRewards(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	return p.Execute(ctx, "rewards.withdraw", func(e *Engines) error {
		return e.Rewards.Withdraw(caller, to, amount)
	})
}

func (p *Protocol) WithdrawRewardsFor(ctx context.Context, owner common.Address, amount *big.Int) error {
	return p.Execute(ctx, "rewards.withdrawFor", func(e *Engines) error {
		return e.Rewards.WithdrawFor(owner, amount)
	})
}

func (p *Protocol) WithdrawRewardsWithSig(ctx context.Context, from, to common.Address, amount, deadline *big.Int, sig []byte) error {
	return p.Execute(ctx, "rewards.withdrawWithSig", func(e *Engines) error {
		return e.Rewards.WithdrawWithSig(from, to, amount, deadline, sig)
	})
}

// Vesting manager

func (p *Protocol) VestingDeposit(ctx context.Context, caller common.Address, amount *big.Int) error {
	return p.Execute(ctx, "vesting.deposit", func(e *Engines) error {
		return e.Vesting.Deposit(caller, amount)
	})
}

func (p *Protocol) VestingWithdraw(ctx context.Context, caller common.Address, amount *big.Int) error {
	return p.Execute(ctx, "vesting.withdraw", func(e *Engines) error {
		return e.Vesting.Withdraw(caller, amount)
	})
}

// CreateTokenLockWallet creates and funds a wallet and admits it to hold
// pass-gated subject tokens bought through the protocol.
func (p *Protocol) CreateTokenLockWallet(ctx context.Context, caller common.Address, params vesting.WalletParams) (common.Address, error) {
	var addr common.Address
	err := p.Execute(ctx, "vesting.createWallet", func(e *Engines) error {
		var err error
		addr, err = e.Vesting.CreateTokenLockWallet(caller, params)
		if err != nil {
			return err
		}
		return e.Verifier.Allow(addr)
	})
	return addr, err
}

func (p *Protocol) SetAuthFunctionCall(ctx context.Context, caller common.Address, signature string, target common.Address) error {
	return p.Execute(ctx, "vesting.setAuthFunctionCall", func(e *Engines) error {
		return e.Vesting.SetAuthFunctionCall(caller, signature, target)
	})
}

func (p *Protocol) UnsetAuthFunctionCall(ctx context.Context, caller common.Address, signature string) error {
	return p.Execute(ctx, "vesting.unsetAuthFunctionCall", func(e *Engines) error {
		return e.Vesting.UnsetAuthFunctionCall(caller, signature)
	})
}

func (p *Protocol) AddTokenDestination(ctx context.Context, caller, dst common.Address) error {
	return p.Execute(ctx, "vesting.addTokenDestination", func(e *Engines) error {
		return e.Vesting.AddTokenDestination(caller, dst)
	})
}

func (p *Protocol) RemoveTokenDestination(ctx context.Context, caller, dst common.Address) error {
	return p.Execute(ctx, "vesting.removeTokenDestination", func(e *Engines) error {
		return e.Vesting.RemoveTokenDestination(caller, dst)
	})
}

// Vesting wallets

func (p *Protocol) withWallet(ctx context.Context, op string, addr common.Address, fn func(*vesting.Wallet) error) error {
	return p.Execute(ctx, op, func(e *Engines) error {
		w, err := e.Vesting.Wallet(addr)
		if err != nil {
			return err
		}
		return fn(w)
	})
}

func (p *Protocol) ReleaseVested(ctx context.Context, caller, wallet common.Address) (*big.Int, error) {
	var amount *big.Int
	err := p.withWallet(ctx, "vesting.release", wallet, func(w *vesting.Wallet) error {
		var err error
		amount, err = w.Release(caller)
		return err
	})
	return amount, err
}

// ForwardCall runs an authorised protocol call from a vesting wallet.
func (p *Protocol) ForwardCall(ctx context.Context, caller, wallet, target common.Address, calldata []byte) error {
	return p.withWallet(ctx, "vesting.forward", wallet, func(w *vesting.Wallet) error {
		return w.Forward(caller, target, calldata)
	})
}

func (p *Protocol) ApproveProtocol(ctx context.Context, caller, wallet common.Address) error {
	return p.withWallet(ctx, "vesting.approveProtocol", wallet, func(w *vesting.Wallet) error {
		return w.ApproveProtocol(caller)
	})
}

func (p *Protocol) RevokeProtocol(ctx context.Context, caller, wallet common.Address) error {
	return p.withWallet(ctx, "vesting.revokeProtocol", wallet, func(w *vesting.Wallet) error {
		return w.RevokeProtocol(caller)
	})
}

func (p *Protocol) RevokeWallet(ctx context.Context, caller, wallet common.Address) (*big.Int, error) {
	var amount *big.Int
	err := p.withWallet(ctx, "vesting.revoke", wallet, func(w *vesting.Wallet) error {
		var err error
		amount, err = w.Revoke(caller)
		return err
	})
	return amount, err
}

func (p *Protocol) WithdrawSurplus(ctx context.Context, caller, wallet common.Address, amount *big.Int) error {
	return p.withWallet(ctx, "vesting.withdrawSurplus", wallet, func(w *vesting.Wallet) error {
		return w.WithdrawSurplus(caller, amount)
	})
}

func (p *Protocol) ChangeBeneficiary(ctx context.Context, caller, wallet, beneficiary common.Address) error {
	return p.withWallet(ctx, "vesting.changeBeneficiary", wallet, func(w *vesting.Wallet) error {
		return w.ChangeBeneficiary(caller, beneficiary)
	})
}
