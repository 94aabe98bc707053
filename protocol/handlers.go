package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/native/vesting"
)

// Calls a vesting wallet may forward into the protocol.
const (
	SigBuyShares      = "buyShares(address,uint256,uint256)"
	SigSellShares     = "sellShares(address,uint256,uint256)"
	SigBuyAndLock     = "buyAndLock(address,uint256,uint256)"
	SigDepositAndLock = "depositAndLock(address,uint256)"
	SigWithdraw       = "withdraw(uint256[])"
	SigExtendLock     = "extendLock(uint256[])"
)

type forwardedCall struct {
	signature string
	target    func(Addresses) common.Address
	spendArg  int
	exec      func(e *Engines, wallet common.Address, args []interface{}) error
}

var forwardedCalls = []forwardedCall{
	{
		signature: SigBuyShares,
		target:    func(a Addresses) common.Address { return a.BondingCurve },
		spendArg:  1,
		exec: func(e *Engines, wallet common.Address, args []interface{}) error {
			subject, deposit, minReturn, err := tradeArgs(args)
			if err != nil {
				return err
			}
			_, err = e.BondingCurve.BuyShares(wallet, subject, deposit, minReturn)
			return err
		},
	},
	{
		// Proceeds return to the wallet and reduce its used amount.
		signature: SigSellShares,
		target:    func(a Addresses) common.Address { return a.BondingCurve },
		spendArg:  -1,
		exec: func(e *Engines, wallet common.Address, args []interface{}) error {
			subject, sell, minReturn, err := tradeArgs(args)
			if err != nil {
				return err
			}
			if err := approveSubjectToken(e, subject, wallet, e.Addresses.BondingCurve, sell); err != nil {
				return err
			}
			_, err = e.BondingCurve.SellShares(wallet, subject, sell, minReturn)
			return err
		},
	},
	{
		signature: SigBuyAndLock,
		target:    func(a Addresses) common.Address { return a.Staking },
		spendArg:  1,
		exec: func(e *Engines, wallet common.Address, args []interface{}) error {
			subject, deposit, minReturn, err := tradeArgs(args)
			if err != nil {
				return err
			}
			_, _, err = e.Staking.BuyAndLock(wallet, subject, deposit, minReturn)
			return err
		},
	},
	{
		signature: SigDepositAndLock,
		target:    func(a Addresses) common.Address { return a.Staking },
		spendArg:  -1,
		exec: func(e *Engines, wallet common.Address, args []interface{}) error {
			subject, amount, err := lockArgs(args)
			if err != nil {
				return err
			}
			if err := approveSubjectToken(e, subject, wallet, e.Addresses.Staking, amount); err != nil {
				return err
			}
			_, err = e.Staking.DepositAndLock(wallet, subject, amount)
			return err
		},
	},
	{
		signature: SigWithdraw,
		target:    func(a Addresses) common.Address { return a.Staking },
		spendArg:  -1,
		exec: func(e *Engines, wallet common.Address, args []interface{}) error {
			indexes, err := indexArgs(args)
			if err != nil {
				return err
			}
			_, err = e.Staking.Withdraw(wallet, indexes)
			return err
		},
	},
	{
		signature: SigExtendLock,
		target:    func(a Addresses) common.Address { return a.Staking },
		spendArg:  -1,
		exec: func(e *Engines, wallet common.Address, args []interface{}) error {
			indexes, err := indexArgs(args)
			if err != nil {
				return err
			}
			_, err = e.Staking.ExtendLock(wallet, indexes)
			return err
		},
	},
}

func registerHandlers(e *Engines) error {
	for _, call := range forwardedCalls {
		call := call
		err := e.Vesting.RegisterHandler(call.signature, vesting.Handler{
			SpendArg: call.spendArg,
			Exec: func(wallet common.Address, args []interface{}) error {
				return call.exec(e, wallet, args)
			},
		})
		if err != nil {
			return fmt.Errorf("protocol: register %s: %w", call.signature, err)
		}
	}
	return nil
}

// approveSubjectToken lets spender pull exactly amount of the subject token
// from the wallet for the forwarded call.
func approveSubjectToken(e *Engines, subject, wallet, spender common.Address, amount *big.Int) error {
	tok, ok, err := e.TokenManager.TokenOf(subject)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("protocol: no subject token for %s", subject.Hex())
	}
	return e.Tokens.Approve(tok, wallet, spender, amount)
}

func lockArgs(args []interface{}) (common.Address, *big.Int, error) {
	if len(args) != 2 {
		return common.Address{}, nil, fmt.Errorf("protocol: expected 2 arguments, got %d", len(args))
	}
	subject, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("protocol: subject argument is %T", args[0])
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("protocol: amount argument is %T", args[1])
	}
	return subject, amount, nil
}

func tradeArgs(args []interface{}) (common.Address, *big.Int, *big.Int, error) {
	if len(args) != 3 {
		return common.Address{}, nil, nil, fmt.Errorf("protocol: expected 3 arguments, got %d", len(args))
	}
	subject, ok := args[0].(common.Address)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("protocol: subject argument is %T", args[0])
	}
	deposit, ok := args[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("protocol: amount argument is %T", args[1])
	}
	minReturn, ok := args[2].(*big.Int)
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("protocol: minReturn argument is %T", args[2])
	}
	return subject, deposit, minReturn, nil
}

func indexArgs(args []interface{}) ([]uint64, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("protocol: expected 1 argument, got %d", len(args))
	}
	raw, ok := args[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("protocol: indexes argument is %T", args[0])
	}
	out := make([]uint64, len(raw))
	for i, v := range raw {
		if v == nil || !v.IsUint64() {
			return nil, fmt.Errorf("protocol: index %d out of range", i)
		}
		out[i] = v.Uint64()
	}
	return out, nil
}
