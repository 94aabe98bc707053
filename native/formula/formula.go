package formula

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// MaxReserveRatio is the reserve ratio (parts per million) of a linear curve.
const MaxReserveRatio uint32 = 1_000_000

var (
	ErrInvalidReserveRatio = errors.New("formula: InvalidReserveRatio")
	ErrInvalidSupply       = errors.New("formula: supply must be positive")
	ErrInvalidReserve      = errors.New("formula: reserve balance must be positive")
	ErrInvalidAmount       = errors.New("formula: invalid amount")
	ErrOverflow            = errors.New("formula: arithmetic overflow")
)

// Bancor exposes the curve computations as methods so engines can accept a
// formula capability instead of calling the package functions directly.
type Bancor struct{}

// CalculatePurchaseReturn implements the purchase side of the curve.
func (Bancor) CalculatePurchaseReturn(supply, reserve *big.Int, ratio uint32, deposit *big.Int) (*big.Int, error) {
	return CalculatePurchaseReturn(supply, reserve, ratio, deposit)
}

// CalculateSaleReturn implements the sale side of the curve.
func (Bancor) CalculateSaleReturn(supply, reserve *big.Int, ratio uint32, sell *big.Int) (*big.Int, error) {
	return CalculateSaleReturn(supply, reserve, ratio, sell)
}

// CalculateFundCost implements the inverse of the purchase side.
func (Bancor) CalculateFundCost(supply, reserve *big.Int, ratio uint32, mint *big.Int) (*big.Int, error) {
	return CalculateFundCost(supply, reserve, ratio, mint)
}

type operands struct {
	supply  *uint256.Int
	reserve *uint256.Int
	amount  *uint256.Int
}

func convert(supply, reserve *big.Int, ratio uint32, amount *big.Int) (operands, error) {
	if ratio == 0 || ratio > MaxReserveRatio {
		return operands{}, ErrInvalidReserveRatio
	}
	if supply == nil || supply.Sign() <= 0 {
		return operands{}, ErrInvalidSupply
	}
	if reserve == nil || reserve.Sign() <= 0 {
		return operands{}, ErrInvalidReserve
	}
	if amount == nil || amount.Sign() < 0 {
		return operands{}, ErrInvalidAmount
	}
	s, overflow := uint256.FromBig(supply)
	if overflow {
		return operands{}, ErrOverflow
	}
	r, overflow := uint256.FromBig(reserve)
	if overflow {
		return operands{}, ErrOverflow
	}
	a, overflow := uint256.FromBig(amount)
	if overflow {
		return operands{}, ErrOverflow
	}
	return operands{supply: s, reserve: r, amount: a}, nil
}

// CalculatePurchaseReturn returns the number of tokens minted for depositing
// deposit reserve units into a curve holding reserve against supply tokens:
//
//	supply * ((1 + deposit / reserve) ^ (ratio / 1000000) - 1)
//
// The result is rounded down.
func CalculatePurchaseReturn(supply, reserve *big.Int, ratio uint32, deposit *big.Int) (*big.Int, error) {
	ops, err := convert(supply, reserve, ratio, deposit)
	if err != nil {
		return nil, err
	}
	out, err := purchaseReturn(ops.supply, ops.reserve, ratio, ops.amount)
	if err != nil {
		return nil, err
	}
	return out.ToBig(), nil
}

func purchaseReturn(supply, reserve *uint256.Int, ratio uint32, deposit *uint256.Int) (*uint256.Int, error) {
	if deposit.IsZero() {
		return new(uint256.Int), nil
	}
	if ratio == MaxReserveRatio {
		out, overflow := new(uint256.Int).MulDivOverflow(supply, deposit, reserve)
		if overflow {
			return nil, ErrOverflow
		}
		return out, nil
	}
	baseN, overflow := new(uint256.Int).AddOverflow(reserve, deposit)
	if overflow {
		return nil, ErrOverflow
	}
	result, err := power(baseN, reserve, ratio, MaxReserveRatio)
	if err != nil {
		return nil, err
	}
	grown, overflow := new(uint256.Int).MulDivOverflow(supply, result, fixedOne)
	if overflow {
		return nil, ErrOverflow
	}
	if grown.Lt(supply) {
		return new(uint256.Int), nil
	}
	return grown.Sub(grown, supply), nil
}

// CalculateSaleReturn returns the reserve released when sell tokens are
// burned:
//
//	reserve * (1 - (1 - sell / supply) ^ (1000000 / ratio))
//
// The result is rounded down. Selling the entire supply releases the entire
// reserve.
func CalculateSaleReturn(supply, reserve *big.Int, ratio uint32, sell *big.Int) (*big.Int, error) {
	ops, err := convert(supply, reserve, ratio, sell)
	if err != nil {
		return nil, err
	}
	out, err := saleReturn(ops.supply, ops.reserve, ratio, ops.amount)
	if err != nil {
		return nil, err
	}
	return out.ToBig(), nil
}

func saleReturn(supply, reserve *uint256.Int, ratio uint32, sell *uint256.Int) (*uint256.Int, error) {
	if sell.Gt(supply) {
		return nil, ErrInvalidAmount
	}
	if sell.IsZero() {
		return new(uint256.Int), nil
	}
	if sell.Eq(supply) {
		return new(uint256.Int).Set(reserve), nil
	}
	if ratio == MaxReserveRatio {
		out, overflow := new(uint256.Int).MulDivOverflow(reserve, sell, supply)
		if overflow {
			return nil, ErrOverflow
		}
		return out, nil
	}
	left := new(uint256.Int).Sub(supply, sell)
	mantissa, shift, err := powerParts(supply, left, MaxReserveRatio, ratio)
	if err != nil {
		return nil, err
	}
	// remaining = reserve / (mantissa * 2^shift), rounded up so the released
	// amount never exceeds the exact value.
	inverse, _ := new(uint256.Int).MulDivOverflow(fixedOne, fixedOne, mantissa)
	scaled, _ := new(uint256.Int).MulDivOverflow(reserve, inverse, fixedOne)
	remaining := uint256.NewInt(1)
	if shift < 256 {
		remaining.Add(remaining, scaled.Rsh(scaled, uint(shift)))
	}
	if !remaining.Lt(reserve) {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Sub(reserve, remaining), nil
}

// CalculateFundCost returns the smallest deposit whose purchase return is at
// least mint tokens. Whenever a single reserve unit buys at most one token,
// purchasing with the returned cost yields exactly mint.
func CalculateFundCost(supply, reserve *big.Int, ratio uint32, mint *big.Int) (*big.Int, error) {
	ops, err := convert(supply, reserve, ratio, mint)
	if err != nil {
		return nil, err
	}
	out, err := fundCost(ops.supply, ops.reserve, ratio, ops.amount)
	if err != nil {
		return nil, err
	}
	return out.ToBig(), nil
}

func fundCost(supply, reserve *uint256.Int, ratio uint32, mint *uint256.Int) (*uint256.Int, error) {
	if mint.IsZero() {
		return new(uint256.Int), nil
	}
	if ratio == MaxReserveRatio {
		// ceil(mint * reserve / supply)
		cost, overflow := new(uint256.Int).MulDivOverflow(mint, reserve, supply)
		if overflow {
			return nil, ErrOverflow
		}
		check, _ := new(uint256.Int).MulDivOverflow(cost, supply, reserve)
		if check.Lt(mint) {
			cost.AddUint64(cost, 1)
		}
		return cost, nil
	}
	estimate, err := estimateFundCost(supply, reserve, ratio, mint)
	if err != nil {
		return nil, err
	}
	return refineFundCost(supply, reserve, ratio, mint, estimate)
}

// estimateFundCost evaluates reserve * ((supply + mint) / supply) ^
// (1000000 / ratio) - reserve, rounded up.
func estimateFundCost(supply, reserve *uint256.Int, ratio uint32, mint *uint256.Int) (*uint256.Int, error) {
	baseN, overflow := new(uint256.Int).AddOverflow(supply, mint)
	if overflow {
		return nil, ErrOverflow
	}
	result, err := power(baseN, supply, MaxReserveRatio, ratio)
	if err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).MulDivOverflow(reserve, result, fixedOne)
	if overflow {
		return nil, ErrOverflow
	}
	if _, overflow := total.AddOverflow(total, uint256.NewInt(1)); overflow {
		return nil, ErrOverflow
	}
	if total.Lt(reserve) {
		return new(uint256.Int), nil
	}
	return total.Sub(total, reserve), nil
}

// refineFundCost corrects the closed-form estimate for the rounding of the
// fixed-point power approximation. It brackets the answer by galloping from
// the estimate and then bisects, so the result is the least cost whose
// purchase return reaches mint.
func refineFundCost(supply, reserve *uint256.Int, ratio uint32, mint, estimate *uint256.Int) (*uint256.Int, error) {
	reaches := func(cost *uint256.Int) (bool, error) {
		got, err := purchaseReturn(supply, reserve, ratio, cost)
		if err != nil {
			return false, err
		}
		return !got.Lt(mint), nil
	}

	hi := new(uint256.Int).Set(estimate)
	var lo *uint256.Int
	step := uint256.NewInt(1)
	for {
		ok, err := reaches(hi)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		lo = new(uint256.Int).Set(hi)
		next, overflow := new(uint256.Int).AddOverflow(hi, step)
		if overflow {
			return nil, ErrOverflow
		}
		hi = next
		step.Lsh(step, 1)
	}
	if lo == nil {
		step.SetOne()
		for {
			if hi.Lt(step) {
				lo = new(uint256.Int)
				break
			}
			candidate := new(uint256.Int).Sub(hi, step)
			ok, err := reaches(candidate)
			if err != nil {
				return nil, err
			}
			if !ok {
				lo = candidate
				break
			}
			hi = candidate
			step.Lsh(step, 1)
		}
	}
	// purchaseReturn(lo) < mint <= purchaseReturn(hi)
	one := uint256.NewInt(1)
	for {
		gap := new(uint256.Int).Sub(hi, lo)
		if !gap.Gt(one) {
			return hi, nil
		}
		mid := new(uint256.Int).Add(lo, gap.Rsh(gap, 1))
		ok, err := reaches(mid)
		if err != nil {
			return nil, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid
		}
	}
}
