package formula

import (
	"sync"

	"github.com/holiman/uint256"
)

// precision is the number of fractional bits of the internal fixed-point
// representation. One unit is 2^precision.
const precision = 127

var (
	fixedOne = new(uint256.Int).Lsh(uint256.NewInt(1), precision)
	fixedTwo = new(uint256.Int).Lsh(uint256.NewInt(1), precision+1)

	rootsOnce sync.Once
	// roots[j] holds 2^(2^-j) in fixed point for j in [1, precision].
	roots [precision + 1]*uint256.Int
)

func initRoots() {
	roots[0] = new(uint256.Int).Set(fixedTwo)
	for j := 1; j <= precision; j++ {
		// sqrt(v * 2^127) keeps the result scaled by 2^127. v < 2^129 so the
		// product stays below 2^256.
		scaled := new(uint256.Int).Mul(roots[j-1], fixedOne)
		roots[j] = new(uint256.Int).Sqrt(scaled)
	}
}

// log2Fixed returns log2(baseN/baseD) scaled by 2^precision. baseN must not
// be smaller than baseD.
func log2Fixed(baseN, baseD *uint256.Int) (*uint256.Int, error) {
	x, overflow := new(uint256.Int).MulDivOverflow(baseN, fixedOne, baseD)
	if overflow {
		return nil, ErrOverflow
	}
	if x.Lt(fixedOne) {
		return nil, ErrInvalidAmount
	}
	n := uint(x.BitLen() - 1 - precision)
	x.Rsh(x, n)
	res := new(uint256.Int).Lsh(uint256.NewInt(uint64(n)), precision)
	// Each squaring of x in [1, 2) yields one more fractional bit of the
	// logarithm.
	for bit := precision - 1; bit >= 0; bit-- {
		x, _ = new(uint256.Int).MulDivOverflow(x, x, fixedOne)
		if !x.Lt(fixedTwo) {
			x.Rsh(x, 1)
			res.Or(res, new(uint256.Int).Lsh(uint256.NewInt(1), uint(bit)))
		}
	}
	return res, nil
}

// exp2Frac returns 2^(frac/2^precision) scaled by 2^precision for a frac in
// [0, 2^precision). The result lies in [2^precision, 2^(precision+1)).
func exp2Frac(frac *uint256.Int) *uint256.Int {
	rootsOnce.Do(initRoots)
	acc := new(uint256.Int).Set(fixedOne)
	for j := 1; j <= precision; j++ {
		bit := precision - j
		if frac[bit/64]>>(uint(bit)%64)&1 == 0 {
			continue
		}
		acc, _ = new(uint256.Int).MulDivOverflow(acc, roots[j], fixedOne)
	}
	return acc
}

// powerParts approximates (baseN/baseD)^(expN/expD) for baseN >= baseD and
// returns it split into a mantissa in [2^precision, 2^(precision+1)) and a
// binary exponent, so that the value equals mantissa * 2^shift / 2^precision.
func powerParts(baseN, baseD *uint256.Int, expN, expD uint32) (*uint256.Int, uint64, error) {
	lg, err := log2Fixed(baseN, baseD)
	if err != nil {
		return nil, 0, err
	}
	y, overflow := new(uint256.Int).MulDivOverflow(lg, uint256.NewInt(uint64(expN)), uint256.NewInt(uint64(expD)))
	if overflow {
		return nil, 0, ErrOverflow
	}
	whole := new(uint256.Int).Rsh(y, precision)
	if !whole.IsUint64() {
		return nil, 0, ErrOverflow
	}
	frac := new(uint256.Int).Sub(y, new(uint256.Int).Lsh(whole, precision))
	return exp2Frac(frac), whole.Uint64(), nil
}

// power returns (baseN/baseD)^(expN/expD) scaled by 2^precision.
func power(baseN, baseD *uint256.Int, expN, expD uint32) (*uint256.Int, error) {
	mantissa, shift, err := powerParts(baseN, baseD, expN, expD)
	if err != nil {
		return nil, err
	}
	if uint64(mantissa.BitLen())+shift > 256 {
		return nil, ErrOverflow
	}
	return mantissa.Lsh(mantissa, uint(shift)), nil
}
