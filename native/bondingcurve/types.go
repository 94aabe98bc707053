package bondingcurve

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PctBase scales every fee percentage: 1e16 is 1%.
var PctBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Fees is the fee schedule applied to trades. Each percentage is scaled by
// PctBase.
type Fees struct {
	ProtocolBuyFeePct  *big.Int
	ProtocolSellFeePct *big.Int
	SubjectBuyFeePct   *big.Int
	SubjectSellFeePct  *big.Int
}

// Clone returns a deep copy with nil percentages normalised to zero.
func (f Fees) Clone() Fees {
	return Fees{
		ProtocolBuyFeePct:  cloneBig(f.ProtocolBuyFeePct),
		ProtocolSellFeePct: cloneBig(f.ProtocolSellFeePct),
		SubjectBuyFeePct:   cloneBig(f.SubjectBuyFeePct),
		SubjectSellFeePct:  cloneBig(f.SubjectSellFeePct),
	}
}

// Validate enforces that every percentage lies in [0, PctBase] and that
// neither side can consume the whole trade.
func (f Fees) Validate() error {
	for _, pct := range []*big.Int{f.ProtocolBuyFeePct, f.ProtocolSellFeePct, f.SubjectBuyFeePct, f.SubjectSellFeePct} {
		if pct == nil || pct.Sign() < 0 || pct.Cmp(PctBase) > 0 {
			return ErrInvalidFeePercentage
		}
	}
	if new(big.Int).Add(f.ProtocolBuyFeePct, f.SubjectBuyFeePct).Cmp(PctBase) >= 0 {
		return ErrInvalidFeePercentage
	}
	if new(big.Int).Add(f.ProtocolSellFeePct, f.SubjectSellFeePct).Cmp(PctBase) >= 0 {
		return ErrInvalidFeePercentage
	}
	return nil
}

// BuySide returns the protocol and subject fees charged on a buy of amount.
func (f Fees) BuySide(amount *big.Int) (protocolFee, subjectFee *big.Int) {
	return pct(amount, f.ProtocolBuyFeePct), pct(amount, f.SubjectBuyFeePct)
}

// SellSide returns the protocol and subject fees charged on a sale returning
// amount.
func (f Fees) SellSide(amount *big.Int) (protocolFee, subjectFee *big.Int) {
	return pct(amount, f.ProtocolSellFeePct), pct(amount, f.SubjectSellFeePct)
}

func pct(amount, p *big.Int) *big.Int {
	if amount == nil || p == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, p)
	return out.Quo(out, PctBase)
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// curveRecord is the persisted per-subject configuration.
type curveRecord struct {
	SubjectToken common.Address
	ReserveRatio uint32
	Initialized  bool
}

// CurveState is the read model of a subject curve. Supply and Reserve are
// read live from the token ledger and the vault.
type CurveState struct {
	Subject      common.Address
	SubjectToken common.Address
	ReserveToken common.Address
	ReserveRatio uint32
	Supply       *big.Int
	Reserve      *big.Int
	Initialized  bool
}

// BuyQuote prices the purchase of a fixed number of subject tokens.
type BuyQuote struct {
	// Deposit is the reserve amount, fees included, to pass to BuyShares.
	Deposit     *big.Int
	ProtocolFee *big.Int
	SubjectFee  *big.Int
}

// SellQuote prices the sale of a fixed number of subject tokens.
type SellQuote struct {
	// Return is the reserve paid to the seller after fees.
	Return      *big.Int
	ProtocolFee *big.Int
	SubjectFee  *big.Int
}
