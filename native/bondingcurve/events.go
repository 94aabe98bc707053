package bondingcurve

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	// EventTypeInitialized is emitted once when a subject curve goes live.
	EventTypeInitialized = "bondingcurve.initialized"
	// EventTypeSubjectSharePurchased is emitted for every buy.
	EventTypeSubjectSharePurchased = "bondingcurve.subjectSharePurchased"
	// EventTypeSubjectShareSold is emitted for every sell.
	EventTypeSubjectShareSold = "bondingcurve.subjectShareSold"
	// EventTypeFeesUpdated is emitted when the fee schedule changes.
	EventTypeFeesUpdated = "bondingcurve.feesUpdated"
	// EventTypeFeeBeneficiaryUpdated is emitted when the protocol fee
	// beneficiary changes.
	EventTypeFeeBeneficiaryUpdated = "bondingcurve.feeBeneficiaryUpdated"
)

// InitializedEvent reports the launch parameters of a subject curve.
func InitializedEvent(subject, subjectToken common.Address, supply, reserve *big.Int, ratio uint32) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"subject":       subject.Hex(),
			"subjectToken":  subjectToken.Hex(),
			"initialSupply": supply.String(),
			"reserve":       reserve.String(),
			"reserveRatio":  strconv.FormatUint(uint64(ratio), 10),
		},
	}
}

// SharePurchasedEvent reports a buy: sellToken/sellAmount is the reserve
// paid, buyToken/buyAmount the subject tokens minted.
func SharePurchasedEvent(subject, sellToken common.Address, sellAmount *big.Int, buyToken common.Address, buyAmount *big.Int, beneficiary common.Address, protocolFee, subjectFee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSubjectSharePurchased,
		Attributes: map[string]string{
			"subject":     subject.Hex(),
			"sellToken":   sellToken.Hex(),
			"sellAmount":  sellAmount.String(),
			"buyToken":    buyToken.Hex(),
			"buyAmount":   buyAmount.String(),
			"beneficiary": beneficiary.Hex(),
			"protocolFee": protocolFee.String(),
			"subjectFee":  subjectFee.String(),
		},
	}
}

// ShareSoldEvent reports a sell: sellToken/sellAmount is the subject tokens
// burned, buyToken/buyAmount the reserve paid out net of fees.
func ShareSoldEvent(subject, sellToken common.Address, sellAmount *big.Int, buyToken common.Address, buyAmount *big.Int, beneficiary common.Address, protocolFee, subjectFee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeSubjectShareSold,
		Attributes: map[string]string{
			"subject":     subject.Hex(),
			"sellToken":   sellToken.Hex(),
			"sellAmount":  sellAmount.String(),
			"buyToken":    buyToken.Hex(),
			"buyAmount":   buyAmount.String(),
			"beneficiary": beneficiary.Hex(),
			"protocolFee": protocolFee.String(),
			"subjectFee":  subjectFee.String(),
		},
	}
}

// FeesUpdatedEvent reports the new fee schedule.
func FeesUpdatedEvent(fees Fees) *types.Event {
	return &types.Event{
		Type: EventTypeFeesUpdated,
		Attributes: map[string]string{
			"protocolBuyFeePct":  fees.ProtocolBuyFeePct.String(),
			"protocolSellFeePct": fees.ProtocolSellFeePct.String(),
			"subjectBuyFeePct":   fees.SubjectBuyFeePct.String(),
			"subjectSellFeePct":  fees.SubjectSellFeePct.String(),
		},
	}
}

// FeeBeneficiaryUpdatedEvent reports the new protocol fee beneficiary.
func FeeBeneficiaryUpdatedEvent(beneficiary common.Address) *types.Event {
	return &types.Event{
		Type:       EventTypeFeeBeneficiaryUpdated,
		Attributes: map[string]string{"beneficiary": beneficiary.Hex()},
	}
}
