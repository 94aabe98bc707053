package subjectfactory

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	// EventTypeOnboardingInitiated is emitted when a subject auction starts.
	EventTypeOnboardingInitiated = "subjectfactory.onboardingInitiated"
	// EventTypeOnboardingFinalized is emitted when a subject curve opens.
	EventTypeOnboardingFinalized = "subjectfactory.onboardingFinalized"
	// EventTypeAuctionTimeUpdated is emitted when the auction window changes.
	EventTypeAuctionTimeUpdated = "subjectfactory.auctionTimeUpdated"
	// EventTypeFeesUpdated is emitted when the onboarding fees change.
	EventTypeFeesUpdated = "subjectfactory.feesUpdated"
)

// OnboardingInitiatedEvent reports a started onboarding auction.
func OnboardingInitiatedEvent(subject, subjectToken common.Address, in AuctionInput, auctionID, endDate uint64) *types.Event {
	return &types.Event{
		Type: EventTypeOnboardingInitiated,
		Attributes: map[string]string{
			"subject":             subject.Hex(),
			"subjectToken":        subjectToken.Hex(),
			"initialSupply":       in.InitialSupply.String(),
			"minBuyAmount":        bigString(in.MinBuyAmount),
			"minBiddingAmount":    bigString(in.MinBiddingAmount),
			"minFundingThreshold": bigString(in.MinFundingThreshold),
			"auctionId":           strconv.FormatUint(auctionID, 10),
			"auctionEndDate":      strconv.FormatUint(endDate, 10),
		},
	}
}

// OnboardingFinalizedEvent reports the launch of a subject curve.
func OnboardingFinalizedEvent(subject, subjectToken common.Address, auctionID uint64, supply, reserve, protocolFee, subjectFee *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeOnboardingFinalized,
		Attributes: map[string]string{
			"subject":       subject.Hex(),
			"subjectToken":  subjectToken.Hex(),
			"auctionId":     strconv.FormatUint(auctionID, 10),
			"bondingSupply": supply.String(),
			"bondingAmount": reserve.String(),
			"protocolFee":   protocolFee.String(),
			"subjectFee":    subjectFee.String(),
		},
	}
}

// AuctionTimeUpdatedEvent reports the auction window used by new auctions.
func AuctionTimeUpdatedEvent(duration, cancellation uint64) *types.Event {
	return &types.Event{
		Type: EventTypeAuctionTimeUpdated,
		Attributes: map[string]string{
			"auctionDuration":                  strconv.FormatUint(duration, 10),
			"auctionOrderCancellationDuration": strconv.FormatUint(cancellation, 10),
		},
	}
}

// FeesUpdatedEvent reports the fees charged on auction proceeds.
func FeesUpdatedEvent(protocolFeePct, subjectFeePct *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeFeesUpdated,
		Attributes: map[string]string{
			"protocolFeePct": protocolFeePct.String(),
			"subjectFeePct":  subjectFeePct.String(),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
