package subjectfactory

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Status tracks a subject through onboarding.
type Status uint8

const (
	StatusNotOnboarded Status = iota
	StatusAuctionActive
	StatusFinalized
)

func (s Status) String() string {
	switch s {
	case StatusAuctionActive:
		return "AuctionActive"
	case StatusFinalized:
		return "Finalized"
	default:
		return "NotOnboarded"
	}
}

// AuctionInput carries the caller-supplied auction parameters.
type AuctionInput struct {
	Name                string
	Symbol              string
	InitialSupply       *big.Int
	MinBuyAmount        *big.Int
	MinBiddingAmount    *big.Int
	MinFundingThreshold *big.Int
	IsAtomicClosure     bool
}

// AuctionParams is the request handed to the external batch auction.
type AuctionParams struct {
	AuctioningToken          common.Address
	BiddingToken             common.Address
	OrderCancellationEndDate uint64
	AuctionEndDate           uint64
	AuctionedSellAmount      *big.Int
	MinBuyAmount             *big.Int
	MinimumBiddingAmount     *big.Int
	MinFundingThreshold      *big.Int
	IsAtomicClosureAllowed   bool
}

// Auction is the external batch auction. Settlement pays the proceeds and
// returns unsold tokens to the seller that initiated the auction.
type Auction interface {
	Address() common.Address
	InitiateAuction(seller common.Address, params AuctionParams) (uint64, error)
	SettleAuction(auctionID uint64) error
}

// Subject is the persisted onboarding record.
type Subject struct {
	Subject        common.Address
	SubjectToken   common.Address
	AuctionID      uint64
	AuctionEndDate uint64
	InitialSupply  *big.Int
	Status         Status
}

// AuctionTime is the window applied to newly initiated auctions, in seconds.
type AuctionTime struct {
	Duration             uint64
	CancellationDuration uint64
}

// FeeConfig holds the fees charged on auction proceeds, scaled by 1e18.
type FeeConfig struct {
	ProtocolFeePct *big.Int
	SubjectFeePct  *big.Int
	Beneficiary    common.Address
}
