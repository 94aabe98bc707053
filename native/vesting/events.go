package vesting

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	EventTypeWalletCreated           = "vesting.walletCreated"
	EventTypeFunctionCallAuth        = "vesting.functionCallAuth"
	EventTypeTokenDestinationAllowed = "vesting.tokenDestinationAllowed"
	EventTypeManagerDeposit          = "vesting.tokensDeposited"
	EventTypeManagerWithdraw         = "vesting.tokensWithdrawn"
	EventTypeTokensReleased          = "vesting.tokensReleased"
	EventTypeTokensRevoked           = "vesting.tokensRevoked"
	EventTypeSurplusWithdrawn        = "vesting.surplusWithdrawn"
	EventTypeBeneficiaryChanged      = "vesting.beneficiaryChanged"
	EventTypeProtocolApproved        = "vesting.tokenDestinationsApproved"
	EventTypeProtocolRevoked         = "vesting.tokenDestinationsRevoked"
	EventTypeTokensUsed              = "vesting.tokensUsed"
)

func walletCreatedEvent(w *WalletState) *types.Event {
	return &types.Event{
		Type: EventTypeWalletCreated,
		Attributes: map[string]string{
			"wallet":           w.Address.Hex(),
			"owner":            w.Owner.Hex(),
			"beneficiary":      w.Beneficiary.Hex(),
			"token":            w.Token.Hex(),
			"managedAmount":    w.ManagedAmount.String(),
			"startTime":        strconv.FormatUint(w.StartTime, 10),
			"endTime":          strconv.FormatUint(w.EndTime, 10),
			"periods":          strconv.FormatUint(w.Periods, 10),
			"releaseStartTime": strconv.FormatUint(w.ReleaseStartTime, 10),
			"vestingCliffTime": strconv.FormatUint(w.VestingCliffTime, 10),
			"revocable":        strconv.FormatBool(w.Revocable),
		},
	}
}

func functionCallAuthEvent(caller common.Address, sel Selector, target common.Address, signature string) *types.Event {
	return &types.Event{
		Type: EventTypeFunctionCallAuth,
		Attributes: map[string]string{
			"caller":    caller.Hex(),
			"sigHash":   sel.Hex(),
			"target":    target.Hex(),
			"signature": signature,
		},
	}
}

func tokenDestinationEvent(dst common.Address, allowed bool) *types.Event {
	return &types.Event{
		Type:       EventTypeTokenDestinationAllowed,
		Attributes: map[string]string{"dst": dst.Hex(), "allowed": strconv.FormatBool(allowed)},
	}
}

func amountEvent(kind string, account common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type:       kind,
		Attributes: map[string]string{"account": account.Hex(), "amount": amount.String()},
	}
}

func walletAmountEvent(kind string, wallet, account common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: kind,
		Attributes: map[string]string{
			"wallet":  wallet.Hex(),
			"account": account.Hex(),
			"amount":  amount.String(),
		},
	}
}
