package rewards

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	// EventTypeDeposit is emitted when rewards are credited to an account.
	EventTypeDeposit = "rewards.deposit"
	// EventTypeWithdraw is emitted when an account withdraws rewards.
	EventTypeWithdraw = "rewards.withdraw"
)

// DepositEvent returns the payload for a reward credit.
func DepositEvent(from, to common.Address, reason string, amount *big.Int, comment string) *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"from":    from.Hex(),
			"to":      to.Hex(),
			"reason":  reason,
			"amount":  amount.String(),
			"comment": comment,
		},
	}
}

// WithdrawEvent returns the payload for a reward withdrawal.
func WithdrawEvent(from, to common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeWithdraw,
		Attributes: map[string]string{
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	}
}
