package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	// EventTypeDeposit is emitted when reserve is credited to a subject pair.
	EventTypeDeposit = "vault.deposit"
	// EventTypeTransfer is emitted when reserve leaves a subject pair.
	EventTypeTransfer = "vault.transfer"
)

// DepositEvent reports a deposit and the resulting cumulative balance.
func DepositEvent(subjectToken, reserveToken, sender common.Address, amount, balance *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeDeposit,
		Attributes: map[string]string{
			"subjectToken": subjectToken.Hex(),
			"reserveToken": reserveToken.Hex(),
			"sender":       sender.Hex(),
			"amount":       amount.String(),
			"totalReserve": balance.String(),
		},
	}
}

// TransferEvent reports a transfer and the remaining balance.
func TransferEvent(subjectToken, reserveToken, to common.Address, amount, balance *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"subjectToken": subjectToken.Hex(),
			"reserveToken": reserveToken.Hex(),
			"to":           to.Hex(),
			"amount":       amount.String(),
			"totalReserve": balance.String(),
		},
	}
}
