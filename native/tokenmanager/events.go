package tokenmanager

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/types"
)

const (
	// EventTypeTokenDeployed is emitted when a subject token is created.
	EventTypeTokenDeployed = "tokenmanager.tokenDeployed"
	// EventTypeTokenMinted is emitted on every subject token mint.
	EventTypeTokenMinted = "tokenmanager.tokenMinted"
)

// TokenDeployedEvent reports the token registered for a subject.
func TokenDeployedEvent(subject, token common.Address, initialSupply *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenDeployed,
		Attributes: map[string]string{
			"subject":       subject.Hex(),
			"token":         token.Hex(),
			"initialSupply": initialSupply.String(),
		},
	}
}

// TokenMintedEvent reports a mint on a subject token.
func TokenMintedEvent(subject, beneficiary common.Address, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTokenMinted,
		Attributes: map[string]string{
			"subject":     subject.Hex(),
			"beneficiary": beneficiary.Hex(),
			"amount":      amount.String(),
		},
	}
}
