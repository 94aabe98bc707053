package pass

import (
	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
)

// HolderView reports pass ownership.
type HolderView interface {
	IsPassHolder(account common.Address) (bool, error)
}

// Verifier admits pass holders plus an allow-list of protocol-owned accounts
// (vault, staking, curve, factory and vesting wallets) that must be able to
// custody pass-gated tokens without holding a pass themselves.
type Verifier struct {
	holders HolderView
	state   passState
	emitter events.Emitter
}

// NewVerifier builds a verifier backed by holders.
func NewVerifier(holders HolderView) *Verifier {
	return &Verifier{holders: holders, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend holding the allow-list.
func (v *Verifier) SetState(state passState) { v.state = state }

// SetEmitter configures the event emitter.
func (v *Verifier) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

func allowKey(account common.Address) []byte {
	return []byte("pass/allow/" + account.Hex())
}

// Allow adds account to the allow-list. Only protocol wiring calls this.
func (v *Verifier) Allow(account common.Address) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if err := v.state.KVPut(allowKey(account), true); err != nil {
		return err
	}
	v.emitter.Emit(events.Wrap(&types.Event{Type: EventTypeAllowed, Attributes: map[string]string{"account": account.Hex()}}))
	return nil
}

// Remove drops account from the allow-list.
func (v *Verifier) Remove(account common.Address) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	if err := v.state.KVDelete(allowKey(account)); err != nil {
		return err
	}
	v.emitter.Emit(events.Wrap(&types.Event{Type: EventTypeRemoved, Attributes: map[string]string{"account": account.Hex()}}))
	return nil
}

// IsAllowed implements token.PassVerifier.
func (v *Verifier) IsAllowed(account common.Address) (bool, error) {
	if v == nil || v.state == nil {
		return false, errNilState
	}
	var allowed bool
	ok, err := v.state.KVGet(allowKey(account), &allowed)
	if err != nil {
		return false, err
	}
	if ok && allowed {
		return true, nil
	}
	if v.holders == nil {
		return false, nil
	}
	return v.holders.IsPassHolder(account)
}
