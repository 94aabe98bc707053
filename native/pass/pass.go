package pass

import (
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
	"moxieprotocol/native/access"
)

var (
	errNilState = errors.New("pass: state not configured")

	ErrInvalidOwner    = errors.New("pass: ERC721InvalidReceiver")
	ErrNonexistentPass = errors.New("pass: ERC721NonexistentToken")
)

const (
	EventTypeMinted  = "pass.minted"
	EventTypeAllowed = "pass.allowed"
	EventTypeRemoved = "pass.removed"
)

type passState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

type record struct {
	Owner common.Address
	URI   string
}

// Registry is the non-fungible access pass. Holding at least one pass admits
// an account to pass-gated subject tokens.
type Registry struct {
	state   passState
	emitter events.Emitter
	auth    access.Authority
}

// NewRegistry constructs a pass registry guarded by auth.
func NewRegistry(auth access.Authority) *Registry {
	return &Registry{auth: auth, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (r *Registry) SetState(state passState) { r.state = state }

// SetEmitter configures the event emitter.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func passKey(id uint64) []byte {
	return []byte("pass/token/" + strconv.FormatUint(id, 10))
}

func holderKey(owner common.Address) []byte {
	return []byte("pass/balance/" + owner.Hex())
}

var nextIDKey = []byte("pass/nextId")

// Mint issues a new pass to to. Requires the minter role.
func (r *Registry) Mint(caller, to common.Address, uri string) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	if err := access.Require(r.auth, access.PassMinterRole, caller); err != nil {
		return 0, err
	}
	if to == (common.Address{}) {
		return 0, ErrInvalidOwner
	}
	var id uint64
	if _, err := r.state.KVGet(nextIDKey, &id); err != nil {
		return 0, err
	}
	if err := r.state.KVPut(nextIDKey, id+1); err != nil {
		return 0, err
	}
	if err := r.state.KVPut(passKey(id), &record{Owner: to, URI: uri}); err != nil {
		return 0, err
	}
	balance, err := r.BalanceOf(to)
	if err != nil {
		return 0, err
	}
	if err := r.state.KVPut(holderKey(to), balance+1); err != nil {
		return 0, err
	}
	r.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"to":      to.Hex(),
			"tokenId": strconv.FormatUint(id, 10),
			"uri":     uri,
		},
	}))
	return id, nil
}

// BalanceOf returns the number of passes held by owner.
func (r *Registry) BalanceOf(owner common.Address) (uint64, error) {
	if r == nil || r.state == nil {
		return 0, errNilState
	}
	var balance uint64
	if _, err := r.state.KVGet(holderKey(owner), &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// OwnerOf returns the holder of pass id.
func (r *Registry) OwnerOf(id uint64) (common.Address, error) {
	if r == nil || r.state == nil {
		return common.Address{}, errNilState
	}
	var rec record
	ok, err := r.state.KVGet(passKey(id), &rec)
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, ErrNonexistentPass
	}
	return rec.Owner, nil
}

// IsPassHolder reports whether account holds at least one pass.
func (r *Registry) IsPassHolder(account common.Address) (bool, error) {
	balance, err := r.BalanceOf(account)
	if err != nil {
		return false, err
	}
	return balance > 0, nil
}
