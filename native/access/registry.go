package access

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/types"
)

var (
	errNilState            = errors.New("access registry: state not configured")
	errAlreadyBootstrapped = errors.New("access registry: admin already configured")
	errZeroAccount         = errors.New("access registry: account must not be zero")
)

const (
	EventTypeRoleGranted = "access.roleGranted"
	EventTypeRoleRevoked = "access.roleRevoked"
	EventTypePaused      = "access.paused"
	EventTypeUnpaused    = "access.unpaused"
)

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Registry is a state-backed role table scoped to a single domain (one per
// protocol component). It also stores the pause flags consulted through
// native/common.Guard.
type Registry struct {
	domain  string
	state   registryState
	emitter events.Emitter
}

// NewRegistry constructs a registry for domain.
func NewRegistry(domain string) *Registry {
	return &Registry{domain: strings.TrimSpace(domain), emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the registry.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// Domain returns the scope of the registry.
func (r *Registry) Domain() string { return r.domain }

func (r *Registry) roleKey(role Role, account common.Address) []byte {
	return []byte("access/" + r.domain + "/role/" + common.Hash(role).Hex() + "/" + account.Hex())
}

func (r *Registry) adminSetKey() []byte {
	return []byte("access/" + r.domain + "/bootstrapped")
}

func pauseKey(module string) []byte {
	return []byte("access/pause/" + strings.TrimSpace(module))
}

// HasRole implements Authority.
func (r *Registry) HasRole(role Role, account common.Address) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNilState
	}
	var granted bool
	ok, err := r.state.KVGet(r.roleKey(role, account), &granted)
	if err != nil {
		return false, err
	}
	return ok && granted, nil
}

// Bootstrap grants the default admin role to admin. It only succeeds once per
// domain and is used by deployment wiring.
func (r *Registry) Bootstrap(admin common.Address) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if admin == (common.Address{}) {
		return errZeroAccount
	}
	done, err := r.state.KVGet(r.adminSetKey(), nil)
	if err != nil {
		return err
	}
	if done {
		return errAlreadyBootstrapped
	}
	if err := r.state.KVPut(r.adminSetKey(), true); err != nil {
		return err
	}
	return r.grant(DefaultAdminRole, admin, admin)
}

func (r *Registry) grant(role Role, account, sender common.Address) error {
	has, err := r.HasRole(role, account)
	if err != nil || has {
		return err
	}
	if err := r.state.KVPut(r.roleKey(role, account), true); err != nil {
		return err
	}
	r.emit(EventTypeRoleGranted, map[string]string{
		"domain":  r.domain,
		"role":    role.String(),
		"account": account.Hex(),
		"sender":  sender.Hex(),
	})
	return nil
}

// GrantRole grants role to account. The caller must hold the admin role.
func (r *Registry) GrantRole(caller common.Address, role Role, account common.Address) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if account == (common.Address{}) {
		return errZeroAccount
	}
	if err := Require(r, DefaultAdminRole, caller); err != nil {
		return err
	}
	return r.grant(role, account, caller)
}

// RevokeRole removes role from account. The caller must hold the admin role.
func (r *Registry) RevokeRole(caller common.Address, role Role, account common.Address) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := Require(r, DefaultAdminRole, caller); err != nil {
		return err
	}
	return r.revoke(role, account, caller)
}

// RenounceRole lets the caller drop one of its own roles.
func (r *Registry) RenounceRole(caller common.Address, role Role) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	return r.revoke(role, caller, caller)
}

func (r *Registry) revoke(role Role, account, sender common.Address) error {
	has, err := r.HasRole(role, account)
	if err != nil || !has {
		return err
	}
	if err := r.state.KVDelete(r.roleKey(role, account)); err != nil {
		return err
	}
	r.emit(EventTypeRoleRevoked, map[string]string{
		"domain":  r.domain,
		"role":    role.String(),
		"account": account.Hex(),
		"sender":  sender.Hex(),
	})
	return nil
}

// IsPaused implements native/common.PauseView.
func (r *Registry) IsPaused(module string) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNilState
	}
	var paused bool
	ok, err := r.state.KVGet(pauseKey(module), &paused)
	if err != nil {
		return false, err
	}
	return ok && paused, nil
}

// Pause sets the pause flag of the registry's domain.
func (r *Registry) Pause(caller common.Address) error {
	return r.setPaused(caller, true)
}

// Unpause clears the pause flag of the registry's domain.
func (r *Registry) Unpause(caller common.Address) error {
	return r.setPaused(caller, false)
}

func (r *Registry) setPaused(caller common.Address, paused bool) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := Require(r, PauseRole, caller); err != nil {
		return err
	}
	if paused {
		if err := r.state.KVPut(pauseKey(r.domain), true); err != nil {
			return err
		}
		r.emit(EventTypePaused, map[string]string{"domain": r.domain, "account": caller.Hex()})
		return nil
	}
	if err := r.state.KVDelete(pauseKey(r.domain)); err != nil {
		return err
	}
	r.emit(EventTypeUnpaused, map[string]string{"domain": r.domain, "account": caller.Hex()})
	return nil
}

func (r *Registry) emit(kind string, attrs map[string]string) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(events.Wrap(&types.Event{Type: kind, Attributes: attrs}))
}
