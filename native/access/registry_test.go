package access

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/core/events"
	"moxieprotocol/core/state"
	nativecommon "moxieprotocol/native/common"
	"moxieprotocol/storage"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	operator = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

func newTestRegistry(t *testing.T) (*Registry, *events.Buffer) {
	t.Helper()
	reg := NewRegistry("vault")
	reg.SetState(state.NewManager(storage.NewMemDB()))
	buf := &events.Buffer{}
	reg.SetEmitter(buf)
	if err := reg.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return reg, buf
}

func TestBootstrapOnlyOnce(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if err := reg.Bootstrap(stranger); !errors.Is(err, errAlreadyBootstrapped) {
		t.Fatalf("expected second bootstrap to fail, got %v", err)
	}
	ok, err := reg.HasRole(DefaultAdminRole, admin)
	if err != nil || !ok {
		t.Fatalf("admin should hold the default admin role: %v", err)
	}
}

func TestGrantAndRevoke(t *testing.T) {
	reg, buf := newTestRegistry(t)

	err := reg.GrantRole(stranger, DepositRole, operator)
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if unauthorized.Account != stranger || unauthorized.Role != DefaultAdminRole {
		t.Fatalf("unexpected error payload: %+v", unauthorized)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected errors.Is to match ErrUnauthorized")
	}

	if err := reg.GrantRole(admin, DepositRole, operator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := Require(reg, DepositRole, operator); err != nil {
		t.Fatalf("operator should hold deposit role: %v", err)
	}
	if err := Require(reg, TransferRole, operator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("operator must not hold transfer role, got %v", err)
	}

	if err := reg.RevokeRole(admin, DepositRole, operator); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := reg.HasRole(DepositRole, operator); ok {
		t.Fatalf("role should be revoked")
	}

	raw := events.Raw(buf.Drain())
	want := []string{EventTypeRoleGranted, EventTypeRoleGranted, EventTypeRoleRevoked}
	if len(raw) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(raw))
	}
	for i, evt := range raw {
		if evt.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], evt.Type)
		}
	}
	if raw[1].Attr("role") != "DEPOSIT_ROLE" {
		t.Fatalf("unexpected role attribute %q", raw[1].Attr("role"))
	}
}

func TestRenounceRole(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if err := reg.GrantRole(admin, MintRole, operator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := reg.RenounceRole(operator, MintRole); err != nil {
		t.Fatalf("renounce: %v", err)
	}
	if ok, _ := reg.HasRole(MintRole, operator); ok {
		t.Fatalf("role should be renounced")
	}
}

func TestPauseGuard(t *testing.T) {
	reg, _ := newTestRegistry(t)
	if err := reg.Pause(operator); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("pause without role must fail, got %v", err)
	}
	if err := reg.GrantRole(admin, PauseRole, operator); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := reg.Pause(operator); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := nativecommon.Guard(reg, "vault"); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused guard, got %v", err)
	}
	if err := nativecommon.Guard(reg, "staking"); err != nil {
		t.Fatalf("other modules stay active: %v", err)
	}
	if err := reg.Unpause(operator); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := nativecommon.Guard(reg, "vault"); err != nil {
		t.Fatalf("expected unpaused guard, got %v", err)
	}
}

func TestRoleNames(t *testing.T) {
	if DepositRole.String() != "DEPOSIT_ROLE" {
		t.Fatalf("unexpected name %s", DepositRole)
	}
	role, ok := ParseRole("CHANGE_LOCK_DURATION")
	if !ok || role != ChangeLockDurationRole {
		t.Fatalf("parse role failed")
	}
	custom := NewRole("SOMETHING_ELSE")
	if custom.String()[:2] != "0x" {
		t.Fatalf("unknown roles render as hex, got %s", custom)
	}
}
