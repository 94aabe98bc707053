package access

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Role identifies a capability. Named roles are the keccak256 hash of their
// name; the default admin role is the zero value.
type Role [32]byte

// NewRole derives the role identifier for name.
func NewRole(name string) Role {
	return Role(ethcrypto.Keccak256Hash([]byte(name)))
}

var (
	DefaultAdminRole       Role
	DepositRole            = NewRole("DEPOSIT_ROLE")
	TransferRole           = NewRole("TRANSFER_ROLE")
	CreateRole             = NewRole("CREATE_ROLE")
	MintRole               = NewRole("MINT_ROLE")
	OnboardingRole         = NewRole("ONBOARDING_ROLE")
	UpdateFeesRole         = NewRole("UPDATE_FEES_ROLE")
	UpdateBeneficiaryRole  = NewRole("UPDATE_PROTOCOL_FEE_BENEFICIARY_ROLE")
	UpdateAuctionRole      = NewRole("AUCTION_ROLE")
	PauseRole              = NewRole("PAUSE_ROLE")
	ChangeLockDurationRole = NewRole("CHANGE_LOCK_DURATION")
	PassMinterRole         = NewRole("MINTER_ROLE")
)

var roleNames = map[Role]string{
	DefaultAdminRole:       "DEFAULT_ADMIN_ROLE",
	DepositRole:            "DEPOSIT_ROLE",
	TransferRole:           "TRANSFER_ROLE",
	CreateRole:             "CREATE_ROLE",
	MintRole:               "MINT_ROLE",
	OnboardingRole:         "ONBOARDING_ROLE",
	UpdateFeesRole:         "UPDATE_FEES_ROLE",
	UpdateBeneficiaryRole:  "UPDATE_PROTOCOL_FEE_BENEFICIARY_ROLE",
	UpdateAuctionRole:      "AUCTION_ROLE",
	PauseRole:              "PAUSE_ROLE",
	ChangeLockDurationRole: "CHANGE_LOCK_DURATION",
	PassMinterRole:         "MINTER_ROLE",
}

// String returns the role name when known and the hex identifier otherwise.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return common.Hash(r).Hex()
}

// ParseRole resolves a role by name.
func ParseRole(name string) (Role, bool) {
	for role, known := range roleNames {
		if known == name {
			return role, true
		}
	}
	return Role{}, false
}

// Authority is the capability check every privileged engine operation
// consults before mutating state.
type Authority interface {
	HasRole(role Role, account common.Address) (bool, error)
}

// ErrUnauthorized matches every *UnauthorizedError via errors.Is.
var ErrUnauthorized = errors.New("access: AccessControlUnauthorizedAccount")

// UnauthorizedError reports the account and the role it was missing.
type UnauthorizedError struct {
	Account common.Address
	Role    Role
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("access: AccessControlUnauthorizedAccount(%s, %s)", e.Account.Hex(), e.Role)
}

// Is lets errors.Is(err, ErrUnauthorized) match.
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }

// Require returns an *UnauthorizedError unless account holds role. A nil
// authority denies everything.
func Require(auth Authority, role Role, account common.Address) error {
	if auth == nil {
		return &UnauthorizedError{Account: account, Role: role}
	}
	ok, err := auth.HasRole(role, account)
	if err != nil {
		return err
	}
	if !ok {
		return &UnauthorizedError{Account: account, Role: role}
	}
	return nil
}
