package protocol

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"moxieprotocol/core/state"
	"moxieprotocol/native/access"
	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/pass"
	"moxieprotocol/native/rewards"
	"moxieprotocol/native/staking"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/native/token"
	"moxieprotocol/native/tokenmanager"
	"moxieprotocol/native/vault"
	"moxieprotocol/native/vesting"
)

var (
	addressesKey = []byte("protocol/addresses")

	ErrAuctionUnavailable = errors.New("protocol: no batch auction configured")
)

// Addresses records where each component was deployed.
type Addresses struct {
	Admin          common.Address
	MoxieToken     common.Address
	Vault          common.Address
	TokenManager   common.Address
	BondingCurve   common.Address
	SubjectFactory common.Address
	Staking        common.Address
	Rewards        common.Address
	VestingManager common.Address
	Auction        common.Address
}

// roleDomains lists every access registry in bootstrap order. Each domain
// doubles as the pause flag its engine checks.
var roleDomains = []string{
	DomainPass,
	vault.ModuleName,
	DomainTokenManager,
	bondingcurve.ModuleName,
	subjectfactory.ModuleName,
	staking.ModuleName,
	DomainVesting,
}

func loadAddresses(st *state.Manager) (Addresses, bool, error) {
	var addrs Addresses
	ok, err := st.KVGet(addressesKey, &addrs)
	if err != nil {
		return Addresses{}, false, err
	}
	return addrs, ok, nil
}

// componentAddress derives a deployment address from the admin and the
// component name, independent of deployment order.
func componentAddress(admin common.Address, name string) common.Address {
	salt := ethcrypto.Keccak256Hash([]byte("moxie/" + name))
	return ethcrypto.CreateAddress2(admin, salt, ethcrypto.Keccak256(nil))
}

func deriveAddresses(cfg Config, tokens *token.Ledger) (Addresses, error) {
	name, symbol := cfg.TokenName, cfg.TokenSymbol
	if name == "" {
		name = "Moxie"
	}
	if symbol == "" {
		symbol = "MOXIE"
	}
	meta, err := tokens.Deploy(cfg.Admin, name, symbol, cfg.Admin, false)
	if err != nil {
		return Addresses{}, err
	}
	addrs := Addresses{
		Admin:          cfg.Admin,
		MoxieToken:     meta.Address,
		Vault:          componentAddress(cfg.Admin, vault.ModuleName),
		TokenManager:   componentAddress(cfg.Admin, DomainTokenManager),
		BondingCurve:   componentAddress(cfg.Admin, bondingcurve.ModuleName),
		SubjectFactory: componentAddress(cfg.Admin, subjectfactory.ModuleName),
		Staking:        componentAddress(cfg.Admin, staking.ModuleName),
		Rewards:        componentAddress(cfg.Admin, "rewards"),
		VestingManager: componentAddress(cfg.Admin, DomainVesting),
	}
	if cfg.Auction != nil {
		addrs.Auction = cfg.Auction.Address()
	}
	return addrs, nil
}

func wire(st *state.Manager, cfg Config, addrs Addresses, tokens *token.Ledger, auction subjectfactory.Auction, now func() int64) *Engines {
	roles := make(map[string]*access.Registry, len(roleDomains))
	for _, domain := range roleDomains {
		reg := access.NewRegistry(domain)
		reg.SetState(st)
		roles[domain] = reg
	}

	passes := pass.NewRegistry(roles[DomainPass])
	passes.SetState(st)
	verifier := pass.NewVerifier(passes)
	verifier.SetState(st)
	tokens.SetPassVerifier(verifier)

	v := vault.NewEngine(addrs.Vault, tokens, roles[vault.ModuleName])
	v.SetState(st)
	v.SetPauses(roles[vault.ModuleName])

	manager := tokenmanager.NewEngine(addrs.TokenManager, tokens, roles[DomainTokenManager])
	manager.SetState(st)

	domain := cfg.RewardsDomain
	if domain.Name == "" {
		domain.Name = "ProtocolRewards"
	}
	if domain.Version == "" {
		domain.Version = "1"
	}
	if domain.ChainID == nil {
		domain.ChainID = big.NewInt(1)
	}
	rw := rewards.NewEngine(addrs.Rewards, addrs.MoxieToken, tokens, domain)
	rw.SetState(st)
	rw.SetNowFunc(now)

	curve := bondingcurve.NewEngine(bondingcurve.Config{
		Address:      addrs.BondingCurve,
		ReserveToken: addrs.MoxieToken,
		Tokens:       tokens,
		TokenManager: manager,
		Vault:        v,
		Rewards:      rw,
		Auth:         roles[bondingcurve.ModuleName],
	})
	curve.SetState(st)
	curve.SetPauses(roles[bondingcurve.ModuleName])

	factory := subjectfactory.NewEngine(subjectfactory.Config{
		Address:      addrs.SubjectFactory,
		ReserveToken: addrs.MoxieToken,
		Tokens:       tokens,
		TokenManager: manager,
		BondingCurve: curve,
		Auction:      auction,
		Passes:       passes,
		Auth:         roles[subjectfactory.ModuleName],
	})
	factory.SetState(st)
	factory.SetNowFunc(now)
	factory.SetPauses(roles[subjectfactory.ModuleName])

	stk := staking.NewEngine(staking.Config{
		Address:      addrs.Staking,
		ReserveToken: addrs.MoxieToken,
		Tokens:       tokens,
		TokenManager: manager,
		BondingCurve: curve,
		Auth:         roles[staking.ModuleName],
	})
	stk.SetState(st)
	stk.SetNowFunc(now)
	stk.SetPauses(roles[staking.ModuleName])

	vm := vesting.NewManager(addrs.VestingManager, addrs.MoxieToken, tokens, roles[DomainVesting])
	vm.SetState(st)
	vm.SetNowFunc(now)

	return &Engines{
		Addresses:    addrs,
		Tokens:       tokens,
		Passes:       passes,
		Verifier:     verifier,
		Vault:        v,
		TokenManager: manager,
		BondingCurve: curve,
		Factory:      factory,
		Staking:      stk,
		Rewards:      rw,
		Vesting:      vm,
		Roles:        roles,
	}
}

type grant struct {
	domain  string
	role    access.Role
	account common.Address
}

func bootstrap(st *state.Manager, e *Engines, cfg Config) error {
	admin := cfg.Admin
	addrs := e.Addresses
	for _, domain := range roleDomains {
		if err := e.Roles[domain].Bootstrap(admin); err != nil {
			return err
		}
	}
	grants := []grant{
		{DomainPass, access.PassMinterRole, admin},
		{vault.ModuleName, access.DepositRole, addrs.BondingCurve},
		{vault.ModuleName, access.TransferRole, addrs.BondingCurve},
		{DomainTokenManager, access.CreateRole, addrs.SubjectFactory},
		{DomainTokenManager, access.MintRole, addrs.BondingCurve},
		{bondingcurve.ModuleName, access.OnboardingRole, addrs.SubjectFactory},
		{bondingcurve.ModuleName, access.UpdateFeesRole, admin},
		{bondingcurve.ModuleName, access.UpdateBeneficiaryRole, admin},
		{subjectfactory.ModuleName, access.OnboardingRole, admin},
		{subjectfactory.ModuleName, access.UpdateAuctionRole, admin},
		{subjectfactory.ModuleName, access.UpdateFeesRole, admin},
		{subjectfactory.ModuleName, access.UpdateBeneficiaryRole, admin},
		{staking.ModuleName, access.ChangeLockDurationRole, admin},
	}
	for _, domain := range roleDomains {
		grants = append(grants, grant{domain, access.PauseRole, admin})
	}
	for _, g := range grants {
		if err := e.Roles[g.domain].GrantRole(admin, g.role, g.account); err != nil {
			return err
		}
	}

	custodians := []common.Address{
		addrs.Vault,
		addrs.TokenManager,
		addrs.BondingCurve,
		addrs.SubjectFactory,
		addrs.Staking,
		addrs.Rewards,
		addrs.VestingManager,
	}
	if addrs.Auction != (common.Address{}) {
		custodians = append(custodians, addrs.Auction)
	}
	for _, account := range custodians {
		if err := e.Verifier.Allow(account); err != nil {
			return err
		}
	}

	if cfg.InitialSupply != nil && cfg.InitialSupply.Sign() > 0 {
		if err := e.Tokens.Mint(addrs.MoxieToken, admin, admin, cfg.InitialSupply); err != nil {
			return err
		}
	}

	beneficiary := cfg.CurveFeeBeneficiary
	if beneficiary == (common.Address{}) {
		beneficiary = admin
	}
	if err := e.BondingCurve.Setup(cfg.CurveFees.Clone(), beneficiary); err != nil {
		return err
	}
	factoryFees := cfg.FactoryFees
	if factoryFees.Beneficiary == (common.Address{}) {
		factoryFees.Beneficiary = beneficiary
	}
	if err := e.Factory.Setup(cfg.AuctionTime, factoryFees); err != nil {
		return err
	}
	if cfg.LockPeriod > 0 {
		if err := e.Staking.SetLockPeriod(admin, cfg.LockPeriod); err != nil {
			return err
		}
	}

	sigs := make([]string, 0, len(forwardedCalls))
	targets := make([]common.Address, 0, len(forwardedCalls))
	for _, call := range forwardedCalls {
		sigs = append(sigs, call.signature)
		targets = append(targets, call.target(addrs))
	}
	if err := e.Vesting.SetAuthFunctionCallMany(admin, sigs, targets); err != nil {
		return err
	}
	for _, dst := range []common.Address{addrs.BondingCurve, addrs.Staking} {
		if err := e.Vesting.AddTokenDestination(admin, dst); err != nil {
			return err
		}
	}
	return st.KVPut(addressesKey, addrs)
}

// unavailableAuction stands in when no batch auction is configured.
type unavailableAuction struct{}

func (unavailableAuction) Address() common.Address { return common.Address{} }

func (unavailableAuction) InitiateAuction(common.Address, subjectfactory.AuctionParams) (uint64, error) {
	return 0, ErrAuctionUnavailable
}

func (unavailableAuction) SettleAuction(uint64) error { return ErrAuctionUnavailable }
