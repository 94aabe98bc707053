package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"moxieprotocol/storage"
)

var pctBase = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Validate checks the values a deployment depends on.
func (c *Config) Validate() error {
	if _, err := parseAddress(c.Admin, true); err != nil {
		return fmt.Errorf("Admin: %w", err)
	}
	if _, err := parseAmount(c.Token.InitialSupply); err != nil {
		return fmt.Errorf("token.InitialSupply: %w", err)
	}

	buyProtocol, err := parsePct(c.Curve.ProtocolBuyFeePct)
	if err != nil {
		return fmt.Errorf("curve.ProtocolBuyFeePct: %w", err)
	}
	sellProtocol, err := parsePct(c.Curve.ProtocolSellFeePct)
	if err != nil {
		return fmt.Errorf("curve.ProtocolSellFeePct: %w", err)
	}
	buySubject, err := parsePct(c.Curve.SubjectBuyFeePct)
	if err != nil {
		return fmt.Errorf("curve.SubjectBuyFeePct: %w", err)
	}
	sellSubject, err := parsePct(c.Curve.SubjectSellFeePct)
	if err != nil {
		return fmt.Errorf("curve.SubjectSellFeePct: %w", err)
	}
	if new(big.Int).Add(buyProtocol, buySubject).Cmp(pctBase) >= 0 {
		return fmt.Errorf("curve: buy fees must sum below 1e18")
	}
	if new(big.Int).Add(sellProtocol, sellSubject).Cmp(pctBase) >= 0 {
		return fmt.Errorf("curve: sell fees must sum below 1e18")
	}
	if _, err := parseAddress(c.Curve.FeeBeneficiary, false); err != nil {
		return fmt.Errorf("curve.FeeBeneficiary: %w", err)
	}

	if c.Factory.AuctionDurationSecs == 0 {
		return fmt.Errorf("factory: AuctionDurationSecs must be positive")
	}
	if c.Factory.CancellationDurationSecs > c.Factory.AuctionDurationSecs {
		return fmt.Errorf("factory: CancellationDurationSecs > AuctionDurationSecs")
	}
	factoryProtocol, err := parsePct(c.Factory.ProtocolFeePct)
	if err != nil {
		return fmt.Errorf("factory.ProtocolFeePct: %w", err)
	}
	factorySubject, err := parsePct(c.Factory.SubjectFeePct)
	if err != nil {
		return fmt.Errorf("factory.SubjectFeePct: %w", err)
	}
	if new(big.Int).Add(factoryProtocol, factorySubject).Cmp(pctBase) >= 0 {
		return fmt.Errorf("factory: fees must sum below 1e18")
	}
	if _, err := parseAddress(c.Factory.FeeBeneficiary, false); err != nil {
		return fmt.Errorf("factory.FeeBeneficiary: %w", err)
	}

	if c.Staking.LockPeriodSecs == 0 {
		return fmt.Errorf("staking: LockPeriodSecs must be positive")
	}
	if strings.TrimSpace(c.RPC.Address) == "" {
		return fmt.Errorf("rpc: Address required")
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	switch c.Storage.Engine {
	case storage.EngineLevelDB, storage.EngineBolt:
	default:
		return fmt.Errorf("storage: unknown Engine %q", c.Storage.Engine)
	}
	return nil
}

func parseAddress(raw string, required bool) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return common.Address{}, fmt.Errorf("address required")
		}
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(raw)
	if required && addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

// parseAmount reads a non-negative base-10 integer; empty means zero.
func parseAmount(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", raw)
	}
	return v, nil
}

func parsePct(raw string) (*big.Int, error) {
	v, err := parseAmount(raw)
	if err != nil {
		return nil, err
	}
	if v.Cmp(pctBase) > 0 {
		return nil, fmt.Errorf("percentage %s above 1e18", v)
	}
	return v, nil
}
