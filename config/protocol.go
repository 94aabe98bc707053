package config

import (
	"math/big"

	"moxieprotocol/native/bondingcurve"
	"moxieprotocol/native/rewards"
	"moxieprotocol/native/subjectfactory"
	"moxieprotocol/observability/logging"
	"moxieprotocol/observability/telemetry"
	"moxieprotocol/protocol"
)

// ProtocolConfig converts the validated file into the deployment parameters.
// Auction, Logger and Now are left for the caller to set.
func (c *Config) ProtocolConfig() (protocol.Config, error) {
	if err := c.Validate(); err != nil {
		return protocol.Config{}, err
	}
	admin, _ := parseAddress(c.Admin, true)
	supply, _ := parseAmount(c.Token.InitialSupply)
	curveBeneficiary, _ := parseAddress(c.Curve.FeeBeneficiary, false)
	factoryBeneficiary, _ := parseAddress(c.Factory.FeeBeneficiary, false)
	pct := func(raw string) *big.Int {
		v, _ := parsePct(raw)
		return v
	}
	return protocol.Config{
		Admin:         admin,
		TokenName:     c.Token.Name,
		TokenSymbol:   c.Token.Symbol,
		InitialSupply: supply,
		CurveFees: bondingcurve.Fees{
			ProtocolBuyFeePct:  pct(c.Curve.ProtocolBuyFeePct),
			ProtocolSellFeePct: pct(c.Curve.ProtocolSellFeePct),
			SubjectBuyFeePct:   pct(c.Curve.SubjectBuyFeePct),
			SubjectSellFeePct:  pct(c.Curve.SubjectSellFeePct),
		},
		CurveFeeBeneficiary: curveBeneficiary,
		AuctionTime: subjectfactory.AuctionTime{
			Duration:             c.Factory.AuctionDurationSecs,
			CancellationDuration: c.Factory.CancellationDurationSecs,
		},
		FactoryFees: subjectfactory.FeeConfig{
			ProtocolFeePct: pct(c.Factory.ProtocolFeePct),
			SubjectFeePct:  pct(c.Factory.SubjectFeePct),
			Beneficiary:    factoryBeneficiary,
		},
		LockPeriod: c.Staking.LockPeriodSecs,
		RewardsDomain: rewards.Domain{
			Name:    c.Rewards.Name,
			Version: c.Rewards.Version,
			ChainID: new(big.Int).SetUint64(c.ChainID),
		},
	}, nil
}

// LoggingOptions returns the logger settings for service.
func (c *Config) LoggingOptions(service string) logging.Options {
	return logging.Options{
		Service:    service,
		Env:        c.Logging.Env,
		Level:      c.Logging.Level,
		File:       c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}

// TelemetryOptions returns the exporter settings for service.
func (c *Config) TelemetryOptions(service string) telemetry.Config {
	return telemetry.Config{
		ServiceName: service,
		Environment: c.Logging.Env,
		Endpoint:    c.Telemetry.Endpoint,
		Insecure:    c.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(c.Telemetry.Headers),
		Traces:      c.Telemetry.Traces,
		Metrics:     c.Telemetry.Metrics,
	}
}
