package config

// Token configures the reserve token minted at deployment.
type Token struct {
	Name          string `toml:"Name" yaml:"name"`
	Symbol        string `toml:"Symbol" yaml:"symbol"`
	InitialSupply string `toml:"InitialSupply" yaml:"initialSupply"` // base units
}

// Curve holds the bonding curve fee schedule. Percentages are scaled by 1e18.
type Curve struct {
	ProtocolBuyFeePct  string `toml:"ProtocolBuyFeePct" yaml:"protocolBuyFeePct"`
	ProtocolSellFeePct string `toml:"ProtocolSellFeePct" yaml:"protocolSellFeePct"`
	SubjectBuyFeePct   string `toml:"SubjectBuyFeePct" yaml:"subjectBuyFeePct"`
	SubjectSellFeePct  string `toml:"SubjectSellFeePct" yaml:"subjectSellFeePct"`
	FeeBeneficiary     string `toml:"FeeBeneficiary" yaml:"feeBeneficiary"`
}

// Factory configures onboarding auctions and their fees.
type Factory struct {
	AuctionDurationSecs      uint64 `toml:"AuctionDurationSecs" yaml:"auctionDurationSecs"`
	CancellationDurationSecs uint64 `toml:"CancellationDurationSecs" yaml:"cancellationDurationSecs"`
	ProtocolFeePct           string `toml:"ProtocolFeePct" yaml:"protocolFeePct"`
	SubjectFeePct            string `toml:"SubjectFeePct" yaml:"subjectFeePct"`
	FeeBeneficiary           string `toml:"FeeBeneficiary" yaml:"feeBeneficiary"`
}

type Staking struct {
	LockPeriodSecs uint64 `toml:"LockPeriodSecs" yaml:"lockPeriodSecs"`
}

// Rewards is the EIP-712 domain of signed reward withdrawals.
type Rewards struct {
	Name    string `toml:"Name" yaml:"name"`
	Version string `toml:"Version" yaml:"version"`
}

type RPC struct {
	Address           string  `toml:"Address" yaml:"address"`
	RequestsPerMinute float64 `toml:"RequestsPerMinute" yaml:"requestsPerMinute"`
	Burst             int     `toml:"Burst" yaml:"burst"`
	ReadTimeoutSecs   int     `toml:"ReadTimeoutSecs" yaml:"readTimeoutSecs"`
	WriteTimeoutSecs  int     `toml:"WriteTimeoutSecs" yaml:"writeTimeoutSecs"`
}

// Logging configures the process logger. File output is optional.
type Logging struct {
	Level      string `toml:"Level" yaml:"level"`
	Env        string `toml:"Env" yaml:"env"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"maxAgeDays"`
	Compress   bool   `toml:"Compress" yaml:"compress"`
}

// Telemetry configures the OTLP exporters. Both signals are off by default.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Headers  string `toml:"Headers" yaml:"headers"` // key=value,key2=value2
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
}

// Indexer enables the trade history store. An empty DSN disables it; a
// postgres:// URL selects Postgres, anything else a SQLite file.
type Indexer struct {
	DSN string `toml:"DSN" yaml:"dsn"`
}

// Storage selects the state database engine: "leveldb" or "bolt".
type Storage struct {
	Engine string `toml:"Engine" yaml:"engine"`
}
