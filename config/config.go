package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"moxieprotocol/storage"
)

type Config struct {
	DataDir string `toml:"DataDir" yaml:"dataDir"`
	Admin   string `toml:"Admin" yaml:"admin"`
	ChainID uint64 `toml:"ChainID" yaml:"chainId"`

	Token     Token     `toml:"token" yaml:"token"`
	Curve     Curve     `toml:"curve" yaml:"curve"`
	Factory   Factory   `toml:"factory" yaml:"factory"`
	Staking   Staking   `toml:"staking" yaml:"staking"`
	Rewards   Rewards   `toml:"rewards" yaml:"rewards"`
	RPC       RPC       `toml:"rpc" yaml:"rpc"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
	Indexer   Indexer   `toml:"indexer" yaml:"indexer"`
	Storage   Storage   `toml:"storage" yaml:"storage"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists. Files ending in .yaml or .yml are decoded as YAML, all
// others as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config %s: unknown key %q", path, undecoded[0].String())
		}
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir: "./moxie-data",
		Admin:   "0x0000000000000000000000000000000000000001",
		ChainID: 1,
		Token: Token{
			Name:          "Moxie",
			Symbol:        "MOXIE",
			InitialSupply: "10000000000000000000000000000",
		},
		Curve: Curve{
			ProtocolBuyFeePct:  "0",
			ProtocolSellFeePct: "0",
			SubjectBuyFeePct:   "0",
			SubjectSellFeePct:  "0",
		},
		Factory: Factory{
			AuctionDurationSecs:      86400,
			CancellationDurationSecs: 86400,
			ProtocolFeePct:           "0",
			SubjectFeePct:            "0",
		},
		Staking: Staking{LockPeriodSecs: 86400 * 90},
		Rewards: Rewards{Name: "ProtocolRewards", Version: "1"},
		RPC: RPC{
			Address:           "127.0.0.1:8545",
			RequestsPerMinute: 600,
			Burst:             50,
			ReadTimeoutSecs:   10,
			WriteTimeoutSecs:  10,
		},
		Logging:   Logging{Level: "info", Env: "local", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Telemetry: Telemetry{Endpoint: "localhost:4318", Insecure: true},
		Storage:   Storage{Engine: storage.EngineLevelDB},
	}
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	c.Admin = strings.TrimSpace(c.Admin)
	if strings.TrimSpace(c.Token.Name) == "" {
		c.Token.Name = "Moxie"
	}
	if strings.TrimSpace(c.Token.Symbol) == "" {
		c.Token.Symbol = "MOXIE"
	}
	if c.ChainID == 0 {
		c.ChainID = 1
	}
	c.Storage.Engine = strings.ToLower(strings.TrimSpace(c.Storage.Engine))
	if c.Storage.Engine == "" {
		c.Storage.Engine = storage.EngineLevelDB
	}
}

// StatePath is where the state database lives for the configured engine.
func (c *Config) StatePath() string {
	if c.Storage.Engine == storage.EngineBolt {
		return filepath.Join(c.DataDir, "state.db")
	}
	return filepath.Join(c.DataDir, "state")
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}
