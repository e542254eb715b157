package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// DefaultBaseURL is the Relay Protocol API endpoint
	DefaultBaseURL = "https://api.relay.link"
	// DefaultSource is sent as x-relay-source on every API request
	DefaultSource = "my-dapp"
	// DefaultReferrer is used for quotes and indexing when none is given
	DefaultReferrer = "relay.link"

	SepoliaChainID     int64 = 11155111
	BaseSepoliaChainID int64 = 84532
)

var (
	// ErrMissingPrivateKey is returned when an operation needs a signer and none is configured
	ErrMissingPrivateKey = errors.New("PRIVATE_KEY not found in environment variables")
	// ErrUnknownChain is returned for chain IDs absent from the network table
	ErrUnknownChain = errors.New("unknown chain id")
	// ErrInvalidConfig is returned when the loaded configuration fails validation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Network describes one EVM chain the CLI can talk to
type Network struct {
	ChainID        int64  `mapstructure:"chain_id"`
	Name           string `mapstructure:"name"`
	RPCURL         string `mapstructure:"rpc_url"`
	ExplorerURL    string `mapstructure:"explorer_url"`
	NativeSymbol   string `mapstructure:"native_symbol"`
	NativeDecimals uint8  `mapstructure:"native_decimals"`

	// Tokens maps a symbol to its ERC-20 address on this chain
	Tokens map[string]string `mapstructure:"tokens"`
}

// TxURL returns the explorer link for a transaction hash, or "" if no explorer is known
func (n Network) TxURL(hash string) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(n.ExplorerURL, "/") + "/tx/" + hash
}

// Token returns the address configured for symbol, ignoring case
func (n Network) Token(symbol string) (string, bool) {
	for sym, addr := range n.Tokens {
		if strings.EqualFold(sym, symbol) {
			return addr, true
		}
	}
	return "", false
}

// Config holds the application configuration
type Config struct {
	APIKey     string
	BaseURL    string
	Source     string
	Referrer   string
	PrivateKey string
	LogLevel   string

	// Networks is ordered; lookups return the first match
	Networks []Network
}

// DefaultNetworks returns the built-in test networks
func DefaultNetworks() []Network {
	return []Network{
		{
			ChainID:        SepoliaChainID,
			Name:           "sepolia",
			RPCURL:         "https://ethereum-sepolia-rpc.publicnode.com",
			ExplorerURL:    "https://sepolia.etherscan.io",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Tokens: map[string]string{
				"USDC": "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
			},
		},
		{
			ChainID:        BaseSepoliaChainID,
			Name:           "base-sepolia",
			RPCURL:         "https://sepolia.base.org",
			ExplorerURL:    "https://sepolia.basescan.org",
			NativeSymbol:   "ETH",
			NativeDecimals: 18,
			Tokens: map[string]string{
				"USDC": "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			},
		},
	}
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".relay-swap")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	// Read config file (optional)
	_ = v.ReadInConfig()

	cfg, err := LoadFrom(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// LoadFrom builds a Config from an already prepared viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetDefault("base_url", DefaultBaseURL)
	v.SetDefault("source", DefaultSource)
	v.SetDefault("referrer", DefaultReferrer)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("RELAY_SWAP")
	v.AutomaticEnv()

	// Plain names accepted for compatibility with existing .env files
	_ = v.BindEnv("api_key", "RELAY_SWAP_API_KEY", "RELAY_API_KEY")
	_ = v.BindEnv("private_key", "RELAY_SWAP_PRIVATE_KEY", "PRIVATE_KEY")
	_ = v.BindEnv("sepolia_rpc_url", "RELAY_SWAP_SEPOLIA_RPC_URL", "ETH_SEPOLIA_RPC")
	_ = v.BindEnv("base_sepolia_rpc_url", "RELAY_SWAP_BASE_SEPOLIA_RPC_URL", "BASE_SEPOLIA_RPC")

	cfg := &Config{
		APIKey:     v.GetString("api_key"),
		BaseURL:    strings.TrimRight(v.GetString("base_url"), "/"),
		Source:     v.GetString("source"),
		Referrer:   v.GetString("referrer"),
		PrivateKey: strings.TrimPrefix(v.GetString("private_key"), "0x"),
		LogLevel:   v.GetString("log_level"),
	}

	if v.IsSet("networks") {
		if err := v.UnmarshalKey("networks", &cfg.Networks); err != nil {
			return nil, errors.Wrap(err, "failed to decode networks")
		}
	} else {
		cfg.Networks = DefaultNetworks()
	}

	overrideRPC(cfg.Networks, SepoliaChainID, v.GetString("sepolia_rpc_url"))
	overrideRPC(cfg.Networks, BaseSepoliaChainID, v.GetString("base_sepolia_rpc_url"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func overrideRPC(networks []Network, chainID int64, url string) {
	if url == "" {
		return
	}
	for i := range networks {
		if networks[i].ChainID == chainID {
			networks[i].RPCURL = url
		}
	}
}

// Validate checks the network table and required URLs
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.Wrap(ErrInvalidConfig, "base_url is empty")
	}
	if len(c.Networks) == 0 {
		return errors.Wrap(ErrInvalidConfig, "no networks configured")
	}

	seen := make(map[int64]bool, len(c.Networks))
	for i := range c.Networks {
		n := &c.Networks[i]
		if n.ChainID <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "network %q: chain id must be positive", n.Name)
		}
		if seen[n.ChainID] {
			return errors.Wrapf(ErrInvalidConfig, "chain id %d configured twice", n.ChainID)
		}
		seen[n.ChainID] = true
		if n.RPCURL == "" {
			return errors.Wrapf(ErrInvalidConfig, "chain %d: rpc_url is empty", n.ChainID)
		}
		if n.NativeSymbol == "" {
			n.NativeSymbol = "ETH"
		}
		if n.NativeDecimals == 0 {
			n.NativeDecimals = 18
		}
	}
	return nil
}

// Network looks up a chain by ID
func (c *Config) Network(chainID int64) (Network, error) {
	for _, n := range c.Networks {
		if n.ChainID == chainID {
			return n, nil
		}
	}
	return Network{}, errors.Wrapf(ErrUnknownChain, "chain %d is not configured", chainID)
}

// NetworkByName looks up a chain by its configured name, ignoring case
func (c *Config) NetworkByName(name string) (Network, error) {
	for _, n := range c.Networks {
		if strings.EqualFold(n.Name, name) {
			return n, nil
		}
	}
	return Network{}, errors.Wrapf(ErrUnknownChain, "network %q is not configured", name)
}

// HasSigner reports whether a private key is configured
func (c *Config) HasSigner() bool {
	return c.PrivateKey != ""
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
