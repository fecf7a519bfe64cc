// Package config loads server configuration. Sources are applied in order,
// later ones overriding earlier ones: built-in defaults, an optional YAML
// file, environment variables (a .env file is loaded into the environment
// first without overriding it), and command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"revenue-market/internal/collateral"
	"revenue-market/internal/logging"
	"revenue-market/internal/settlement"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Storage
	UseMemory        bool   `yaml:"use_memory"`
	PostgresDSN      string `yaml:"postgres_dsn"`
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn"` // optional distribution history

	// Event delivery
	AMQPURL      string `yaml:"amqp_url"` // optional broker
	AMQPExchange string `yaml:"amqp_exchange"`
	FeedBuffer   int    `yaml:"feed_buffer"`

	// Settlement
	TreasuryID         string `yaml:"treasury_id"`
	ProtocolFeeBps     uint64 `yaml:"protocol_fee_bps"`
	MinProtocolFee     uint64 `yaml:"min_protocol_fee"`
	CollateralRatioBps uint64 `yaml:"collateral_ratio_bps"` // zero requires no collateral
	ValidateAddresses  bool   `yaml:"validate_addresses"`   // require ed25519 base58 identities

	Log logging.Config `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPAddr:         ":8080",
		ShutdownTimeout:  30 * time.Second,
		PostgresMaxConns: 10,
		AMQPExchange:     "ledger.events",
		FeedBuffer:       256,
		TreasuryID:       "protocol-treasury",
		ProtocolFeeBps:   settlement.ProtocolFeeBps,
		Log:              logging.DefaultConfig(),
	}
}

// Load applies the YAML file at path (skipped when empty), then envFile
// (skipped when missing), then the environment, over the defaults.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	envString("HTTP_ADDR", &c.HTTPAddr)
	envString("POSTGRES_DSN", &c.PostgresDSN)
	envString("CLICKHOUSE_DSN", &c.ClickhouseDSN)
	envString("AMQP_URL", &c.AMQPURL)
	envString("AMQP_EXCHANGE", &c.AMQPExchange)
	envString("TREASURY_ID", &c.TreasuryID)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	envString("LOG_FILE", &c.Log.File)

	var errs []error
	errs = append(errs,
		envParse("USE_MEMORY", &c.UseMemory, strconv.ParseBool),
		envParse("VALIDATE_ADDRESSES", &c.ValidateAddresses, strconv.ParseBool),
		envParse("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, time.ParseDuration),
		envParse("PROTOCOL_FEE_BPS", &c.ProtocolFeeBps, parseUint),
		envParse("MIN_PROTOCOL_FEE", &c.MinProtocolFee, parseUint),
		envParse("COLLATERAL_RATIO_BPS", &c.CollateralRatioBps, parseUint),
		envParse("FEED_BUFFER", &c.FeedBuffer, strconv.Atoi),
		envParse("POSTGRES_MAX_CONNS", &c.PostgresMaxConns, parseInt32),
	)
	return errors.Join(errs...)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envParse[T any](key string, dst *T, parse func(string) (T, error)) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	parsed, err := parse(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	return int32(v), err
}

// Parse reads flags from args, loads the file and environment they point at,
// and applies the flags that were set on top.
func Parse(name string, args []string) (*Config, error) {
	return ParseWith(name, args, nil)
}

// ParseWith is Parse for commands with flags of their own, which extra
// registers on the flag set before parsing.
func ParseWith(name string, args []string, extra func(fl *flag.FlagSet)) (*Config, error) {
	fl := flag.NewFlagSet(name, flag.ContinueOnError)
	if extra != nil {
		extra(fl)
	}

	configPath := fl.String("config", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	envFile := fl.String("env-file", ".env", "dotenv file loaded into the environment if present")

	set := Default()
	fl.StringVar(&set.HTTPAddr, "http-addr", set.HTTPAddr, "HTTP listen address")
	fl.BoolVar(&set.UseMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL")
	fl.StringVar(&set.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	fl.StringVar(&set.ClickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string (distribution history)")
	fl.StringVar(&set.AMQPURL, "amqp-url", "", "RabbitMQ URL for event publishing")
	fl.StringVar(&set.TreasuryID, "treasury", set.TreasuryID, "Protocol treasury account")
	fl.Uint64Var(&set.ProtocolFeeBps, "fee-bps", set.ProtocolFeeBps, "Protocol fee in basis points")
	fl.Uint64Var(&set.MinProtocolFee, "min-fee", 0, "Minimum protocol fee on distributions")
	fl.Uint64Var(&set.CollateralRatioBps, "collateral-bps", 0, "Collateral required at mint, in basis points of minted value")
	fl.BoolVar(&set.ValidateAddresses, "validate-addresses", false, "Require ed25519 base58 account identities")
	fl.StringVar(&set.Log.Level, "log-level", set.Log.Level, "Log level (debug, info, warn, error)")

	if err := fl.Parse(args); err != nil {
		return nil, err
	}

	cfg, err := Load(*configPath, *envFile)
	if err != nil {
		return nil, err
	}

	fl.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http-addr":
			cfg.HTTPAddr = set.HTTPAddr
		case "use-memory":
			cfg.UseMemory = set.UseMemory
		case "postgres-dsn":
			cfg.PostgresDSN = set.PostgresDSN
		case "clickhouse-dsn":
			cfg.ClickhouseDSN = set.ClickhouseDSN
		case "amqp-url":
			cfg.AMQPURL = set.AMQPURL
		case "treasury":
			cfg.TreasuryID = set.TreasuryID
		case "fee-bps":
			cfg.ProtocolFeeBps = set.ProtocolFeeBps
		case "min-fee":
			cfg.MinProtocolFee = set.MinProtocolFee
		case "collateral-bps":
			cfg.CollateralRatioBps = set.CollateralRatioBps
		case "validate-addresses":
			cfg.ValidateAddresses = set.ValidateAddresses
		case "log-level":
			cfg.Log.Level = set.Log.Level
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("postgres dsn is required (use in-memory storage otherwise)")
	}
	if c.TreasuryID == "" {
		return errors.New("treasury id is required")
	}
	if c.FeedBuffer <= 0 {
		return fmt.Errorf("feed buffer must be positive, got %d", c.FeedBuffer)
	}
	if err := c.Settlement().Validate(); err != nil {
		return err
	}
	if _, err := c.Requirement(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Settlement returns the configured settlement parameters.
func (c *Config) Settlement() settlement.Params {
	return settlement.Params{FeeBps: c.ProtocolFeeBps, MinProtocolFee: c.MinProtocolFee}
}

// Requirement returns the configured collateral requirement.
func (c *Config) Requirement() (collateral.Requirement, error) {
	if c.CollateralRatioBps == 0 {
		return collateral.None, nil
	}
	return collateral.NewRatioRequirement(c.CollateralRatioBps)
}
