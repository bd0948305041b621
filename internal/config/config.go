package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mindswap/internal/model"
)

const envPrefix = "SWAP"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL           string
	SignerURL        string
	Owner            string
	PackageID        string
	Module           string
	PoolIDs          []string
	RefreshInterval  time.Duration
	RPCTimeout       time.Duration
	ReadyTimeout     time.Duration
	FetchConcurrency int
	PageLimit        int
	MaxPages         int
	DefaultSlippage  float64
	Journal          string
	PGDSN            string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PriceTTL         time.Duration
	Listen           string
	LogLevel         string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("package-id", "0xdee9")
	v.SetDefault("module", "clob_v2")
	v.SetDefault("refresh-interval", 30*time.Second)
	v.SetDefault("rpc-timeout", 15*time.Second)
	v.SetDefault("ready-timeout", 30*time.Second)
	v.SetDefault("fetch-concurrency", 8)
	v.SetDefault("page-limit", 50)
	v.SetDefault("max-pages", 20)
	v.SetDefault("default-slippage", model.DefaultSlippage)
	v.SetDefault("price-ttl", 10*time.Minute)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:           v.GetString("rpc"),
		SignerURL:        v.GetString("signer-rpc"),
		Owner:            v.GetString("owner"),
		PackageID:        v.GetString("package-id"),
		Module:           v.GetString("module"),
		PoolIDs:          getStringSlice(v, "pool-ids"),
		RefreshInterval:  v.GetDuration("refresh-interval"),
		RPCTimeout:       v.GetDuration("rpc-timeout"),
		ReadyTimeout:     v.GetDuration("ready-timeout"),
		FetchConcurrency: v.GetInt("fetch-concurrency"),
		PageLimit:        v.GetInt("page-limit"),
		MaxPages:         v.GetInt("max-pages"),
		DefaultSlippage:  v.GetFloat64("default-slippage"),
		Journal:          v.GetString("journal"),
		PGDSN:            v.GetString("pg-dsn"),
		RedisAddr:        v.GetString("redis-addr"),
		RedisPassword:    v.GetString("redis-password"),
		RedisDB:          v.GetInt("redis-db"),
		PriceTTL:         v.GetDuration("price-ttl"),
		Listen:           v.GetString("listen"),
		LogLevel:         v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.Owner != "" {
		if _, err := model.NormalizeAddress(c.Owner); err != nil {
			return fmt.Errorf("owner: %w", err)
		}
	}
	if _, err := model.NormalizeAddress(c.PackageID); err != nil {
		return fmt.Errorf("package-id: %w", err)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh-interval must be positive")
	}
	if err := model.ValidateSlippage(c.DefaultSlippage); err != nil {
		return fmt.Errorf("default-slippage: %w", err)
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
