package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type cliConfig struct {
	Backend     string `mapstructure:"backend"`
	TokenStore  string `mapstructure:"token-store"`
	TokenFile   string `mapstructure:"token-file"`
	Passphrase  string `mapstructure:"passphrase"`
	RedisAddr   string `mapstructure:"redis-addr"`
	DatabaseURL string `mapstructure:"database-url"`
	Owner       string `mapstructure:"owner"`
	Timezone    string `mapstructure:"timezone"`
	Currency    string `mapstructure:"currency"`
	SlotAnchor  string `mapstructure:"slot-anchor"`
	LogLevel    string `mapstructure:"log-level"`
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "patientctl")
	}
	return ".patientctl"
}

func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default "+filepath.Join(defaultConfigDir(), "config.yaml")+")")
	fs.String("backend", "http://localhost:4000", "booking backend base URL")
	fs.String("token-store", "file", "where the session token is kept: memory, file, redis or postgres")
	fs.String("token-file", filepath.Join(defaultConfigDir(), "session.json"), "token file for the file store")
	fs.String("redis-addr", "", "redis address for the redis store")
	fs.String("database-url", "", "postgres URL for the postgres store")
	fs.String("owner", "", "owner key for shared token stores (default: OS user)")
	fs.String("timezone", "", "IANA zone for slot times (default: local)")
	fs.String("currency", "bdt", "currency code used to display fees")
	fs.String("slot-anchor", "tomorrow", "closing-time anchor for slots: tomorrow or same-day")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
}

// loadConfig merges flags, PATIENTCTL_* env and the optional config file, in that priority.
func loadConfig(fs *pflag.FlagSet) (cliConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("PATIENTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return cliConfig{}, err
	}
	// The passphrase is never a flag so it does not end up in shell history.
	_ = v.BindEnv("passphrase")

	explicit := v.GetString("config")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir())
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return cliConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cliConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Owner == "" {
		cfg.Owner = os.Getenv("USER")
	}
	return cfg, nil
}
