package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"peerlend/native/loan"
	"peerlend/native/pool"
)

// Config carries the daemon configuration plus the engine parameter blocks.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	LogFile       string `toml:"LogFile"`
	Env           string `toml:"Env"`

	Loan loan.Params   `toml:"loan"`
	Pool pool.Settings `toml:"pool"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./peerlend-data"
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "local"
	}
	c.Loan.EnsureDefaults()
	c.Pool.EnsureDefaults()
}

// Validate rejects out-of-bounds engine parameters before anything starts.
func (c *Config) Validate() error {
	if c.Loan.PlatformFeeBps > 10_000 {
		return fmt.Errorf("config: platform fee %d bps exceeds 100%%", c.Loan.PlatformFeeBps)
	}
	if c.Loan.GraceDays >= c.Loan.PaymentPeriodDays {
		return fmt.Errorf("config: grace period %d days must be shorter than the payment period %d days", c.Loan.GraceDays, c.Loan.PaymentPeriodDays)
	}
	if c.Pool.TargetUtilisationBps > 10_000 {
		return fmt.Errorf("config: target utilisation %d bps exceeds 100%%", c.Pool.TargetUtilisationBps)
	}
	if c.Pool.MaxExposureBps > 10_000 {
		return fmt.Errorf("config: exposure cap %d bps exceeds 100%%", c.Pool.MaxExposureBps)
	}
	if c.Pool.MaxRiskLevel < 1 || c.Pool.MaxRiskLevel > 10 {
		return fmt.Errorf("config: max risk level %d outside 1-10", c.Pool.MaxRiskLevel)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress: ":8080",
		DataDir:       "./peerlend-data",
		LogFile:       "",
		Env:           "local",
		Loan:          loan.DefaultParams(),
		Pool:          pool.DefaultSettings(),
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := save(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func save(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
